package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	CheckStockNegative        = "STOCK_NEGATIVE"
	CheckStockTotal           = "STOCK_TOTAL"
	CheckStockHistory         = "STOCK_HISTORY"
	CheckAccountBalance       = "ACCOUNT_BALANCE"
	CheckAccountStatus        = "ACCOUNT_STATUS"
	CheckOrderFulfilment      = "ORDER_FULFILMENT"
	CheckReturnItem           = "RETURN_ITEM"
	CheckFinancialAllocation  = "FINANCIAL_ALLOCATION"
	reconciliationBatchSize   = 500
	reconciliationLogFuncName = "RunReconciliationChecks"
)

// ReconciliationReport is one invariant violation found by a reconciliation run.
type ReconciliationReport struct {
	ID            int       `gorm:"primary_key" json:"id"`
	CheckType     string    `gorm:"size:50;index;not null" json:"check_type"`  // e.g. STOCK_TOTAL
	EntityType    string    `gorm:"size:50;index;not null" json:"entity_type"` // e.g. Stock, AccountRecord
	EntityId      int       `gorm:"index;not null" json:"entity_id"`
	Details       string    `gorm:"type:text" json:"details"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type reconciliationRun struct {
	cid      string
	now      time.Time
	findings []ReconciliationReport
}

func (r *reconciliationRun) add(checkType, entityType string, entityId int, format string, args ...any) {
	r.findings = append(r.findings, ReconciliationReport{
		CheckType:     checkType,
		EntityType:    entityType,
		EntityId:      entityId,
		Details:       fmt.Sprintf(format, args...),
		CorrelationId: r.cid,
		CreatedAt:     r.now,
	})
}

// RunReconciliationChecks scans the ledger, account records, order counters
// and returns for invariant violations. Findings are written to
// reconciliation_reports when persist is set and returned either way.
func RunReconciliationChecks(ctx context.Context, persist bool) (correlationId string, findings []ReconciliationReport, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db := config.GetDB()
	if db == nil {
		return "", nil, fmt.Errorf("db is nil")
	}
	logger := config.GetLogger()

	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}
	run := &reconciliationRun{cid: cid, now: time.Now().UTC()}
	db = db.WithContext(ctx)

	checks := []func(*gorm.DB, *reconciliationRun) error{
		checkStocks,
		checkStockHistories,
		checkAccountRecords,
		checkOrderCounters,
		checkReturnItems,
		checkFinancialRecords,
	}
	for _, check := range checks {
		if err := check(db, run); err != nil {
			config.LogError(logger, "models", reconciliationLogFuncName, "check failed", cid, err)
			return cid, nil, err
		}
	}

	if persist && len(run.findings) > 0 {
		if err := db.CreateInBatches(&run.findings, reconciliationBatchSize).Error; err != nil {
			return cid, nil, err
		}
	}
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":          "ReconciliationChecks",
			"correlation_id": cid,
			"findings":       len(run.findings),
		}).Info("reconciliation checks completed")
	}
	return cid, run.findings, nil
}

func checkStocks(db *gorm.DB, run *reconciliationRun) error {
	var batch []Stock
	return db.Model(&Stock{}).FindInBatches(&batch, reconciliationBatchSize, func(tx *gorm.DB, _ int) error {
		for _, s := range batch {
			if s.Quantity < 0 {
				run.add(CheckStockNegative, "Stock", s.ID, "quantity=%d < 0", s.Quantity)
			}
			expected := utils.LineAmount(s.Quantity, s.CostPrice)
			if !utils.IsZeroMoney(expected.Sub(s.TotalAmount)) {
				run.add(CheckStockTotal, "Stock", s.ID, "total_amount=%s != quantity*cost_price=%s",
					s.TotalAmount.StringFixed(4), expected.StringFixed(4))
			}
		}
		return nil
	}).Error
}

func checkStockHistories(db *gorm.DB, run *reconciliationRun) error {
	var rows []struct {
		StockId    int
		Quantity   int
		HistoryQty int
	}
	err := db.Raw(`
		SELECT s.id AS stock_id, s.quantity AS quantity, COALESCE(SUM(h.qty), 0) AS history_qty
		FROM stocks s
		LEFT JOIN stock_histories h
		  ON h.sku_id = s.sku_id
		 AND h.warehouse_id = s.warehouse_id
		GROUP BY s.id, s.quantity
	`).Scan(&rows).Error
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.Quantity != r.HistoryQty {
			run.add(CheckStockHistory, "Stock", r.StockId, "quantity=%d != sum(stock_histories.qty)=%d", r.Quantity, r.HistoryQty)
		}
	}
	return nil
}

func checkAccountRecords(db *gorm.DB, run *reconciliationRun) error {
	var batch []AccountRecord
	return db.Model(&AccountRecord{}).FindInBatches(&batch, reconciliationBatchSize, func(tx *gorm.DB, _ int) error {
		for _, a := range batch {
			expected := a.Amount.Sub(a.PaidAmount)
			if !utils.IsZeroMoney(expected.Sub(a.BalanceAmount)) {
				run.add(CheckAccountBalance, "AccountRecord", a.ID, "balance_amount=%s != amount-paid_amount=%s",
					a.BalanceAmount.StringFixed(4), expected.StringFixed(4))
			}
			settled := utils.IsZeroMoney(a.BalanceAmount)
			if settled != (a.Status == AccountStatusSettled) {
				run.add(CheckAccountStatus, "AccountRecord", a.ID, "status=%s with balance_amount=%s",
					a.Status, a.BalanceAmount.StringFixed(4))
			}
			if a.PaidAmount.Abs().GreaterThan(a.Amount.Abs().Add(utils.MoneyEpsilon)) {
				run.add(CheckAccountBalance, "AccountRecord", a.ID, "paid_amount=%s exceeds amount=%s",
					a.PaidAmount.StringFixed(4), a.Amount.StringFixed(4))
			}
		}
		return nil
	}).Error
}

func checkOrderCounters(db *gorm.DB, run *reconciliationRun) error {
	var purchaseItems []PurchaseOrderItem
	if err := db.Where("received_quantity < 0 OR received_quantity > quantity").Find(&purchaseItems).Error; err != nil {
		return err
	}
	for _, item := range purchaseItems {
		run.add(CheckOrderFulfilment, "PurchaseOrderItem", item.ID, "received_quantity=%d outside 0..%d", item.ReceivedQuantity, item.Quantity)
	}
	var salesItems []SalesOrderItem
	if err := db.Where("delivered_quantity < 0 OR delivered_quantity > quantity").Find(&salesItems).Error; err != nil {
		return err
	}
	for _, item := range salesItems {
		run.add(CheckOrderFulfilment, "SalesOrderItem", item.ID, "delivered_quantity=%d outside 0..%d", item.DeliveredQuantity, item.Quantity)
	}
	return nil
}

func checkReturnItems(db *gorm.DB, run *reconciliationRun) error {
	var items []ReturnItem
	if err := db.Where("processed_quantity > return_quantity OR stocked_quantity > processed_quantity OR stocked_quantity < 0").
		Find(&items).Error; err != nil {
		return err
	}
	for _, item := range items {
		run.add(CheckReturnItem, "ReturnItem", item.ID, "return=%d processed=%d stocked=%d",
			item.ReturnQuantity, item.ProcessedQuantity, item.StockedQuantity)
	}
	return nil
}

func checkFinancialRecords(db *gorm.DB, run *reconciliationRun) error {
	var batch []FinancialRecord
	return db.Model(&FinancialRecord{}).FindInBatches(&batch, reconciliationBatchSize, func(tx *gorm.DB, _ int) error {
		for _, f := range batch {
			if f.SettledAmount.LessThan(decimal.Zero) || utils.ExceedsMoney(f.SettledAmount, f.Amount) {
				run.add(CheckFinancialAllocation, "FinancialRecord", f.ID, "settled_amount=%s outside 0..%s",
					f.SettledAmount.StringFixed(4), f.Amount.StringFixed(4))
			}
		}
		return nil
	}).Error
}
