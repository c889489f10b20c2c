package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SaleStockOut ships goods out of a warehouse, optionally against a sales order.
type SaleStockOut struct {
	ID           int                `gorm:"primary_key" json:"id"`
	DocNumber    string             `gorm:"size:32;not null;uniqueIndex" json:"doc_number"`
	SequenceNo   int64              `gorm:"index;not null" json:"sequence_no"`
	SalesOrderId int                `gorm:"index;default:0" json:"sales_order_id"`
	WarehouseId  int                `gorm:"index;not null" json:"warehouse_id"`
	Status       MovementStatus     `gorm:"size:20;not null;index" json:"status"`
	TotalAmount  decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Remark       string             `gorm:"type:text" json:"remark"`
	Items        []SaleStockOutItem `gorm:"foreignKey:SaleStockOutId" json:"items"`
	CreatedBy    int                `json:"created_by"`
	AuditBy      int                `json:"audit_by"`
	AuditedAt    *time.Time         `json:"audited_at"`
	CancelledAt  *time.Time         `json:"cancelled_at"`
	CreatedAt    time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt     `gorm:"index" json:"-"`
}

type SaleStockOutItem struct {
	ID               int             `gorm:"primary_key" json:"id"`
	SaleStockOutId   int             `gorm:"index;not null" json:"sale_stock_out_id"`
	SalesOrderItemId int             `gorm:"index;default:0" json:"sales_order_item_id"`
	SkuId            int             `gorm:"index;not null" json:"sku_id"`
	Quantity         int             `gorm:"not null" json:"quantity"`
	Price            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Amount           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	// ledger cost at audit, used to put the goods back on cancel
	CostPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_price"`
}

type NewSaleStockOut struct {
	SalesOrderId int               `json:"sales_order_id"`
	WarehouseId  int               `json:"warehouse_id"`
	Remark       string            `json:"remark"`
	Items        []NewMovementItem `json:"items" validate:"dive"`
}

func salesOrderProgress(order *SalesOrder) []orderProgress {
	progress := make([]orderProgress, 0, len(order.Items))
	for _, item := range order.Items {
		progress = append(progress, orderProgress{
			ItemId:   item.ID,
			SkuId:    item.SkuId,
			Quantity: item.Quantity,
			Done:     item.DeliveredQuantity,
			Price:    item.Price,
		})
	}
	return progress
}

func pendingSaleDeliveries(tx *gorm.DB, orderId, excludeDocId int) (map[int]int, error) {
	return pendingQuantities(tx, "sale_stock_out_items", "sale_stock_outs", "sale_stock_out_id",
		"sales_order_id", "sales_order_item_id", orderId, excludeDocId)
}

// CreateSaleStockOut drafts a shipment. Linked to an order, quantities are
// capped by what is still open on the order; with no items all of it is taken.
func CreateSaleStockOut(ctx context.Context, input *NewSaleStockOut) (*SaleStockOut, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	var doc SaleStockOut
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		warehouseId := input.WarehouseId
		var lines []movementLine
		if input.SalesOrderId > 0 {
			order, err := lockSalesOrder(tx, input.SalesOrderId)
			if err != nil {
				return err
			}
			if err := CheckOrderTransition("sales order", order.Status, ActionFulfil); err != nil {
				return err
			}
			if warehouseId == 0 {
				warehouseId = order.WarehouseId
			}
			pending, err := pendingSaleDeliveries(tx, order.ID, 0)
			if err != nil {
				return err
			}
			lines, err = planOrderMovement(salesOrderProgress(order), pending, input.Items)
			if err != nil {
				return err
			}
		} else {
			var err error
			lines, err = planFreeMovement(tx, input.Items, false)
			if err != nil {
				return err
			}
		}
		if err := requireWarehouse(tx, warehouseId); err != nil {
			return err
		}

		seqNo, number, err := nextDocumentNumber[SaleStockOut](ctx, tx, PrefixSaleStockOut)
		if err != nil {
			return err
		}
		doc = SaleStockOut{
			DocNumber:    number,
			SequenceNo:   seqNo,
			SalesOrderId: input.SalesOrderId,
			WarehouseId:  warehouseId,
			Status:       MovementStatusPending,
			TotalAmount:  sumLines(lines),
			Remark:       input.Remark,
		}
		for _, l := range lines {
			doc.Items = append(doc.Items, SaleStockOutItem{
				SalesOrderItemId: l.OrderItemId,
				SkuId:            l.SkuId,
				Quantity:         l.Quantity,
				Price:            l.Price,
				Amount:           l.Amount,
			})
		}
		return tx.Create(&doc).Error
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// AuditSaleStockOut takes the goods out of the ledger and advances the
// order's delivered quantities. Fails with InsufficientStock on any shortage.
func AuditSaleStockOut(ctx context.Context, id int) (*SaleStockOut, error) {
	var doc *SaleStockOut
	err := withDocumentLock(ctx, "sale_stock_out", id, func(tx *gorm.DB) error {
		var err error
		doc, err = lockSaleStockOut(tx, id)
		if err != nil {
			return err
		}
		if err := CheckMovementTransition("sale stock-out", doc.Status, ActionAudit); err != nil {
			return err
		}
		if doc.SalesOrderId > 0 {
			order, err := lockSalesOrder(tx, doc.SalesOrderId)
			if err != nil {
				return err
			}
			if err := CheckOrderTransition("sales order", order.Status, ActionFulfil); err != nil {
				return err
			}
			deltas := make(map[int]int)
			for _, item := range doc.Items {
				deltas[item.SalesOrderItemId] += item.Quantity
			}
			if err := deliverSalesOrderItems(tx, order, deltas); err != nil {
				return err
			}
		}
		for i := range doc.Items {
			item := &doc.Items[i]
			stock, err := AdjustStock(tx, StockAdjustment{
				SkuId:         item.SkuId,
				WarehouseId:   doc.WarehouseId,
				Delta:         -item.Quantity,
				ReferenceType: StockReferenceSaleStockOut,
				ReferenceID:   doc.ID,
			})
			if err != nil {
				return err
			}
			item.CostPrice = stock.CostPrice
			if err := tx.Model(item).Update("cost_price", item.CostPrice).Error; err != nil {
				return err
			}
		}
		doc.Status = MovementStatusAudited
		doc.AuditBy, doc.AuditedAt = auditStamp(tx)
		return tx.Omit(clause.Associations).Save(doc).Error
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// CancelSaleStockOut drops a pending shipment, or puts an audited one back
// into the ledger at its recorded cost and rolls back delivered quantities.
func CancelSaleStockOut(ctx context.Context, id int) (*SaleStockOut, error) {
	var doc *SaleStockOut
	err := withDocumentLock(ctx, "sale_stock_out", id, func(tx *gorm.DB) error {
		var err error
		doc, err = lockSaleStockOut(tx, id)
		if err != nil {
			return err
		}
		if err := CheckMovementTransition("sale stock-out", doc.Status, ActionCancel); err != nil {
			return err
		}
		if doc.Status == MovementStatusAudited {
			if err := reverseSaleStockOut(tx, doc); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		doc.Status = MovementStatusCancelled
		doc.CancelledAt = &now
		return tx.Omit(clause.Associations).Save(doc).Error
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func reverseSaleStockOut(tx *gorm.DB, doc *SaleStockOut) error {
	if doc.SalesOrderId > 0 {
		order, err := lockSalesOrder(tx, doc.SalesOrderId)
		if err != nil {
			return err
		}
		if err := CheckOrderTransition("sales order", order.Status, ActionFulfil); err != nil {
			return err
		}
		returned, err := returnedQuantities(tx, ReturnTypeSale, order.ID, 0)
		if err != nil {
			return err
		}
		deltas := make(map[int]int)
		for _, item := range doc.Items {
			deltas[item.SalesOrderItemId] -= item.Quantity
		}
		for _, item := range order.Items {
			if item.DeliveredQuantity+deltas[item.ID] < returned[item.ID] {
				return utils.NewStateConflict("sku %d of sales order %s is already on a return", item.SkuId, order.OrderNumber)
			}
		}
		if err := deliverSalesOrderItems(tx, order, deltas); err != nil {
			return err
		}
	}
	for _, item := range doc.Items {
		if _, err := AdjustStock(tx, StockAdjustment{
			SkuId:         item.SkuId,
			WarehouseId:   doc.WarehouseId,
			Delta:         item.Quantity,
			UnitCost:      item.CostPrice,
			ReferenceType: StockReferenceSaleStockOut,
			ReferenceID:   doc.ID,
			IsReversal:    true,
		}); err != nil {
			return err
		}
	}
	return nil
}

func GetSaleStockOut(ctx context.Context, id int) (*SaleStockOut, error) {
	doc, err := utils.FetchModel[SaleStockOut](ctx, id, "Items")
	if err != nil {
		return nil, notFoundOr(err, "sale stock-out", id)
	}
	return doc, nil
}

func lockSaleStockOut(tx *gorm.DB, id int) (*SaleStockOut, error) {
	doc, err := utils.FetchModelForUpdate[SaleStockOut](tx, id, "Items")
	if err != nil {
		return nil, notFoundOr(err, "sale stock-out", id)
	}
	return doc, nil
}
