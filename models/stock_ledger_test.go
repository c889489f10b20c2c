package models_test

import (
	"testing"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
)

func TestAdjustStockLastInCostAndTotals(t *testing.T) {
	f := newFixture(t)

	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 10, "5")
	stock := f.stock(t, f.skuA.ID, f.warehouse.ID)
	if stock.Quantity != 10 {
		t.Fatalf("quantity = %d, want 10", stock.Quantity)
	}
	assertDecimal(t, "total_amount", stock.TotalAmount, "50")

	// a later stock-in replaces the cost, no averaging
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 5, "8")
	stock = f.stock(t, f.skuA.ID, f.warehouse.ID)
	if stock.Quantity != 15 {
		t.Fatalf("quantity = %d, want 15", stock.Quantity)
	}
	assertDecimal(t, "cost_price", stock.CostPrice, "8")
	assertDecimal(t, "total_amount", stock.TotalAmount, "120")

	var histories int64
	config.GetDB().Model(&models.StockHistory{}).Where("sku_id = ?", f.skuA.ID).Count(&histories)
	if histories != 2 {
		t.Fatalf("stock histories = %d, want 2", histories)
	}
}

func TestAdjustStockRejectsNegative(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 3, "5")

	err := config.GetDB().Transaction(func(tx *gorm.DB) error {
		_, err := models.AdjustStock(tx, models.StockAdjustment{
			SkuId:       f.skuA.ID,
			WarehouseId: f.warehouse.ID,
			Delta:       -4,
		})
		return err
	})
	assertKind(t, err, utils.KindInsufficientStock)

	if got := f.stock(t, f.skuA.ID, f.warehouse.ID).Quantity; got != 3 {
		t.Fatalf("quantity = %d, want 3 after failed decrease", got)
	}

	// decrease of a sku that never had a row
	err = config.GetDB().Transaction(func(tx *gorm.DB) error {
		_, err := models.AdjustStock(tx, models.StockAdjustment{
			SkuId:       f.skuB.ID,
			WarehouseId: f.warehouse.ID,
			Delta:       -1,
		})
		return err
	})
	assertKind(t, err, utils.KindInsufficientStock)
}

func TestStockTransferMovesGoodsAtSourceCost(t *testing.T) {
	f := newFixture(t)
	other, err := models.CreateWarehouse(f.ctx, &models.NewWarehouse{Name: "Second"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 10, "7")

	_, err = models.CreateStockTransfer(f.ctx, &models.NewStockTransfer{
		FromWarehouseId: f.warehouse.ID,
		ToWarehouseId:   f.warehouse.ID,
		Items:           []models.NewMovementItem{{SkuId: f.skuA.ID, Quantity: 1}},
	})
	assertKind(t, err, utils.KindValidation)

	doc, err := models.CreateStockTransfer(f.ctx, &models.NewStockTransfer{
		FromWarehouseId: f.warehouse.ID,
		ToWarehouseId:   other.ID,
		Items:           []models.NewMovementItem{{SkuId: f.skuA.ID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("CreateStockTransfer: %v", err)
	}
	if got := f.stock(t, f.skuA.ID, f.warehouse.ID).Quantity; got != 10 {
		t.Fatalf("pending transfer moved stock: %d", got)
	}

	doc, err = models.AuditStockTransfer(f.ctx, doc.ID)
	if err != nil {
		t.Fatalf("AuditStockTransfer: %v", err)
	}
	assertDecimal(t, "transfer total", doc.TotalAmount, "28")
	if got := f.stock(t, f.skuA.ID, f.warehouse.ID).Quantity; got != 6 {
		t.Fatalf("source quantity = %d, want 6", got)
	}
	dest := f.stock(t, f.skuA.ID, other.ID)
	if dest.Quantity != 4 {
		t.Fatalf("destination quantity = %d, want 4", dest.Quantity)
	}
	assertDecimal(t, "destination cost", dest.CostPrice, "7")

	_, err = models.AuditStockTransfer(f.ctx, doc.ID)
	assertKind(t, err, utils.KindStateConflict)

	if _, err := models.CancelStockTransfer(f.ctx, doc.ID); err != nil {
		t.Fatalf("CancelStockTransfer: %v", err)
	}
	if got := f.stock(t, f.skuA.ID, f.warehouse.ID).Quantity; got != 10 {
		t.Fatalf("source quantity after cancel = %d, want 10", got)
	}
	if got := f.stock(t, f.skuA.ID, other.ID).Quantity; got != 0 {
		t.Fatalf("destination quantity after cancel = %d, want 0", got)
	}
}

func TestStockTakeAppliesDifferenceAtAudit(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 10, "5")

	doc, err := models.CreateStockTake(f.ctx, &models.NewStockTake{
		WarehouseId: f.warehouse.ID,
		Items: []models.NewStockTakeItem{
			{SkuId: f.skuA.ID, CountedQuantity: 8},
			{SkuId: f.skuB.ID, CountedQuantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("CreateStockTake: %v", err)
	}

	// stock moves between entry and audit; the difference follows the ledger
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 1, "5")

	doc, err = models.AuditStockTake(f.ctx, doc.ID)
	if err != nil {
		t.Fatalf("AuditStockTake: %v", err)
	}
	for _, item := range doc.Items {
		switch item.SkuId {
		case f.skuA.ID:
			if item.SystemQuantity != 11 || item.Difference != -3 {
				t.Fatalf("sku A system=%d diff=%d, want 11/-3", item.SystemQuantity, item.Difference)
			}
		case f.skuB.ID:
			if item.SystemQuantity != 0 || item.Difference != 3 {
				t.Fatalf("sku B system=%d diff=%d, want 0/3", item.SystemQuantity, item.Difference)
			}
		}
	}
	if got := f.stock(t, f.skuA.ID, f.warehouse.ID).Quantity; got != 8 {
		t.Fatalf("sku A quantity = %d, want 8", got)
	}
	b := f.stock(t, f.skuB.ID, f.warehouse.ID)
	if b.Quantity != 3 {
		t.Fatalf("sku B quantity = %d, want 3", b.Quantity)
	}
	// new row takes the sku purchase price
	assertDecimal(t, "sku B cost", b.CostPrice, "40")

	if _, err := models.CancelStockTake(f.ctx, doc.ID); err != nil {
		t.Fatalf("CancelStockTake: %v", err)
	}
	if got := f.stock(t, f.skuA.ID, f.warehouse.ID).Quantity; got != 11 {
		t.Fatalf("sku A quantity after cancel = %d, want 11", got)
	}
	if got := f.stock(t, f.skuB.ID, f.warehouse.ID).Quantity; got != 0 {
		t.Fatalf("sku B quantity after cancel = %d, want 0", got)
	}
}

func TestCancelStockInRestoresCostPrice(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 10, "20")
	order := f.auditedPurchaseOrder(t, f.skuA.ID, 10, "30")
	doc := f.receive(t, order, 5)

	stock := f.stock(t, f.skuA.ID, f.warehouse.ID)
	assertDecimal(t, "cost after receipt", stock.CostPrice, "30")
	assertDecimal(t, "total after receipt", stock.TotalAmount, "450")

	if _, err := models.CancelPurchaseStockIn(f.ctx, doc.ID); err != nil {
		t.Fatalf("CancelPurchaseStockIn: %v", err)
	}
	stock = f.stock(t, f.skuA.ID, f.warehouse.ID)
	if stock.Quantity != 10 {
		t.Fatalf("quantity after cancel = %d, want 10", stock.Quantity)
	}
	assertDecimal(t, "cost after cancel", stock.CostPrice, "20")
	assertDecimal(t, "total after cancel", stock.TotalAmount, "200")

	order, _ = models.GetPurchaseOrder(f.ctx, order.ID)
	if order.Status != models.OrderStatusAudited || order.Items[0].ReceivedQuantity != 0 {
		t.Fatalf("order after cancel = %s received %d, want audited received 0", order.Status, order.Items[0].ReceivedQuantity)
	}
}

func TestCancelStockInKeepsLaterCost(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 10, "20")
	order := f.auditedPurchaseOrder(t, f.skuA.ID, 10, "30")
	doc := f.receive(t, order, 5)
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 2, "35")

	if _, err := models.CancelPurchaseStockIn(f.ctx, doc.ID); err != nil {
		t.Fatalf("CancelPurchaseStockIn: %v", err)
	}
	stock := f.stock(t, f.skuA.ID, f.warehouse.ID)
	if stock.Quantity != 12 {
		t.Fatalf("quantity after cancel = %d, want 12", stock.Quantity)
	}
	assertDecimal(t, "cost after cancel", stock.CostPrice, "35")
	assertDecimal(t, "total after cancel", stock.TotalAmount, "420")
}

func TestCancelTransferRestoresDestinationCost(t *testing.T) {
	f := newFixture(t)
	other, err := models.CreateWarehouse(f.ctx, &models.NewWarehouse{Name: "Second"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 10, "7")
	f.seedStock(t, f.skuA.ID, other.ID, 3, "9")

	doc, err := models.CreateStockTransfer(f.ctx, &models.NewStockTransfer{
		FromWarehouseId: f.warehouse.ID,
		ToWarehouseId:   other.ID,
		Items:           []models.NewMovementItem{{SkuId: f.skuA.ID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("CreateStockTransfer: %v", err)
	}
	if _, err := models.AuditStockTransfer(f.ctx, doc.ID); err != nil {
		t.Fatalf("AuditStockTransfer: %v", err)
	}
	assertDecimal(t, "destination cost", f.stock(t, f.skuA.ID, other.ID).CostPrice, "7")

	if _, err := models.CancelStockTransfer(f.ctx, doc.ID); err != nil {
		t.Fatalf("CancelStockTransfer: %v", err)
	}
	dest := f.stock(t, f.skuA.ID, other.ID)
	if dest.Quantity != 3 {
		t.Fatalf("destination quantity = %d, want 3", dest.Quantity)
	}
	assertDecimal(t, "destination cost after cancel", dest.CostPrice, "9")
	assertDecimal(t, "destination total after cancel", dest.TotalAmount, "27")
}
