package models_test

import (
	"testing"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/mmdatafocus/warehouse_backend/utils"
)

func TestSaleReturnFullFlow(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 10, "40")
	order := f.auditedSalesOrder(t, map[int]int{f.skuA.ID: 3})
	f.deliverAll(t, order.ID)

	ret, err := models.CreateReturn(f.ctx, &models.NewReturn{
		Type:    models.ReturnTypeSale,
		OrderId: order.ID,
		Items:   []models.NewReturnItem{{OrderItemId: order.Items[0].ID, ReturnQuantity: 2}},
	})
	if err != nil {
		t.Fatalf("CreateReturn: %v", err)
	}
	assertDecimal(t, "total", ret.TotalAmount, "200")
	assertDecimal(t, "refund amount", ret.RefundAmount, "200")
	if ret.TargetId != f.customer.ID || ret.WarehouseId != f.warehouse.ID {
		t.Fatalf("return should inherit customer and warehouse, got %+v", ret)
	}

	refund := &models.RefundInput{Amount: dec("200"), PaymentMethod: "cash"}
	_, err = models.Refund(f.ctx, ret.ID, refund)
	assertKind(t, err, utils.KindStateConflict)

	if _, err := models.AuditReturn(f.ctx, ret.ID); err != nil {
		t.Fatalf("AuditReturn: %v", err)
	}
	record := f.relatedAccountRecord(t, models.RelatedTypeReturn, ret.ID)
	if record.Type != models.AccountTypeReceivable {
		t.Fatalf("return record type = %s, want receivable", record.Type)
	}
	assertDecimal(t, "return record", record.Amount, "-200")
	customer, _ := models.FindCustomer(f.ctx, f.customer.ID)
	assertDecimal(t, "arrears after audit", customer.ArrearsAmount, "100")

	// money goes back only after the goods are in
	_, err = models.Refund(f.ctx, ret.ID, refund)
	assertKind(t, err, utils.KindStateConflict)

	doc, err := models.CreateReturnStock(f.ctx, ret.ID, nil)
	if err != nil {
		t.Fatalf("CreateReturnStock: %v", err)
	}
	if len(doc.Items) != 1 || doc.Items[0].Quantity != 2 {
		t.Fatalf("return stock should take the whole remainder, got %+v", doc.Items)
	}
	_, err = models.CreateReturnStock(f.ctx, ret.ID, nil)
	assertKind(t, err, utils.KindNothingPending)

	if _, err := models.AuditReturnStock(f.ctx, doc.ID); err != nil {
		t.Fatalf("AuditReturnStock: %v", err)
	}
	if got := f.stock(t, f.skuA.ID, f.warehouse.ID).Quantity; got != 9 {
		t.Fatalf("stock after return = %d, want 9", got)
	}
	ret, _ = models.GetReturn(f.ctx, ret.ID)
	if ret.StockStatus != models.ProgressComplete {
		t.Fatalf("stock status = %s, want complete", ret.StockStatus)
	}

	_, err = models.CompleteReturn(f.ctx, ret.ID)
	assertKind(t, err, utils.KindStateConflict)

	_, err = models.Refund(f.ctx, ret.ID, &models.RefundInput{Amount: dec("250"), PaymentMethod: "cash"})
	assertKind(t, err, utils.KindExceedsRefundable)

	ret, err = models.Refund(f.ctx, ret.ID, &models.RefundInput{Amount: dec("120"), PaymentMethod: "cash"})
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if ret.RefundStatus != models.ProgressPartial {
		t.Fatalf("refund status = %s, want partial", ret.RefundStatus)
	}
	ret, err = models.Refund(f.ctx, ret.ID, &models.RefundInput{Amount: dec("80"), PaymentMethod: "cash"})
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	assertDecimal(t, "refunded", ret.RefundedAmount, "200")
	if ret.RefundStatus != models.ProgressComplete {
		t.Fatalf("refund status = %s, want complete", ret.RefundStatus)
	}
	record = f.relatedAccountRecord(t, models.RelatedTypeReturn, ret.ID)
	if record.Status != models.AccountStatusSettled {
		t.Fatalf("return record status = %s, want settled", record.Status)
	}

	ret, err = models.CompleteReturn(f.ctx, ret.ID)
	if err != nil {
		t.Fatalf("CompleteReturn: %v", err)
	}
	if ret.Status != models.ReturnStatusCompleted {
		t.Fatalf("status = %s, want completed", ret.Status)
	}
	_, err = models.CancelReturn(f.ctx, ret.ID)
	assertKind(t, err, utils.KindStateConflict)
}

func TestReturnQuantityIsCappedByFulfilment(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 10, "40")

	pending, err := models.CreateSalesOrder(f.ctx, &models.NewSalesOrder{
		CustomerId:  f.customer.ID,
		WarehouseId: f.warehouse.ID,
		Items:       []models.NewOrderItem{{SkuId: f.skuA.ID, Quantity: 1, Price: dec("100")}},
	})
	if err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}
	_, err = models.CreateReturn(f.ctx, &models.NewReturn{
		Type:    models.ReturnTypeSale,
		OrderId: pending.ID,
		Items:   []models.NewReturnItem{{OrderItemId: pending.Items[0].ID, ReturnQuantity: 1}},
	})
	assertKind(t, err, utils.KindStateConflict)

	order := f.auditedSalesOrder(t, map[int]int{f.skuA.ID: 3})
	stockOut := f.deliverAll(t, order.ID)
	itemId := order.Items[0].ID

	first, err := models.CreateReturn(f.ctx, &models.NewReturn{
		Type:    models.ReturnTypeSale,
		OrderId: order.ID,
		Items:   []models.NewReturnItem{{OrderItemId: itemId, ReturnQuantity: 2}},
	})
	if err != nil {
		t.Fatalf("CreateReturn: %v", err)
	}
	_, err = models.CreateReturn(f.ctx, &models.NewReturn{
		Type:    models.ReturnTypeSale,
		OrderId: order.ID,
		Items:   []models.NewReturnItem{{OrderItemId: itemId, ReturnQuantity: 2}},
	})
	assertKind(t, err, utils.KindValidation)

	// a returned shipment cannot be taken back
	_, err = models.CancelSaleStockOut(f.ctx, stockOut.ID)
	assertKind(t, err, utils.KindStateConflict)

	// editing the return itself is checked without counting it twice
	if _, err := models.UpdateReturn(f.ctx, first.ID, &models.NewReturn{
		Type:    models.ReturnTypeSale,
		OrderId: order.ID,
		Items:   []models.NewReturnItem{{OrderItemId: itemId, ReturnQuantity: 3}},
	}); err != nil {
		t.Fatalf("UpdateReturn: %v", err)
	}
	_, err = models.UpdateReturn(f.ctx, first.ID, &models.NewReturn{
		Type:  models.ReturnTypePurchase,
		Items: []models.NewReturnItem{{SkuId: f.skuA.ID, ReturnQuantity: 1, Price: dec("1")}},
	})
	assertKind(t, err, utils.KindValidation)

	if _, err := models.CancelReturn(f.ctx, first.ID); err != nil {
		t.Fatalf("CancelReturn: %v", err)
	}
	// cancelled returns free their quantities
	if _, err := models.CreateReturn(f.ctx, &models.NewReturn{
		Type:    models.ReturnTypeSale,
		OrderId: order.ID,
		Items:   []models.NewReturnItem{{OrderItemId: itemId, ReturnQuantity: 3}},
	}); err != nil {
		t.Fatalf("CreateReturn after cancel: %v", err)
	}
}

func TestPurchaseReturnNeedsStockOnHand(t *testing.T) {
	f := newFixture(t)
	order := f.auditedPurchaseOrder(t, f.skuA.ID, 5, "30")
	stockIn, err := models.CreatePurchaseStockIn(f.ctx, &models.NewPurchaseStockIn{PurchaseOrderId: order.ID})
	if err != nil {
		t.Fatalf("CreatePurchaseStockIn: %v", err)
	}
	if _, err := models.AuditPurchaseStockIn(f.ctx, stockIn.ID); err != nil {
		t.Fatalf("AuditPurchaseStockIn: %v", err)
	}

	// three of the five leave without an order
	shipment, err := models.CreateSaleStockOut(f.ctx, &models.NewSaleStockOut{
		WarehouseId: f.warehouse.ID,
		Items:       []models.NewMovementItem{{SkuId: f.skuA.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("CreateSaleStockOut: %v", err)
	}
	if _, err := models.AuditSaleStockOut(f.ctx, shipment.ID); err != nil {
		t.Fatalf("AuditSaleStockOut: %v", err)
	}

	ret, err := models.CreateReturn(f.ctx, &models.NewReturn{
		Type:    models.ReturnTypePurchase,
		OrderId: order.ID,
		Items:   []models.NewReturnItem{{OrderItemId: order.Items[0].ID, ReturnQuantity: 5}},
	})
	if err != nil {
		t.Fatalf("CreateReturn: %v", err)
	}
	if _, err := models.AuditReturn(f.ctx, ret.ID); err != nil {
		t.Fatalf("AuditReturn: %v", err)
	}
	supplier, _ := models.FindSupplier(f.ctx, f.supplier.ID)
	assertDecimal(t, "supplier arrears after return audit", supplier.ArrearsAmount, "0")

	doc, err := models.CreateReturnStock(f.ctx, ret.ID, &models.NewReturnStock{})
	if err != nil {
		t.Fatalf("CreateReturnStock: %v", err)
	}
	_, err = models.AuditReturnStock(f.ctx, doc.ID)
	assertKind(t, err, utils.KindInsufficientStock)
	if got := f.stock(t, f.skuA.ID, f.warehouse.ID).Quantity; got != 2 {
		t.Fatalf("stock = %d, want 2 after failed audit", got)
	}

	if _, err := models.CancelReturnStock(f.ctx, doc.ID); err != nil {
		t.Fatalf("CancelReturnStock: %v", err)
	}
	ret, _ = models.GetReturn(f.ctx, ret.ID)
	if ret.Items[0].ProcessedQuantity != 0 {
		t.Fatalf("processed = %d, want 0 after cancel", ret.Items[0].ProcessedQuantity)
	}

	if _, err := models.CancelReturn(f.ctx, ret.ID); err != nil {
		t.Fatalf("CancelReturn: %v", err)
	}
	supplier, _ = models.FindSupplier(f.ctx, f.supplier.ID)
	assertDecimal(t, "supplier arrears after cancel", supplier.ArrearsAmount, "150")
}

func TestPartialReturnStockAndReversal(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 10, "40")
	order := f.auditedSalesOrder(t, map[int]int{f.skuA.ID: 4})
	f.deliverAll(t, order.ID)

	ret, err := models.CreateReturn(f.ctx, &models.NewReturn{
		Type:    models.ReturnTypeSale,
		OrderId: order.ID,
		Items:   []models.NewReturnItem{{OrderItemId: order.Items[0].ID, ReturnQuantity: 4}},
	})
	if err != nil {
		t.Fatalf("CreateReturn: %v", err)
	}
	_, err = models.CreateReturnStock(f.ctx, ret.ID, nil)
	assertKind(t, err, utils.KindStateConflict)

	ret, err = models.AuditReturn(f.ctx, ret.ID)
	if err != nil {
		t.Fatalf("AuditReturn: %v", err)
	}
	itemId := ret.Items[0].ID
	_, err = models.CreateReturnStock(f.ctx, ret.ID, &models.NewReturnStock{
		Items: []models.ReturnStockLine{{ReturnItemId: itemId, Quantity: 5}},
	})
	assertKind(t, err, utils.KindValidation)

	doc, err := models.CreateReturnStock(f.ctx, ret.ID, &models.NewReturnStock{
		Items: []models.ReturnStockLine{{ReturnItemId: itemId, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateReturnStock: %v", err)
	}
	if _, err := models.AuditReturnStock(f.ctx, doc.ID); err != nil {
		t.Fatalf("AuditReturnStock: %v", err)
	}
	ret, _ = models.GetReturn(f.ctx, ret.ID)
	if ret.StockStatus != models.ProgressPartial {
		t.Fatalf("stock status = %s, want partial", ret.StockStatus)
	}

	// an audited return stock with stock on the books blocks cancelling the return
	_, err = models.CancelReturn(f.ctx, ret.ID)
	assertKind(t, err, utils.KindStateConflict)

	if _, err := models.CancelReturnStock(f.ctx, doc.ID); err != nil {
		t.Fatalf("CancelReturnStock: %v", err)
	}
	if got := f.stock(t, f.skuA.ID, f.warehouse.ID).Quantity; got != 6 {
		t.Fatalf("stock after reversal = %d, want 6", got)
	}
	ret, _ = models.GetReturn(f.ctx, ret.ID)
	if ret.StockStatus != models.ProgressPending || ret.Items[0].StockedQuantity != 0 || ret.Items[0].ProcessedQuantity != 0 {
		t.Fatalf("unexpected return after reversal %+v", ret)
	}

	if _, err := models.CancelReturn(f.ctx, ret.ID); err != nil {
		t.Fatalf("CancelReturn: %v", err)
	}
	var records int64
	if err := config.GetDB().Model(&models.AccountRecord{}).
		Where("related_type = ? AND related_id = ?", models.RelatedTypeReturn, ret.ID).
		Count(&records).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if records != 0 {
		t.Fatalf("return account record should be withdrawn, found %d", records)
	}
}

func TestReturnWithoutOrderAndPartialRefund(t *testing.T) {
	f := newFixture(t)

	_, err := models.CreateReturn(f.ctx, &models.NewReturn{
		Type:        models.ReturnTypeSale,
		WarehouseId: f.warehouse.ID,
		Items:       []models.NewReturnItem{{SkuId: f.skuB.ID, ReturnQuantity: 1, Price: dec("100")}},
	})
	assertKind(t, err, utils.KindValidation)

	tooMuch := dec("101")
	_, err = models.CreateReturn(f.ctx, &models.NewReturn{
		Type:         models.ReturnTypeSale,
		TargetId:     f.customer.ID,
		WarehouseId:  f.warehouse.ID,
		RefundAmount: &tooMuch,
		Items:        []models.NewReturnItem{{SkuId: f.skuB.ID, ReturnQuantity: 1, Price: dec("100")}},
	})
	assertKind(t, err, utils.KindValidation)

	zero := dec("0")
	ret, err := models.CreateReturn(f.ctx, &models.NewReturn{
		Type:         models.ReturnTypeSale,
		TargetId:     f.customer.ID,
		WarehouseId:  f.warehouse.ID,
		RefundAmount: &zero,
		Items:        []models.NewReturnItem{{SkuId: f.skuB.ID, ReturnQuantity: 1, Price: dec("100")}},
	})
	if err != nil {
		t.Fatalf("CreateReturn: %v", err)
	}
	ret, err = models.AuditReturn(f.ctx, ret.ID)
	if err != nil {
		t.Fatalf("AuditReturn: %v", err)
	}
	if ret.RefundStatus != models.ProgressComplete {
		t.Fatalf("zero refund should be complete at audit, got %s", ret.RefundStatus)
	}
	doc, err := models.CreateReturnStock(f.ctx, ret.ID, nil)
	if err != nil {
		t.Fatalf("CreateReturnStock: %v", err)
	}
	if _, err := models.AuditReturnStock(f.ctx, doc.ID); err != nil {
		t.Fatalf("AuditReturnStock: %v", err)
	}
	// the returned sku had no stock row, so it enters at its purchase price
	b := f.stock(t, f.skuB.ID, f.warehouse.ID)
	if b.Quantity != 1 {
		t.Fatalf("quantity = %d, want 1", b.Quantity)
	}
	assertDecimal(t, "cost", b.CostPrice, "40")

	_, err = models.Refund(f.ctx, ret.ID, &models.RefundInput{Amount: dec("10"), PaymentMethod: "cash"})
	assertKind(t, err, utils.KindExceedsRefundable)

	if _, err := models.CompleteReturn(f.ctx, ret.ID); err != nil {
		t.Fatalf("CompleteReturn: %v", err)
	}
}
