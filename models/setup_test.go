package models_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/mmdatafocus/warehouse_backend/testutil"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	testutil.SetupTestDB(t)
}

func actorContext(isAdmin bool, permissions ...string) context.Context {
	return testutil.ActorContext(isAdmin, permissions...)
}

type fixture struct {
	ctx       context.Context
	warehouse *models.Warehouse
	customer  *models.Customer
	supplier  *models.Supplier
	skuA      models.Sku
	skuB      models.Sku
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	setupTestDB(t)
	ctx := actorContext(false)

	warehouse, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Main"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Alice"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Acme"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Name: "Shirt",
		Code: "sh",
		Skus: []models.NewSku{
			{Spec: map[string]string{"color": "red", "size": "L"}, PurchasePrice: dec("40"), SalePrice: dec("100")},
			{Spec: map[string]string{"color": "blue", "size": "L"}, PurchasePrice: dec("40"), SalePrice: dec("100")},
		},
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	return &fixture{
		ctx:       ctx,
		warehouse: warehouse,
		customer:  customer,
		supplier:  supplier,
		skuA:      product.Skus[0],
		skuB:      product.Skus[1],
	}
}

func (f *fixture) seedStock(t *testing.T, skuId, warehouseId, qty int, cost string) {
	t.Helper()
	err := config.GetDB().WithContext(f.ctx).Transaction(func(tx *gorm.DB) error {
		_, err := models.AdjustStock(tx, models.StockAdjustment{
			SkuId:         skuId,
			WarehouseId:   warehouseId,
			Delta:         qty,
			UnitCost:      dec(cost),
			ReferenceType: models.StockReferenceStockTake,
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func (f *fixture) stock(t *testing.T, skuId, warehouseId int) models.Stock {
	t.Helper()
	var stock models.Stock
	err := config.GetDB().Where("sku_id = ? AND warehouse_id = ?", skuId, warehouseId).First(&stock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Stock{SkuId: skuId, WarehouseId: warehouseId}
	}
	if err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return stock
}

// auditedSalesOrder creates and audits a sales order for the given sku quantities at price 100.
func (f *fixture) auditedSalesOrder(t *testing.T, lines map[int]int) *models.SalesOrder {
	t.Helper()
	input := &models.NewSalesOrder{CustomerId: f.customer.ID, WarehouseId: f.warehouse.ID}
	for _, sku := range []models.Sku{f.skuA, f.skuB} {
		if qty, ok := lines[sku.ID]; ok {
			input.Items = append(input.Items, models.NewOrderItem{SkuId: sku.ID, Quantity: qty, Price: dec("100")})
		}
	}
	order, err := models.CreateSalesOrder(f.ctx, input)
	if err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}
	order, err = models.AuditSalesOrder(f.ctx, order.ID)
	if err != nil {
		t.Fatalf("AuditSalesOrder: %v", err)
	}
	return order
}

func (f *fixture) auditedPurchaseOrder(t *testing.T, skuId, qty int, price string) *models.PurchaseOrder {
	t.Helper()
	order, err := models.CreatePurchaseOrder(f.ctx, &models.NewPurchaseOrder{
		SupplierId:  f.supplier.ID,
		WarehouseId: f.warehouse.ID,
		Items:       []models.NewOrderItem{{SkuId: skuId, Quantity: qty, Price: dec(price)}},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	order, err = models.AuditPurchaseOrder(f.ctx, order.ID)
	if err != nil {
		t.Fatalf("AuditPurchaseOrder: %v", err)
	}
	return order
}

func (f *fixture) deliverAll(t *testing.T, orderId int) *models.SaleStockOut {
	t.Helper()
	doc, err := models.CreateSaleStockOut(f.ctx, &models.NewSaleStockOut{SalesOrderId: orderId})
	if err != nil {
		t.Fatalf("CreateSaleStockOut: %v", err)
	}
	doc, err = models.AuditSaleStockOut(f.ctx, doc.ID)
	if err != nil {
		t.Fatalf("AuditSaleStockOut: %v", err)
	}
	return doc
}

func (f *fixture) receive(t *testing.T, order *models.PurchaseOrder, qty int) *models.PurchaseStockIn {
	t.Helper()
	doc, err := models.CreatePurchaseStockIn(f.ctx, &models.NewPurchaseStockIn{
		PurchaseOrderId: order.ID,
		Items:           []models.NewMovementItem{{OrderItemId: order.Items[0].ID, Quantity: qty}},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseStockIn: %v", err)
	}
	doc, err = models.AuditPurchaseStockIn(f.ctx, doc.ID)
	if err != nil {
		t.Fatalf("AuditPurchaseStockIn: %v", err)
	}
	return doc
}

func (f *fixture) relatedAccountRecord(t *testing.T, relatedType models.RelatedType, relatedId int) models.AccountRecord {
	t.Helper()
	var record models.AccountRecord
	if err := config.GetDB().Where("related_type = ? AND related_id = ?", relatedType, relatedId).First(&record).Error; err != nil {
		t.Fatalf("read account record: %v", err)
	}
	return record
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s = %s, want %s", name, got.String(), want)
	}
}

func assertKind(t *testing.T, err error, kind utils.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", kind)
	}
	if got := utils.KindOf(err); got != kind {
		t.Fatalf("expected %s, got %s (%v)", kind, got, err)
	}
}
