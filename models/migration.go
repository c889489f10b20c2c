package models

import (
	"log"

	"github.com/mmdatafocus/warehouse_backend/config"
)

// Models lists every table owned by this service.
func Models() []interface{} {
	return []interface{}{
		&Warehouse{}, &Customer{}, &Supplier{}, &Product{}, &Sku{},
		&Stock{}, &StockHistory{},
		&PurchaseOrder{}, &PurchaseOrderItem{}, &SalesOrder{}, &SalesOrderItem{},
		&PurchaseStockIn{}, &PurchaseStockInItem{}, &SaleStockOut{}, &SaleStockOutItem{},
		&StockTransfer{}, &StockTransferItem{}, &StockTake{}, &StockTakeItem{},
		&Return{}, &ReturnItem{}, &ReturnStock{}, &ReturnStockItem{},
		&AccountRecord{}, &FinancialRecord{}, &Settlement{},
		&IdempotencyKey{}, &DocumentSequence{},
		&ReconciliationReport{},
	}
}

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(Models()...)
	if err != nil {
		log.Fatal(err)
	}
}
