package models_test

import (
	"sync"
	"testing"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/models"
)

func TestDocumentNumbersAreUniqueUnderConcurrentCreates(t *testing.T) {
	f := newFixture(t)

	const workers = 8
	numbers := make(chan string, workers)
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := models.CreatePurchaseOrder(f.ctx, &models.NewPurchaseOrder{
				SupplierId:  f.supplier.ID,
				WarehouseId: f.warehouse.ID,
				Items:       []models.NewOrderItem{{SkuId: f.skuA.ID, Quantity: 1, Price: dec("10")}},
			})
			if err != nil {
				errs <- err
				return
			}
			numbers <- order.OrderNumber
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	seen := make(map[string]bool)
	for number := range numbers {
		if seen[number] {
			t.Fatalf("document number %s handed out twice", number)
		}
		seen[number] = true
	}
	if len(seen) != workers {
		t.Fatalf("got %d numbers, want %d", len(seen), workers)
	}
	if !seen["PO000001"] || !seen["PO000008"] {
		t.Fatalf("numbers should run PO000001..PO000008, got %v", seen)
	}

	var seq models.DocumentSequence
	if err := config.GetDB().Where("name = ?", "PurchaseOrder").First(&seq).Error; err != nil {
		t.Fatalf("read sequence: %v", err)
	}
	if seq.Value != workers {
		t.Fatalf("sequence value = %d, want %d", seq.Value, workers)
	}
}

func TestDocumentNumbersSkipPastExistingRows(t *testing.T) {
	f := newFixture(t)
	first := f.auditedPurchaseOrder(t, f.skuA.ID, 1, "10")
	if first.OrderNumber != "PO000001" {
		t.Fatalf("first number = %s, want PO000001", first.OrderNumber)
	}
	// rows numbered while redis handed out the counter
	if err := config.GetDB().Exec("UPDATE purchase_orders SET sequence_no = 10 WHERE id = ?", first.ID).Error; err != nil {
		t.Fatalf("bump sequence_no: %v", err)
	}
	next := f.auditedPurchaseOrder(t, f.skuA.ID, 1, "10")
	if next.SequenceNo != 11 || next.OrderNumber != "PO000011" {
		t.Fatalf("next = %d %s, want 11 PO000011", next.SequenceNo, next.OrderNumber)
	}
}
