package models_test

import (
	"testing"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/mmdatafocus/warehouse_backend/utils"
)

func TestReconciliationCleanAfterWorkflow(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 10, "40")
	order := f.auditedSalesOrder(t, map[int]int{f.skuA.ID: 4})
	f.deliverAll(t, order.ID)
	record := f.relatedAccountRecord(t, models.RelatedTypeSalesOrder, order.ID)
	if _, err := models.PayAccountRecord(f.ctx, record.ID, &models.DirectPaymentInput{Amount: dec("150"), PaymentMethod: "cash"}); err != nil {
		t.Fatalf("PayAccountRecord: %v", err)
	}

	cid, findings, err := models.RunReconciliationChecks(f.ctx, true)
	if err != nil {
		t.Fatalf("RunReconciliationChecks: %v", err)
	}
	if cid == "" {
		t.Fatalf("expected a correlation id")
	}
	if len(findings) != 0 {
		t.Fatalf("expected no findings, got %+v", findings)
	}
}

func TestReconciliationReportsCorruption(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 10, "40")
	stock := f.stock(t, f.skuA.ID, f.warehouse.ID)

	// bypass the ledger to simulate a bad write
	if err := config.GetDB().Exec("UPDATE stocks SET quantity = 12 WHERE id = ?", stock.ID).Error; err != nil {
		t.Fatalf("corrupt stock: %v", err)
	}

	ctx := utils.SetCorrelationIdInContext(f.ctx, "run-1")
	cid, findings, err := models.RunReconciliationChecks(ctx, true)
	if err != nil {
		t.Fatalf("RunReconciliationChecks: %v", err)
	}
	if cid != "run-1" {
		t.Fatalf("correlation id = %q, want run-1", cid)
	}

	checks := make(map[string]bool)
	for _, finding := range findings {
		if finding.EntityId != stock.ID {
			t.Fatalf("unexpected finding %+v", finding)
		}
		checks[finding.CheckType] = true
	}
	if !checks[models.CheckStockTotal] || !checks[models.CheckStockHistory] {
		t.Fatalf("expected total and history findings, got %+v", findings)
	}

	var stored int64
	config.GetDB().Model(&models.ReconciliationReport{}).Where("correlation_id = ?", "run-1").Count(&stored)
	if stored != int64(len(findings)) {
		t.Fatalf("stored reports = %d, want %d", stored, len(findings))
	}
}
