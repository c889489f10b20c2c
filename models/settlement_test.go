package models_test

import (
	"strings"
	"testing"

	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/mmdatafocus/warehouse_backend/utils"
)

func newFinancialRecord(t *testing.T, f *fixture, typ models.FinancialType, amount string) *models.FinancialRecord {
	t.Helper()
	record, err := models.CreateFinancialRecord(f.ctx, &models.NewFinancialRecord{
		Type:          typ,
		Amount:        dec(amount),
		PaymentMethod: "bank",
	})
	if err != nil {
		t.Fatalf("CreateFinancialRecord: %v", err)
	}
	return record
}

func TestSettlementReducesBalanceAndArrears(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 10, "40")
	order := f.auditedSalesOrder(t, map[int]int{f.skuA.ID: 5})
	record := f.relatedAccountRecord(t, models.RelatedTypeSalesOrder, order.ID)
	income := newFinancialRecord(t, f, models.FinancialTypeIncome, "600")

	settlement, err := models.CreateSettlement(f.ctx, &models.NewSettlement{
		AccountRecordId:   record.ID,
		FinancialRecordId: income.ID,
		AccountType:       models.AccountTypeReceivable,
		Amount:            dec("300"),
	})
	if err != nil {
		t.Fatalf("CreateSettlement: %v", err)
	}
	if settlement.Status != models.SettlementStatusActive || settlement.CreatedBy != 1 {
		t.Fatalf("unexpected settlement %+v", settlement)
	}

	updated, err := models.GetAccountRecord(f.ctx, record.ID)
	if err != nil {
		t.Fatalf("GetAccountRecord: %v", err)
	}
	assertDecimal(t, "paid", updated.PaidAmount, "300")
	assertDecimal(t, "balance", updated.BalanceAmount, "200")
	if updated.Status != models.AccountStatusUnsettled {
		t.Fatalf("status = %s, want unsettled", updated.Status)
	}
	order, _ = models.GetSalesOrder(f.ctx, order.ID)
	assertDecimal(t, "order paid", order.PaidAmount, "300")
	customer, _ := models.FindCustomer(f.ctx, f.customer.ID)
	assertDecimal(t, "arrears", customer.ArrearsAmount, "200")
	income, _ = models.GetFinancialRecord(f.ctx, income.ID)
	assertDecimal(t, "allocated", income.SettledAmount, "300")

	// more than the record's balance, although the income could cover it
	_, err = models.CreateSettlement(f.ctx, &models.NewSettlement{
		AccountRecordId:   record.ID,
		FinancialRecordId: income.ID,
		Amount:            dec("250"),
	})
	assertKind(t, err, utils.KindExceedsBalance)

	if _, err := models.CreateSettlement(f.ctx, &models.NewSettlement{
		AccountRecordId:   record.ID,
		FinancialRecordId: income.ID,
		Amount:            dec("200"),
	}); err != nil {
		t.Fatalf("settling the rest: %v", err)
	}
	updated, _ = models.GetAccountRecord(f.ctx, record.ID)
	if updated.Status != models.AccountStatusSettled {
		t.Fatalf("status = %s, want settled", updated.Status)
	}

	// settled records take nothing more
	_, err = models.CreateSettlement(f.ctx, &models.NewSettlement{
		AccountRecordId:   record.ID,
		FinancialRecordId: income.ID,
		Amount:            dec("1"),
	})
	assertKind(t, err, utils.KindExceedsBalance)
}

func TestSettlementRejectsMismatchedTypes(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 10, "40")
	order := f.auditedSalesOrder(t, map[int]int{f.skuA.ID: 1})
	record := f.relatedAccountRecord(t, models.RelatedTypeSalesOrder, order.ID)
	income := newFinancialRecord(t, f, models.FinancialTypeIncome, "100")
	expense := newFinancialRecord(t, f, models.FinancialTypeExpense, "100")

	_, err := models.CreateSettlement(f.ctx, &models.NewSettlement{
		AccountRecordId:   record.ID,
		FinancialRecordId: income.ID,
		AccountType:       models.AccountTypePayable,
		Amount:            dec("10"),
	})
	assertKind(t, err, utils.KindTypeMismatch)

	// receivables are settled by income only
	_, err = models.CreateSettlement(f.ctx, &models.NewSettlement{
		AccountRecordId:   record.ID,
		FinancialRecordId: expense.ID,
		Amount:            dec("10"),
	})
	assertKind(t, err, utils.KindTypeMismatch)

	_, err = models.CreateSettlement(f.ctx, &models.NewSettlement{
		AccountRecordId:   record.ID,
		FinancialRecordId: income.ID,
		Amount:            dec("0"),
	})
	assertKind(t, err, utils.KindValidation)

	_, err = models.CreateSettlement(f.ctx, &models.NewSettlement{
		AccountRecordId:   record.ID,
		FinancialRecordId: 9999,
		Amount:            dec("10"),
	})
	assertKind(t, err, utils.KindNotFound)
}

func TestSettlementCannotOverdrawFinancialRecord(t *testing.T) {
	f := newFixture(t)
	order := f.auditedPurchaseOrder(t, f.skuA.ID, 10, "30")
	record := f.relatedAccountRecord(t, models.RelatedTypePurchaseOrder, order.ID)
	expense := newFinancialRecord(t, f, models.FinancialTypeExpense, "100")

	_, err := models.CreateSettlement(f.ctx, &models.NewSettlement{
		AccountRecordId:   record.ID,
		FinancialRecordId: expense.ID,
		Amount:            dec("150"),
	})
	assertKind(t, err, utils.KindExceedsBalance)

	if _, err := models.CreateSettlement(f.ctx, &models.NewSettlement{
		AccountRecordId:   record.ID,
		FinancialRecordId: expense.ID,
		Amount:            dec("100"),
	}); err != nil {
		t.Fatalf("CreateSettlement: %v", err)
	}
	supplier, _ := models.FindSupplier(f.ctx, f.supplier.ID)
	assertDecimal(t, "supplier arrears", supplier.ArrearsAmount, "200")
	order, _ = models.GetPurchaseOrder(f.ctx, order.ID)
	assertDecimal(t, "order paid", order.PaidAmount, "100")
}

func TestCancelSettlementRestoresEverything(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 10, "40")
	order := f.auditedSalesOrder(t, map[int]int{f.skuA.ID: 5})
	record := f.relatedAccountRecord(t, models.RelatedTypeSalesOrder, order.ID)
	income := newFinancialRecord(t, f, models.FinancialTypeIncome, "500")

	settlement, err := models.CreateSettlement(f.ctx, &models.NewSettlement{
		AccountRecordId:   record.ID,
		FinancialRecordId: income.ID,
		Amount:            dec("500"),
	})
	if err != nil {
		t.Fatalf("CreateSettlement: %v", err)
	}

	_, err = models.CancelSettlement(f.ctx, settlement.ID)
	assertKind(t, err, utils.KindPermissionDenied)

	cashier := actorContext(false, models.PermissionCancelSettlement)
	cancelled, err := models.CancelSettlement(cashier, settlement.ID)
	if err != nil {
		t.Fatalf("CancelSettlement: %v", err)
	}
	if cancelled.Status != models.SettlementStatusCancelled || cancelled.CancelledBy != 1 {
		t.Fatalf("unexpected cancelled settlement %+v", cancelled)
	}

	updated, _ := models.GetAccountRecord(f.ctx, record.ID)
	assertDecimal(t, "paid", updated.PaidAmount, "0")
	assertDecimal(t, "balance", updated.BalanceAmount, "500")
	if updated.Status != models.AccountStatusUnsettled {
		t.Fatalf("status = %s, want unsettled", updated.Status)
	}
	order, _ = models.GetSalesOrder(f.ctx, order.ID)
	assertDecimal(t, "order paid", order.PaidAmount, "0")
	customer, _ := models.FindCustomer(f.ctx, f.customer.ID)
	assertDecimal(t, "arrears", customer.ArrearsAmount, "500")
	income, _ = models.GetFinancialRecord(f.ctx, income.ID)
	assertDecimal(t, "allocated", income.SettledAmount, "0")

	stored, err := models.GetSettlement(f.ctx, settlement.ID)
	if err != nil {
		t.Fatalf("GetSettlement: %v", err)
	}
	if stored.Status != models.SettlementStatusCancelled {
		t.Fatalf("stored status = %s, want cancelled", stored.Status)
	}

	_, err = models.CancelSettlement(actorContext(true), settlement.ID)
	assertKind(t, err, utils.KindStateConflict)
}

func TestBatchSettleIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.seedStock(t, f.skuA.ID, f.warehouse.ID, 10, "40")
	first := f.relatedAccountRecord(t, models.RelatedTypeSalesOrder, f.auditedSalesOrder(t, map[int]int{f.skuA.ID: 1}).ID)
	second := f.relatedAccountRecord(t, models.RelatedTypeSalesOrder, f.auditedSalesOrder(t, map[int]int{f.skuA.ID: 2}).ID)
	income := newFinancialRecord(t, f, models.FinancialTypeIncome, "250")

	_, err := models.BatchSettle(f.ctx, "batch-1", &models.NewBatchSettlement{
		FinancialRecordId: income.ID,
		Settlements: []models.BatchSettlementLine{
			{AccountRecordId: first.ID, Amount: dec("100")},
			{AccountRecordId: second.ID, Amount: dec("200")},
		},
	})
	assertKind(t, err, utils.KindExceedsBalance)
	if !strings.HasPrefix(err.Error(), "settlement 2: ") {
		t.Fatalf("error should name the failing line, got %q", err.Error())
	}
	untouched, _ := models.GetAccountRecord(f.ctx, first.ID)
	assertDecimal(t, "first paid after abort", untouched.PaidAmount, "0")
	income, _ = models.GetFinancialRecord(f.ctx, income.ID)
	assertDecimal(t, "allocated after abort", income.SettledAmount, "0")

	// the aborted request did not consume its key
	settlements, err := models.BatchSettle(f.ctx, "batch-1", &models.NewBatchSettlement{
		FinancialRecordId: income.ID,
		Settlements: []models.BatchSettlementLine{
			{AccountRecordId: first.ID, Amount: dec("100")},
			{AccountRecordId: second.ID, Amount: dec("150")},
		},
	})
	if err != nil {
		t.Fatalf("BatchSettle: %v", err)
	}
	if len(settlements) != 2 {
		t.Fatalf("settlements = %d, want 2", len(settlements))
	}
	income, _ = models.GetFinancialRecord(f.ctx, income.ID)
	assertDecimal(t, "allocated", income.SettledAmount, "250")
	secondNow, _ := models.GetAccountRecord(f.ctx, second.ID)
	assertDecimal(t, "second balance", secondNow.BalanceAmount, "50")

	_, err = models.BatchSettle(f.ctx, "batch-1", &models.NewBatchSettlement{
		FinancialRecordId: income.ID,
		Settlements:       []models.BatchSettlementLine{{AccountRecordId: second.ID, Amount: dec("1")}},
	})
	assertKind(t, err, utils.KindStateConflict)
}

func TestPayAccountRecordDirectly(t *testing.T) {
	f := newFixture(t)
	order := f.auditedPurchaseOrder(t, f.skuA.ID, 2, "30")
	record := f.relatedAccountRecord(t, models.RelatedTypePurchaseOrder, order.ID)

	_, err := models.PayAccountRecord(f.ctx, record.ID, &models.DirectPaymentInput{Amount: dec("61"), PaymentMethod: "cash"})
	assertKind(t, err, utils.KindExceedsBalance)

	_, err = models.PayAccountRecord(f.ctx, record.ID, &models.DirectPaymentInput{Amount: dec("10")})
	assertKind(t, err, utils.KindValidation)

	paid, err := models.PayAccountRecord(f.ctx, record.ID, &models.DirectPaymentInput{Amount: dec("60"), PaymentMethod: "cash"})
	if err != nil {
		t.Fatalf("PayAccountRecord: %v", err)
	}
	if paid.Status != models.AccountStatusSettled {
		t.Fatalf("status = %s, want settled", paid.Status)
	}
	supplier, _ := models.FindSupplier(f.ctx, f.supplier.ID)
	assertDecimal(t, "supplier arrears", supplier.ArrearsAmount, "0")
}
