package models

import (
	"github.com/mmdatafocus/warehouse_backend/utils"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAudited   OrderStatus = "audited"
	OrderStatusPartial   OrderStatus = "partial"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type MovementStatus string

const (
	MovementStatusPending   MovementStatus = "pending"
	MovementStatusAudited   MovementStatus = "audited"
	MovementStatusCancelled MovementStatus = "cancelled"
)

type ReturnStatus string

const (
	ReturnStatusPendingAudit ReturnStatus = "pending_audit"
	ReturnStatusAudited      ReturnStatus = "audited"
	ReturnStatusCompleted    ReturnStatus = "completed"
	ReturnStatusCancelled    ReturnStatus = "cancelled"
)

// ProgressStatus tracks stock and refund progress of a return.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressPartial  ProgressStatus = "partial"
	ProgressComplete ProgressStatus = "complete"
)

type SettlementStatus string

const (
	SettlementStatusActive    SettlementStatus = "active"
	SettlementStatusCancelled SettlementStatus = "cancelled"
)

type ReturnType string

const (
	ReturnTypeSale     ReturnType = "sale"
	ReturnTypePurchase ReturnType = "purchase"
)

func (t ReturnType) IsValid() bool {
	return t == ReturnTypeSale || t == ReturnTypePurchase
}

type AccountType string

const (
	AccountTypeReceivable AccountType = "receivable"
	AccountTypePayable    AccountType = "payable"
)

func (t AccountType) IsValid() bool {
	return t == AccountTypeReceivable || t == AccountTypePayable
}

type AccountStatus string

const (
	AccountStatusUnsettled AccountStatus = "unsettled"
	AccountStatusSettled   AccountStatus = "settled"
)

type RelatedType string

const (
	RelatedTypePurchaseOrder RelatedType = "purchase_order"
	RelatedTypeSalesOrder    RelatedType = "sales_order"
	RelatedTypeReturn        RelatedType = "return"
)

type FinancialType string

const (
	FinancialTypeIncome  FinancialType = "income"
	FinancialTypeExpense FinancialType = "expense"
)

func (t FinancialType) IsValid() bool {
	return t == FinancialTypeIncome || t == FinancialTypeExpense
}

type StockReferenceType string

const (
	StockReferencePurchaseStockIn StockReferenceType = "purchase_stock_in"
	StockReferenceSaleStockOut    StockReferenceType = "sale_stock_out"
	StockReferenceTransferOut     StockReferenceType = "transfer_out"
	StockReferenceTransferIn      StockReferenceType = "transfer_in"
	StockReferenceStockTake       StockReferenceType = "stock_take"
	StockReferenceReturnStock     StockReferenceType = "return_stock"
)

type DocumentAction string

const (
	ActionEdit     DocumentAction = "edit"
	ActionAudit    DocumentAction = "audit"
	ActionCancel   DocumentAction = "cancel"
	ActionComplete DocumentAction = "complete"
	// movement documents are created/audited against an order
	ActionFulfil DocumentAction = "fulfil"
	// return only
	ActionCreateStock DocumentAction = "create_stock"
	ActionRefund      DocumentAction = "refund"
)

var orderTransitions = map[DocumentAction][]OrderStatus{
	ActionEdit:     {OrderStatusPending},
	ActionAudit:    {OrderStatusPending},
	ActionCancel:   {OrderStatusPending, OrderStatusAudited},
	ActionComplete: {OrderStatusAudited},
	ActionFulfil:   {OrderStatusAudited, OrderStatusPartial},
}

// CheckOrderTransition is the single gate for every order status change.
func CheckOrderTransition(kind string, status OrderStatus, action DocumentAction) error {
	for _, s := range orderTransitions[action] {
		if s == status {
			return nil
		}
	}
	return utils.NewStateConflict("cannot %s %s in status %s", action, kind, status)
}

var movementTransitions = map[DocumentAction][]MovementStatus{
	ActionAudit:  {MovementStatusPending},
	ActionCancel: {MovementStatusPending, MovementStatusAudited},
}

func CheckMovementTransition(kind string, status MovementStatus, action DocumentAction) error {
	for _, s := range movementTransitions[action] {
		if s == status {
			return nil
		}
	}
	return utils.NewStateConflict("cannot %s %s in status %s", action, kind, status)
}

var returnTransitions = map[DocumentAction][]ReturnStatus{
	ActionEdit:        {ReturnStatusPendingAudit},
	ActionAudit:       {ReturnStatusPendingAudit},
	ActionCreateStock: {ReturnStatusAudited},
	ActionRefund:      {ReturnStatusPendingAudit, ReturnStatusAudited, ReturnStatusCompleted},
	ActionComplete:    {ReturnStatusAudited},
	ActionCancel:      {ReturnStatusPendingAudit, ReturnStatusAudited},
}

func CheckReturnTransition(status ReturnStatus, action DocumentAction) error {
	for _, s := range returnTransitions[action] {
		if s == status {
			return nil
		}
	}
	return utils.NewStateConflict("cannot %s return in status %s", action, status)
}

// fulfilmentStatus derives an order's status from its line progress.
// Only orders in the audited family are touched.
func fulfilmentStatus(current OrderStatus, ordered []int, fulfilled []int) OrderStatus {
	if current != OrderStatusAudited && current != OrderStatusPartial {
		return current
	}
	allDone := len(ordered) > 0
	anyDone := false
	for i := range ordered {
		if fulfilled[i] > 0 {
			anyDone = true
		}
		if fulfilled[i] < ordered[i] {
			allDone = false
		}
	}
	switch {
	case allDone:
		return OrderStatusCompleted
	case anyDone:
		return OrderStatusPartial
	default:
		return OrderStatusAudited
	}
}

// progressOf derives pending/partial/complete from done vs. total.
func progressOf(done, total int) ProgressStatus {
	switch {
	case total > 0 && done >= total:
		return ProgressComplete
	case done > 0:
		return ProgressPartial
	default:
		return ProgressPending
	}
}
