package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRecord is a receivable (customer owes us) or payable (we owe a supplier).
// Returns record a negative amount against the same type to reduce it.
// balance_amount = amount - paid_amount at all times.
type AccountRecord struct {
	ID            int             `gorm:"primary_key" json:"id"`
	RecordNumber  string          `gorm:"size:32;not null;uniqueIndex" json:"record_number"`
	SequenceNo    int64           `gorm:"index;not null" json:"sequence_no"`
	Type          AccountType     `gorm:"size:20;not null;index" json:"type"`
	TargetId      int             `gorm:"index;not null" json:"target_id"`
	RelatedType   RelatedType     `gorm:"size:30;index:idx_account_related" json:"related_type"`
	RelatedId     int             `gorm:"index:idx_account_related" json:"related_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	PaidAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	BalanceAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance_amount"`
	Status        AccountStatus   `gorm:"size:20;not null;index" json:"status"`
	Remark        string          `gorm:"type:text" json:"remark"`
	CreatedBy     int             `json:"created_by"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

type DirectPaymentInput struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method" validate:"required,max=50"`
	Remark        string          `json:"remark"`
}

// BeforeSave keeps balance and status derived from amount and paid amount.
func (a *AccountRecord) BeforeSave(_ *gorm.DB) error {
	a.BalanceAmount = a.Amount.Sub(a.PaidAmount)
	if utils.IsZeroMoney(a.BalanceAmount) {
		a.Status = AccountStatusSettled
	} else {
		a.Status = AccountStatusUnsettled
	}
	return nil
}

// direction is +1 for ordinary records and -1 for return records.
func (a AccountRecord) direction() decimal.Decimal {
	if a.Amount.IsNegative() {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// expectedFinancialType is the kind of money that settles this record:
// customers pay receivables in, we pay payables out; return records invert it.
func (a AccountRecord) expectedFinancialType() FinancialType {
	incoming := a.Type == AccountTypeReceivable
	if a.Amount.IsNegative() {
		incoming = !incoming
	}
	if incoming {
		return FinancialTypeIncome
	}
	return FinancialTypeExpense
}

// applyPayment books a positive magnitude against the record; negative magnitudes reverse it.
func (a *AccountRecord) applyPayment(magnitude decimal.Decimal) {
	a.PaidAmount = a.PaidAmount.Add(magnitude.Mul(a.direction()))
	a.BalanceAmount = a.Amount.Sub(a.PaidAmount)
	if utils.IsZeroMoney(a.BalanceAmount) {
		a.Status = AccountStatusSettled
	} else {
		a.Status = AccountStatusUnsettled
	}
}

type accountRecordInput struct {
	Type        AccountType
	TargetId    int
	RelatedType RelatedType
	RelatedId   int
	Amount      decimal.Decimal
	Remark      string
}

func createAccountRecord(ctx context.Context, tx *gorm.DB, in accountRecordInput) (*AccountRecord, error) {
	if !in.Type.IsValid() {
		return nil, utils.NewValidationError("unknown account type %s", in.Type)
	}
	seqNo, number, err := nextDocumentNumber[AccountRecord](ctx, tx, PrefixAccountRecord)
	if err != nil {
		return nil, err
	}
	record := AccountRecord{
		RecordNumber: number,
		SequenceNo:   seqNo,
		Type:         in.Type,
		TargetId:     in.TargetId,
		RelatedType:  in.RelatedType,
		RelatedId:    in.RelatedId,
		Amount:       in.Amount,
		Remark:       in.Remark,
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}
	if err := adjustArrears(tx, record.Type, record.TargetId, record.Amount); err != nil {
		return nil, err
	}
	return &record, nil
}

func lockAccountRecord(tx *gorm.DB, id int) (*AccountRecord, error) {
	record, err := utils.FetchModelForUpdate[AccountRecord](tx, id)
	if err != nil {
		return nil, notFoundOr(err, "account record", id)
	}
	return record, nil
}

// lockRelatedAccountRecord returns nil when the business event created no record.
func lockRelatedAccountRecord(tx *gorm.DB, relatedType RelatedType, relatedId int) (*AccountRecord, error) {
	var record AccountRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("related_type = ? AND related_id = ?", relatedType, relatedId).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// removeAccountRecord soft-deletes an untouched record and takes it back out of arrears.
func removeAccountRecord(tx *gorm.DB, record *AccountRecord) error {
	if record == nil {
		return nil
	}
	if !utils.IsZeroMoney(record.PaidAmount) {
		return utils.NewStateConflict("account record %s already has payments", record.RecordNumber)
	}
	if err := adjustArrears(tx, record.Type, record.TargetId, record.Amount.Neg()); err != nil {
		return err
	}
	return tx.Delete(record).Error
}

// bookPayment moves money on a locked record and everything hanging off it:
// arrears of the target and paid/refunded amounts of the originating document.
// A negative magnitude undoes an earlier payment.
func bookPayment(tx *gorm.DB, record *AccountRecord, magnitude decimal.Decimal) error {
	record.applyPayment(magnitude)
	if err := tx.Omit(clause.Associations).Save(record).Error; err != nil {
		return err
	}
	if err := adjustArrears(tx, record.Type, record.TargetId, magnitude.Mul(record.direction()).Neg()); err != nil {
		return err
	}
	return propagatePayment(tx, record, magnitude)
}

func propagatePayment(tx *gorm.DB, record *AccountRecord, magnitude decimal.Decimal) error {
	switch record.RelatedType {
	case RelatedTypePurchaseOrder:
		order, err := utils.FetchModelForUpdate[PurchaseOrder](tx, record.RelatedId)
		if err != nil {
			return notFoundOr(err, "purchase order", record.RelatedId)
		}
		order.PaidAmount = order.PaidAmount.Add(magnitude)
		return tx.Model(order).Update("paid_amount", order.PaidAmount).Error
	case RelatedTypeSalesOrder:
		order, err := utils.FetchModelForUpdate[SalesOrder](tx, record.RelatedId)
		if err != nil {
			return notFoundOr(err, "sales order", record.RelatedId)
		}
		order.PaidAmount = order.PaidAmount.Add(magnitude)
		return tx.Model(order).Update("paid_amount", order.PaidAmount).Error
	case RelatedTypeReturn:
		ret, err := utils.FetchModelForUpdate[Return](tx, record.RelatedId)
		if err != nil {
			return notFoundOr(err, "return", record.RelatedId)
		}
		ret.RefundedAmount = ret.RefundedAmount.Add(magnitude)
		ret.RefundStatus = refundProgress(ret.RefundedAmount, ret.RefundAmount)
		return tx.Model(ret).Updates(map[string]interface{}{
			"refunded_amount": ret.RefundedAmount,
			"refund_status":   ret.RefundStatus,
		}).Error
	}
	return nil
}

// checkPayable validates a positive payment against the record's outstanding balance.
func checkPayable(record *AccountRecord, amount decimal.Decimal) error {
	if !amount.GreaterThan(decimal.Zero) {
		return utils.NewValidationError("amount must be positive")
	}
	if record.Status == AccountStatusSettled || utils.ExceedsMoney(amount, record.BalanceAmount.Abs()) {
		return utils.NewAppError(utils.KindExceedsBalance,
			"amount %s exceeds balance %s of account record %s", amount.StringFixed(2), record.BalanceAmount.StringFixed(2), record.RecordNumber)
	}
	return nil
}

// PayAccountRecord books a payment straight onto an account record. It writes
// a fully allocated financial record but no settlement, so it cannot be
// undone through CancelSettlement.
func PayAccountRecord(ctx context.Context, id int, input *DirectPaymentInput) (*AccountRecord, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	var record *AccountRecord
	err := withDocumentLock(ctx, "account_record", id, func(tx *gorm.DB) error {
		var err error
		record, err = lockAccountRecord(tx, id)
		if err != nil {
			return err
		}
		if err := checkPayable(record, input.Amount); err != nil {
			return err
		}
		financial := FinancialRecord{
			Type:            record.expectedFinancialType(),
			Amount:          input.Amount,
			SettledAmount:   input.Amount,
			PaymentMethod:   strings.TrimSpace(input.PaymentMethod),
			AccountRecordId: record.ID,
			Remark:          input.Remark,
		}
		if err := insertFinancialRecord(ctx, tx, &financial); err != nil {
			return err
		}
		return bookPayment(tx, record, input.Amount)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func GetAccountRecord(ctx context.Context, id int) (*AccountRecord, error) {
	record, err := utils.FetchModel[AccountRecord](ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "account record", id)
	}
	return record, nil
}
