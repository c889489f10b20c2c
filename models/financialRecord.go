package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FinancialRecord is a standalone income/expense entry. Settlements only
// reference it; SettledAmount tracks how much of it has been allocated.
type FinancialRecord struct {
	ID            int             `gorm:"primary_key" json:"id"`
	RecordNumber  string          `gorm:"size:32;not null;uniqueIndex" json:"record_number"`
	SequenceNo    int64           `gorm:"index;not null" json:"sequence_no"`
	Type          FinancialType   `gorm:"size:20;not null;index" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	SettledAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"settled_amount"`
	PaymentMethod string          `gorm:"size:50" json:"payment_method"`
	// set when the record was created by a direct payment against an account record
	AccountRecordId int            `gorm:"index;default:0" json:"account_record_id"`
	Remark          string         `gorm:"type:text" json:"remark"`
	CreatedBy       int            `json:"created_by"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

type NewFinancialRecord struct {
	Type          FinancialType   `json:"type" validate:"required,oneof=income expense"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method" validate:"required,max=50"`
	Remark        string          `json:"remark"`
}

// Unallocated is the part not yet consumed by settlements.
func (f FinancialRecord) Unallocated() decimal.Decimal {
	return f.Amount.Sub(f.SettledAmount)
}

func CreateFinancialRecord(ctx context.Context, input *NewFinancialRecord) (*FinancialRecord, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if !input.Amount.GreaterThan(decimal.Zero) {
		return nil, utils.NewValidationError("amount must be positive")
	}
	record := FinancialRecord{
		Type:          input.Type,
		Amount:        input.Amount,
		PaymentMethod: strings.TrimSpace(input.PaymentMethod),
		Remark:        input.Remark,
	}
	if err := runInTransaction(ctx, func(tx *gorm.DB) error {
		return insertFinancialRecord(ctx, tx, &record)
	}); err != nil {
		return nil, err
	}
	return &record, nil
}

// insertFinancialRecord is a plain insert with a document number.
func insertFinancialRecord(ctx context.Context, tx *gorm.DB, record *FinancialRecord) error {
	seqNo, number, err := nextDocumentNumber[FinancialRecord](ctx, tx, PrefixFinancialRecord)
	if err != nil {
		return err
	}
	record.SequenceNo = seqNo
	record.RecordNumber = number
	return tx.Create(record).Error
}

func GetFinancialRecord(ctx context.Context, id int) (*FinancialRecord, error) {
	record, err := utils.FetchModel[FinancialRecord](ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "financial record", id)
	}
	return record, nil
}
