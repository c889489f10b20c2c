package models

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const PermissionCancelSettlement = "settlement.cancel"

// Settlement applies part of a financial record against one account record.
// Amount is always positive; the account record's sign decides the direction.
type Settlement struct {
	ID                int              `gorm:"primary_key" json:"id"`
	SettlementNumber  string           `gorm:"size:32;not null;uniqueIndex" json:"settlement_number"`
	SequenceNo        int64            `gorm:"index;not null" json:"sequence_no"`
	AccountRecordId   int              `gorm:"index;not null" json:"account_record_id"`
	FinancialRecordId int              `gorm:"index;not null" json:"financial_record_id"`
	AccountType       AccountType      `gorm:"size:20;not null" json:"account_type"`
	Amount            decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"amount"`
	Status            SettlementStatus `gorm:"size:20;not null;index" json:"status"`
	Remark            string           `gorm:"type:text" json:"remark"`
	CreatedBy         int              `json:"created_by"`
	CancelledBy       int              `json:"cancelled_by"`
	CancelledAt       *time.Time       `json:"cancelled_at"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt   `gorm:"index" json:"-"`
}

type NewSettlement struct {
	AccountRecordId   int             `json:"account_record_id" validate:"required,gt=0"`
	FinancialRecordId int             `json:"financial_record_id" validate:"required,gt=0"`
	AccountType       AccountType     `json:"account_type" validate:"omitempty,oneof=receivable payable"`
	Amount            decimal.Decimal `json:"amount"`
	Remark            string          `json:"remark"`
}

type BatchSettlementLine struct {
	AccountRecordId int             `json:"account_record_id" validate:"required,gt=0"`
	AccountType     AccountType     `json:"account_type" validate:"omitempty,oneof=receivable payable"`
	Amount          decimal.Decimal `json:"amount"`
	Remark          string          `json:"remark"`
}

type NewBatchSettlement struct {
	FinancialRecordId int                   `json:"financial_record_id" validate:"required,gt=0"`
	Settlements       []BatchSettlementLine `json:"settlements" validate:"required,min=1,dive"`
}

// settlementLine is one application of money, already bound to locked records.
type settlementLine struct {
	AccountType AccountType
	Amount      decimal.Decimal
	Remark      string
}

// applySettlement is the single path money takes onto an account record
// through a financial record. Both records must be locked by the caller.
func applySettlement(ctx context.Context, tx *gorm.DB, financial *FinancialRecord, record *AccountRecord, line settlementLine) (*Settlement, error) {
	if line.AccountType != "" && line.AccountType != record.Type {
		return nil, utils.NewAppError(utils.KindTypeMismatch,
			"account record %s is %s, not %s", record.RecordNumber, record.Type, line.AccountType)
	}
	if expected := record.expectedFinancialType(); financial.Type != expected {
		return nil, utils.NewAppError(utils.KindTypeMismatch,
			"account record %s is settled by %s, financial record %s is %s", record.RecordNumber, expected, financial.RecordNumber, financial.Type)
	}
	if err := checkPayable(record, line.Amount); err != nil {
		return nil, err
	}
	if utils.ExceedsMoney(line.Amount, financial.Unallocated()) {
		return nil, utils.NewAppError(utils.KindExceedsBalance,
			"amount %s exceeds unallocated %s of financial record %s", line.Amount.StringFixed(2), financial.Unallocated().StringFixed(2), financial.RecordNumber)
	}

	financial.SettledAmount = financial.SettledAmount.Add(line.Amount)
	if err := tx.Model(financial).Update("settled_amount", financial.SettledAmount).Error; err != nil {
		return nil, err
	}
	if err := bookPayment(tx, record, line.Amount); err != nil {
		return nil, err
	}

	seqNo, number, err := nextDocumentNumber[Settlement](ctx, tx, PrefixSettlement)
	if err != nil {
		return nil, err
	}
	settlement := Settlement{
		SettlementNumber:  number,
		SequenceNo:        seqNo,
		AccountRecordId:   record.ID,
		FinancialRecordId: financial.ID,
		AccountType:       record.Type,
		Amount:            line.Amount,
		Status:            SettlementStatusActive,
		Remark:            line.Remark,
	}
	if err := tx.Create(&settlement).Error; err != nil {
		return nil, err
	}
	return &settlement, nil
}

func CreateSettlement(ctx context.Context, input *NewSettlement) (*Settlement, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	var settlement *Settlement
	err := withDocumentLock(ctx, "financial_record", input.FinancialRecordId, func(tx *gorm.DB) error {
		financial, err := lockFinancialRecord(tx, input.FinancialRecordId)
		if err != nil {
			return err
		}
		record, err := lockAccountRecord(tx, input.AccountRecordId)
		if err != nil {
			return err
		}
		settlement, err = applySettlement(ctx, tx, financial, record, settlementLine{
			AccountType: input.AccountType,
			Amount:      input.Amount,
			Remark:      input.Remark,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// BatchSettle applies one financial record against several account records.
// The first failing line aborts the batch and nothing is written. A non-empty
// idempotency key that already committed fails with StateConflict.
func BatchSettle(ctx context.Context, idempotencyKey string, input *NewBatchSettlement) ([]*Settlement, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	var settlements []*Settlement
	err := withDocumentLock(ctx, "financial_record", input.FinancialRecordId, func(tx *gorm.DB) error {
		if err := claimIdempotencyKey(tx, IdempotencyScopeBatchSettle, idempotencyKey); err != nil {
			return err
		}
		financial, err := lockFinancialRecord(tx, input.FinancialRecordId)
		if err != nil {
			return err
		}
		settlements = make([]*Settlement, 0, len(input.Settlements))
		for i, line := range input.Settlements {
			record, err := lockAccountRecord(tx, line.AccountRecordId)
			if err != nil {
				return err
			}
			settlement, err := applySettlement(ctx, tx, financial, record, settlementLine{
				AccountType: line.AccountType,
				Amount:      line.Amount,
				Remark:      line.Remark,
			})
			if err != nil {
				var appErr *utils.AppError
				if errors.As(err, &appErr) {
					appErr.Message = "settlement " + strconv.Itoa(i+1) + ": " + appErr.Message
				}
				return err
			}
			settlements = append(settlements, settlement)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settlements, nil
}

// CancelSettlement undoes a settlement completely: the account record, the
// target's arrears, the originating order or return and the financial
// record's allocation all go back to their previous values.
func CancelSettlement(ctx context.Context, id int) (*Settlement, error) {
	if err := utils.RequirePermission(ctx, PermissionCancelSettlement); err != nil {
		return nil, err
	}
	var settlement *Settlement
	err := withDocumentLock(ctx, "settlement", id, func(tx *gorm.DB) error {
		var err error
		settlement, err = utils.FetchModelForUpdate[Settlement](tx.Unscoped(), id)
		if err != nil {
			return notFoundOr(err, "settlement", id)
		}
		if settlement.Status != SettlementStatusActive {
			return utils.NewStateConflict("settlement %s is already %s", settlement.SettlementNumber, settlement.Status)
		}
		financial, err := lockFinancialRecord(tx, settlement.FinancialRecordId)
		if err != nil {
			return err
		}
		record, err := lockAccountRecord(tx, settlement.AccountRecordId)
		if err != nil {
			return err
		}
		if record.RelatedType == RelatedTypeReturn {
			ret, err := lockReturn(tx, record.RelatedId)
			if err != nil {
				return err
			}
			if ret.Status == ReturnStatusCompleted {
				return utils.NewStateConflict("return %s is completed", ret.ReturnNumber)
			}
		}

		if err := bookPayment(tx, record, settlement.Amount.Neg()); err != nil {
			return err
		}
		financial.SettledAmount = financial.SettledAmount.Sub(settlement.Amount)
		if err := tx.Model(financial).Update("settled_amount", financial.SettledAmount).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		settlement.Status = SettlementStatusCancelled
		settlement.CancelledBy = utils.GetUserIdFromContext(ctx)
		settlement.CancelledAt = &now
		if err := tx.Omit(clause.Associations).Save(settlement).Error; err != nil {
			return err
		}
		return tx.Delete(settlement).Error
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// GetSettlement also finds cancelled settlements.
func GetSettlement(ctx context.Context, id int) (*Settlement, error) {
	var settlement Settlement
	if err := config.GetDB().WithContext(ctx).Unscoped().First(&settlement, id).Error; err != nil {
		return nil, notFoundOr(err, "settlement", id)
	}
	return &settlement, nil
}

func lockFinancialRecord(tx *gorm.DB, id int) (*FinancialRecord, error) {
	record, err := utils.FetchModelForUpdate[FinancialRecord](tx, id)
	if err != nil {
		return nil, notFoundOr(err, "financial record", id)
	}
	return record, nil
}
