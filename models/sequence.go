package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	PrefixPurchaseOrder   = "PO"
	PrefixSalesOrder      = "SO"
	PrefixPurchaseStockIn = "PI"
	PrefixSaleStockOut    = "SD"
	PrefixStockTransfer   = "TR"
	PrefixStockTake       = "ST"
	PrefixReturn          = "RT"
	PrefixReturnStock     = "RS"
	PrefixAccountRecord   = "AR"
	PrefixFinancialRecord = "FR"
	PrefixSettlement      = "SE"
)

// DocumentSequence is the per-type counter used for document numbers while
// redis is not connected. The row stays locked until the creating tx ends.
type DocumentSequence struct {
	Name      string    `gorm:"primaryKey;size:100" json:"name"`
	Value     int64     `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// nextDocumentNumber returns the next sequence_no of T and its display number.
func nextDocumentNumber[T any](ctx context.Context, tx *gorm.DB, prefix string) (int64, string, error) {
	var seqNo int64
	var err error
	if config.RedisConnected() {
		seqNo, err = utils.GetSequence[T](ctx, tx)
	} else {
		seqNo, err = lockedSequence[T](tx)
	}
	if err != nil {
		return 0, "", err
	}
	return seqNo, fmt.Sprintf("%s%06d", prefix, seqNo), nil
}

// lockedSequence bumps the DocumentSequence row of T under FOR UPDATE.
// Numbers already handed out through redis are skipped via max(sequence_no).
func lockedSequence[T any](tx *gorm.DB) (int64, error) {
	var model T
	name := utils.GetTypeName[T]()
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&DocumentSequence{Name: name}).Error; err != nil {
		return 0, err
	}
	var seq DocumentSequence
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("name = ?", name).First(&seq).Error; err != nil {
		return 0, err
	}
	var dbMax *int64
	if err := tx.Unscoped().Model(&model).Select("max(sequence_no)").Scan(&dbMax).Error; err != nil {
		return 0, err
	}
	next := max(seq.Value, utils.DereferencePtr(dbMax)) + 1
	if err := tx.Model(&seq).Update("value", next).Error; err != nil {
		return 0, err
	}
	return next, nil
}
