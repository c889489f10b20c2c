package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Supplier struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	Phone         string          `gorm:"size:20" json:"phone"`
	ArrearsAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"arrears_amount"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
}

func (s Supplier) Profile() ContactProfile {
	return ContactProfile{Id: s.ID, Name: s.Name, DiscountRate: decimal.Zero, ArrearsAmount: s.ArrearsAmount}
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	supplier := Supplier{
		Name:  strings.TrimSpace(input.Name),
		Phone: input.Phone,
	}
	if err := runInTransaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&supplier).Error
	}); err != nil {
		return nil, err
	}
	return &supplier, nil
}

// FindSupplier reads through the redis cache.
func FindSupplier(ctx context.Context, id int) (*ContactProfile, error) {
	supplier, err := lookupSupplier(config.GetDB().WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	profile := supplier.Profile()
	return &profile, nil
}

func lookupSupplier(tx *gorm.DB, id int) (*Supplier, error) {
	if id <= 0 {
		return nil, utils.NewValidationError("supplier_id is required")
	}
	cached, err := utils.RetrieveRedis[Supplier](id)
	if err != nil {
		config.LogError(config.GetLogger(), "supplier.go", "lookupSupplier", "reading cache", id, err)
	}
	if cached != nil {
		return cached, nil
	}
	var supplier Supplier
	if err := tx.First(&supplier, id).Error; err != nil {
		return nil, notFoundOr(err, "supplier", id)
	}
	if err := utils.StoreRedis(&supplier, id); err != nil {
		config.LogError(config.GetLogger(), "supplier.go", "lookupSupplier", "writing cache", id, err)
	}
	return &supplier, nil
}
