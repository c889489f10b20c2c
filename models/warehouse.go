package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
)

type Warehouse struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Address   string    `gorm:"type:text" json:"address"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWarehouse struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address"`
}

func CreateWarehouse(ctx context.Context, input *NewWarehouse) (*Warehouse, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	active := true
	warehouse := Warehouse{
		Name:     strings.TrimSpace(input.Name),
		Address:  input.Address,
		IsActive: &active,
	}
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&warehouse).Error
	})
	if err != nil {
		return nil, err
	}
	return &warehouse, nil
}

// requireWarehouse fails with NotFound for unknown or inactive warehouses.
func requireWarehouse(tx *gorm.DB, id int) error {
	if id <= 0 {
		return utils.NewValidationError("warehouse_id is required")
	}
	var warehouse Warehouse
	if err := tx.First(&warehouse, id).Error; err != nil {
		return notFoundOr(err, "warehouse", id)
	}
	if warehouse.IsActive != nil && !*warehouse.IsActive {
		return utils.NewValidationError("warehouse %d is inactive", id)
	}
	return nil
}
