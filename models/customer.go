package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Customer struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	Phone         string          `gorm:"size:20" json:"phone"`
	DiscountRate  decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"discount_rate"`
	ArrearsAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"arrears_amount"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name         string          `json:"name" validate:"required"`
	Phone        string          `json:"phone"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
}

// ContactProfile is what order and account logic needs from a customer or supplier.
type ContactProfile struct {
	Id            int             `json:"id"`
	Name          string          `json:"name"`
	DiscountRate  decimal.Decimal `json:"discount_rate"`
	ArrearsAmount decimal.Decimal `json:"arrears_amount"`
}

func (c Customer) Profile() ContactProfile {
	return ContactProfile{Id: c.ID, Name: c.Name, DiscountRate: c.DiscountRate, ArrearsAmount: c.ArrearsAmount}
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if input.DiscountRate.IsNegative() || input.DiscountRate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, utils.NewValidationError("discount_rate must be between 0 and 100")
	}
	customer := Customer{
		Name:         strings.TrimSpace(input.Name),
		Phone:        input.Phone,
		DiscountRate: input.DiscountRate,
	}
	if err := runInTransaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&customer).Error
	}); err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindCustomer reads through the redis cache.
func FindCustomer(ctx context.Context, id int) (*ContactProfile, error) {
	customer, err := lookupCustomer(config.GetDB().WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	profile := customer.Profile()
	return &profile, nil
}

func lookupCustomer(tx *gorm.DB, id int) (*Customer, error) {
	if id <= 0 {
		return nil, utils.NewValidationError("customer_id is required")
	}
	cached, err := utils.RetrieveRedis[Customer](id)
	if err != nil {
		config.LogError(config.GetLogger(), "customer.go", "lookupCustomer", "reading cache", id, err)
	}
	if cached != nil {
		return cached, nil
	}
	var customer Customer
	if err := tx.First(&customer, id).Error; err != nil {
		return nil, notFoundOr(err, "customer", id)
	}
	if err := utils.StoreRedis(&customer, id); err != nil {
		config.LogError(config.GetLogger(), "customer.go", "lookupCustomer", "writing cache", id, err)
	}
	return &customer, nil
}

// adjustArrears moves the outstanding amount of the account's target.
// Receivables belong to customers, payables to suppliers.
func adjustArrears(tx *gorm.DB, accountType AccountType, targetId int, delta decimal.Decimal) error {
	if delta.IsZero() || targetId <= 0 {
		return nil
	}
	switch accountType {
	case AccountTypeReceivable:
		var customer Customer
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&customer, targetId).Error; err != nil {
			return notFoundOr(err, "customer", targetId)
		}
		customer.ArrearsAmount = customer.ArrearsAmount.Add(delta)
		if err := tx.Model(&customer).Update("arrears_amount", customer.ArrearsAmount).Error; err != nil {
			return err
		}
		return utils.RemoveRedisItem[Customer](targetId)
	case AccountTypePayable:
		var supplier Supplier
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&supplier, targetId).Error; err != nil {
			return notFoundOr(err, "supplier", targetId)
		}
		supplier.ArrearsAmount = supplier.ArrearsAmount.Add(delta)
		if err := tx.Model(&supplier).Update("arrears_amount", supplier.ArrearsAmount).Error; err != nil {
			return err
		}
		return utils.RemoveRedisItem[Supplier](targetId)
	}
	return utils.NewValidationError("unknown account type %s", accountType)
}

// notFoundOr maps gorm's not-found to a NotFound business error and passes others through.
func notFoundOr(err error, what string, id int) error {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, utils.ErrorRecordNotFound) {
		return utils.NewNotFound(what, id)
	}
	return err
}
