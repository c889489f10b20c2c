package models

import (
	"errors"
	"strings"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
)

type IdempotencyStatus string

const (
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
)

const IdempotencyScopeBatchSettle = "settlement.batch"

// IdempotencyKey makes a client-supplied request key single-use.
// The row is written inside the business transaction, so a rolled back
// request leaves the key free for a retry.
// Unique constraint: (scope, request_key).
type IdempotencyKey struct {
	ID         int               `gorm:"primary_key" json:"id"`
	Scope      string            `gorm:"size:100;not null;index:uniq_idem,unique" json:"scope"`
	RequestKey string            `gorm:"size:255;not null;index:uniq_idem,unique" json:"request_key"`
	Status     IdempotencyStatus `gorm:"size:20;not null;index" json:"status"`
	CreatedBy  int               `json:"created_by"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// claimIdempotencyKey fails with StateConflict when key was already used in scope.
// An empty key disables the check.
func claimIdempotencyKey(tx *gorm.DB, scope, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if len(key) > 255 {
		return utils.NewValidationError("idempotency key too long")
	}
	count, err := utils.ResourceCountWhere[IdempotencyKey](tx, "scope = ? AND request_key = ?", scope, key)
	if err != nil {
		return err
	}
	if count > 0 {
		return utils.NewStateConflict("request %q was already processed", key)
	}
	row := IdempotencyKey{
		Scope:      scope,
		RequestKey: key,
		Status:     IdempotencyStatusSucceeded,
	}
	if err := tx.Create(&row).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return utils.NewStateConflict("request %q was already processed", key)
		}
		return err
	}
	return nil
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
