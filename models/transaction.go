package models

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
)

// runInTransaction runs fn inside one db transaction. Any returned error or
// panic rolls back every write made through tx.
func runInTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db := config.GetDB()
	if db == nil {
		return utils.Unrecoverable(fmt.Errorf("db is nil"))
	}
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	// always rollback on early-return or panic to avoid leaking row locks
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback().Error
		return err
	}
	return tx.Commit().Error
}

// withDocumentLock holds the redis document lock around a transaction.
func withDocumentLock(ctx context.Context, lockType string, id int, fn func(tx *gorm.DB) error) error {
	release, err := utils.DocumentLock(ctx, lockType, id)
	if err != nil {
		return err
	}
	defer release()
	return runInTransaction(ctx, fn)
}
