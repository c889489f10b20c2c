package utils

import (
	"context"
	"errors"

	"github.com/mmdatafocus/warehouse_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/* DB fetching */

// fetch model from db
// (may return RecordNotFound)
func FetchModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// fetch model inside tx holding a row lock until commit
// (may return RecordNotFound)
func FetchModelForUpdate[T any](tx *gorm.DB, id int, associations ...string) (*T, error) {
	q := tx.Clauses(clause.Locking{Strength: "UPDATE"})
	for _, field := range associations {
		q = q.Preload(field)
	}
	var result T
	err := q.First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// count records matching condition inside tx
func ResourceCountWhere[T any](tx *gorm.DB, condition string, value ...interface{}) (int64, error) {
	var model T
	var count int64
	if err := tx.Model(&model).Where(condition, value...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
