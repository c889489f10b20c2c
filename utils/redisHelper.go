package utils

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"gorm.io/gorm"
)

var mutex sync.Mutex

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

/* Redis */

// store instance, obj should be a pointer
func StoreRedis[T any](obj *T, id int) error {
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	return config.SetRedisObject(key, obj, GetCacheLifespan())
}

// get from redis
// returns nil if does not exist
func RetrieveRedis[T any](id int) (*T, error) {
	var result *T
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	exists, err := config.GetRedisObject(key, &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// remove an instance, Type:$id
func RemoveRedisItem[T any](id int) error {
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	return config.RemoveRedisKey(key)
}

// GetSequence hands out the next sequence_no for T from a redis counter
// seeded from the table's max(sequence_no).
func GetSequence[T any](ctx context.Context, tx *gorm.DB) (int64, error) {
	var model T
	mutex.Lock()
	defer mutex.Unlock()

	var dbSeq *int64
	if err := tx.Unscoped().Model(&model).Select("max(sequence_no)").Scan(&dbSeq).Error; err != nil {
		return 0, err
	}
	dbMax := DereferencePtr(dbSeq)
	if !config.RedisConnected() {
		return 0, fmt.Errorf("redis is not connected")
	}

	cacheKey := strings.ToLower(GetTypeName[T]()) + "_seq"
	if err := config.SetRedisCounterIfAbsent(ctx, cacheKey, dbMax); err != nil {
		return 0, err
	}
	seqNo, err := config.GetRedisCounter(ctx, cacheKey)
	if err != nil {
		return 0, err
	}
	// counter fell behind (flushed or restored db)
	if seqNo <= dbMax {
		seqNo = dbMax + 1
		if err := config.SetRedisValue(cacheKey, strconv.FormatInt(seqNo, 10), 0); err != nil {
			return 0, err
		}
	}
	return seqNo, nil
}
