package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Stock is the ledger row for one sku in one warehouse.
type Stock struct {
	ID          int             `gorm:"primary_key" json:"id"`
	SkuId       int             `gorm:"not null;uniqueIndex:idx_stock_sku_warehouse" json:"sku_id"`
	WarehouseId int             `gorm:"not null;uniqueIndex:idx_stock_sku_warehouse" json:"warehouse_id"`
	Quantity    int             `gorm:"not null;default:0" json:"quantity"`
	CostPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_price"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeSave keeps total_amount derived; it is never set independently.
func (s *Stock) BeforeSave(_ *gorm.DB) error {
	if s.Quantity < 0 {
		return utils.NewAppError(utils.KindInsufficientStock, "stock of sku %d in warehouse %d cannot go negative", s.SkuId, s.WarehouseId)
	}
	s.TotalAmount = utils.LineAmount(s.Quantity, s.CostPrice)
	return nil
}

// StockHistory is the append-only log of every ledger adjustment.
type StockHistory struct {
	ID            int                `gorm:"primary_key" json:"id"`
	SkuId         int                `gorm:"index;not null" json:"sku_id"`
	WarehouseId   int                `gorm:"index;not null" json:"warehouse_id"`
	Qty           int                `gorm:"not null" json:"qty"`
	ClosingQty    int                `gorm:"not null" json:"closing_qty"`
	UnitCost      decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	PreviousCost  decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"previous_cost"`
	ReferenceType StockReferenceType `gorm:"size:40;index:idx_stock_history_ref" json:"reference_type"`
	ReferenceID   int                `gorm:"index:idx_stock_history_ref" json:"reference_id"`
	IsOutgoing    bool               `gorm:"not null;default:false" json:"is_outgoing"`
	IsReversal    bool               `gorm:"not null;default:false;index" json:"is_reversal"`
	CreatedBy     int                `json:"created_by"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

func (sh *StockHistory) BeforeSave(_ *gorm.DB) error {
	sh.IsOutgoing = sh.Qty < 0
	return nil
}

// StockAdjustment is one call into the ledger.
// UnitCost is used on increase only; a zero cost keeps the current cost price.
type StockAdjustment struct {
	SkuId         int
	WarehouseId   int
	Delta         int
	UnitCost      decimal.Decimal
	ReferenceType StockReferenceType
	ReferenceID   int
	IsReversal    bool
}

// AdjustStock is the only mutator of the ledger. It must run inside the
// caller's transaction; the row is locked FOR UPDATE until commit.
//
// Increase: creates the row lazily; a positive unit cost replaces cost_price
// (last-in cost, no averaging). Decrease: fails with InsufficientStock
// rather than going negative. A reversal of an increase puts back the cost
// price that increase replaced, as long as no later increase touched the row.
func AdjustStock(tx *gorm.DB, adj StockAdjustment) (*Stock, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx is nil")
	}
	if adj.SkuId <= 0 || adj.WarehouseId <= 0 {
		return nil, utils.NewValidationError("stock adjustment needs sku and warehouse")
	}
	if adj.UnitCost.IsNegative() {
		return nil, utils.NewValidationError("unit cost must not be negative")
	}

	var stock Stock
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("sku_id = ? AND warehouse_id = ?", adj.SkuId, adj.WarehouseId).
		First(&stock).Error
	exists := true
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		exists = false
	}
	previousCost := stock.CostPrice

	if adj.Delta == 0 {
		if !exists {
			return nil, nil
		}
		return &stock, nil
	}

	if adj.Delta < 0 {
		need := -adj.Delta
		if !exists || stock.Quantity < need {
			have := 0
			if exists {
				have = stock.Quantity
			}
			return nil, utils.NewAppError(utils.KindInsufficientStock,
				"insufficient stock for sku %d in warehouse %d: have %d, need %d", adj.SkuId, adj.WarehouseId, have, need)
		}
		stock.Quantity -= need
		if adj.IsReversal {
			cost, ok, err := costBeforeIncrease(tx, adj)
			if err != nil {
				return nil, err
			}
			if ok {
				stock.CostPrice = cost
			}
		}
		if err := tx.Save(&stock).Error; err != nil {
			return nil, err
		}
	} else if !exists {
		stock = Stock{
			SkuId:       adj.SkuId,
			WarehouseId: adj.WarehouseId,
			Quantity:    adj.Delta,
			CostPrice:   adj.UnitCost,
		}
		if err := tx.Create(&stock).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return nil, utils.NewStateConflict("stock row for sku %d in warehouse %d is being created concurrently, try again", adj.SkuId, adj.WarehouseId)
			}
			return nil, err
		}
	} else {
		stock.Quantity += adj.Delta
		if adj.UnitCost.GreaterThan(decimal.Zero) {
			stock.CostPrice = adj.UnitCost
		}
		if err := tx.Save(&stock).Error; err != nil {
			return nil, err
		}
	}

	unitCost := stock.CostPrice
	if adj.Delta > 0 && adj.UnitCost.GreaterThan(decimal.Zero) {
		unitCost = adj.UnitCost
	}
	history := StockHistory{
		SkuId:         adj.SkuId,
		WarehouseId:   adj.WarehouseId,
		Qty:           adj.Delta,
		ClosingQty:    stock.Quantity,
		UnitCost:      unitCost,
		PreviousCost:  previousCost,
		ReferenceType: adj.ReferenceType,
		ReferenceID:   adj.ReferenceID,
		IsReversal:    adj.IsReversal,
	}
	if err := tx.Create(&history).Error; err != nil {
		return nil, err
	}
	return &stock, nil
}

// costBeforeIncrease looks up the cost price in effect before the increase
// that adj reverses. It reports false when there is no such increase or a
// later increase has set the cost since.
func costBeforeIncrease(tx *gorm.DB, adj StockAdjustment) (decimal.Decimal, bool, error) {
	var original StockHistory
	err := tx.Where("sku_id = ? AND warehouse_id = ? AND reference_type = ? AND reference_id = ? AND qty > 0 AND is_reversal = ?",
		adj.SkuId, adj.WarehouseId, adj.ReferenceType, adj.ReferenceID, false).
		Order("id").First(&original).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	later, err := utils.ResourceCountWhere[StockHistory](tx,
		"sku_id = ? AND warehouse_id = ? AND id > ? AND qty > 0 AND NOT (reference_type = ? AND reference_id = ?)",
		adj.SkuId, adj.WarehouseId, original.ID, adj.ReferenceType, adj.ReferenceID)
	if err != nil {
		return decimal.Zero, false, err
	}
	if later > 0 {
		return decimal.Zero, false, nil
	}
	return original.PreviousCost, true, nil
}

// lockStock reads a ledger row FOR UPDATE; a missing row comes back as nil.
func lockStock(tx *gorm.DB, skuId, warehouseId int) (*Stock, error) {
	var stock Stock
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("sku_id = ? AND warehouse_id = ?", skuId, warehouseId).
		First(&stock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

// availableQuantities returns current ledger quantity per sku in a warehouse.
func availableQuantities(tx *gorm.DB, warehouseId int, skuIds []int) (map[int]int, error) {
	result := make(map[int]int)
	if len(skuIds) == 0 {
		return result, nil
	}
	var stocks []Stock
	if err := tx.Where("warehouse_id = ? AND sku_id IN ?", warehouseId, utils.UniqueSlice(skuIds)).Find(&stocks).Error; err != nil {
		return nil, err
	}
	for _, s := range stocks {
		result[s.SkuId] = s.Quantity
	}
	return result, nil
}

// inboundCost picks the unit cost for stock coming back without a purchase price:
// the ledger's current cost, else the sku's purchase price.
func inboundCost(tx *gorm.DB, skuId, warehouseId int) (decimal.Decimal, error) {
	stock, err := lockStock(tx, skuId, warehouseId)
	if err != nil {
		return decimal.Zero, err
	}
	if stock != nil && stock.CostPrice.GreaterThan(decimal.Zero) {
		return stock.CostPrice, nil
	}
	var sku Sku
	if err := tx.First(&sku, skuId).Error; err != nil {
		return decimal.Zero, notFoundOr(err, "sku", skuId)
	}
	return sku.PurchasePrice, nil
}

type StockFilter struct {
	SkuId       int `form:"sku_id"`
	WarehouseId int `form:"warehouse_id"`
}

func GetStocks(ctx context.Context, filter StockFilter) ([]*Stock, error) {
	db := config.GetDB().WithContext(ctx)
	if filter.SkuId > 0 {
		db = db.Where("sku_id = ?", filter.SkuId)
	}
	if filter.WarehouseId > 0 {
		db = db.Where("warehouse_id = ?", filter.WarehouseId)
	}
	var stocks []*Stock
	if err := db.Order("sku_id, warehouse_id").Find(&stocks).Error; err != nil {
		return nil, err
	}
	return stocks, nil
}

func GetStockHistories(ctx context.Context, filter StockFilter) ([]*StockHistory, error) {
	db := config.GetDB().WithContext(ctx)
	if filter.SkuId > 0 {
		db = db.Where("sku_id = ?", filter.SkuId)
	}
	if filter.WarehouseId > 0 {
		db = db.Where("warehouse_id = ?", filter.WarehouseId)
	}
	var histories []*StockHistory
	if err := db.Order("id").Find(&histories).Error; err != nil {
		return nil, err
	}
	return histories, nil
}
