package models

import (
	"time"

	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NewOrderItem is one requested order line; product_id is accepted for
// single-sku products.
type NewOrderItem struct {
	SkuId     int             `json:"sku_id"`
	ProductId int             `json:"product_id"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	Price     decimal.Decimal `json:"price"`
}

type orderLine struct {
	SkuId    int
	Quantity int
	Price    decimal.Decimal
	Amount   decimal.Decimal
}

// buildOrderLines resolves skus and prices every line; it returns the order total.
func buildOrderLines(tx *gorm.DB, items []NewOrderItem) ([]orderLine, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, utils.NewValidationError("at least one item is required")
	}
	lines := make([]orderLine, 0, len(items))
	total := decimal.Zero
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, decimal.Zero, utils.NewValidationError("item %d: quantity must be positive", i+1)
		}
		if !item.Price.GreaterThan(decimal.Zero) {
			return nil, decimal.Zero, utils.NewValidationError("item %d: price must be positive", i+1)
		}
		sku, err := resolveSku(tx, item.SkuId, item.ProductId)
		if err != nil {
			return nil, decimal.Zero, err
		}
		amount := utils.LineAmount(item.Quantity, item.Price)
		total = total.Add(amount)
		lines = append(lines, orderLine{
			SkuId:    sku.ID,
			Quantity: item.Quantity,
			Price:    item.Price,
			Amount:   amount,
		})
	}
	return lines, total, nil
}

// requestedBySku sums line quantities per sku.
func requestedBySku(lines []orderLine) map[int]int {
	result := make(map[int]int)
	for _, l := range lines {
		result[l.SkuId] += l.Quantity
	}
	return result
}

// ensureStockAvailable fails with InsufficientStock when the warehouse
// cannot cover the requested quantity of any sku.
func ensureStockAvailable(tx *gorm.DB, warehouseId int, requested map[int]int) error {
	skuIds := make([]int, 0, len(requested))
	for skuId := range requested {
		skuIds = append(skuIds, skuId)
	}
	available, err := availableQuantities(tx, warehouseId, skuIds)
	if err != nil {
		return err
	}
	for _, skuId := range skuIds {
		if requested[skuId] > available[skuId] {
			return utils.NewAppError(utils.KindInsufficientStock,
				"insufficient stock for sku %d in warehouse %d: have %d, need %d", skuId, warehouseId, available[skuId], requested[skuId])
		}
	}
	return nil
}

func auditStamp(tx *gorm.DB) (int, *time.Time) {
	now := time.Now().UTC()
	return utils.GetUserIdFromContext(tx.Statement.Context), &now
}
