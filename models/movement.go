package models

import (
	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NewMovementItem is one line of a stock movement document. Lines of a
// document linked to an order name the order item; unlinked lines name a sku.
type NewMovementItem struct {
	OrderItemId int             `json:"order_item_id"`
	SkuId       int             `json:"sku_id"`
	ProductId   int             `json:"product_id"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	Price       decimal.Decimal `json:"price"`
}

// orderProgress is the view of one order line a movement document needs.
type orderProgress struct {
	ItemId   int
	SkuId    int
	Quantity int
	Done     int
	Price    decimal.Decimal
}

type movementLine struct {
	OrderItemId int
	SkuId       int
	Quantity    int
	Price       decimal.Decimal
	Amount      decimal.Decimal
}

// planOrderMovement checks requested lines against what is still open on the
// order: ordered - fulfilled - already sitting in pending documents.
// With no requested lines every open remainder is taken.
func planOrderMovement(progress []orderProgress, pending map[int]int, items []NewMovementItem) ([]movementLine, error) {
	byId := make(map[int]orderProgress, len(progress))
	for _, p := range progress {
		byId[p.ItemId] = p
	}
	open := func(p orderProgress) int {
		return p.Quantity - p.Done - pending[p.ItemId]
	}

	var lines []movementLine
	if len(items) == 0 {
		for _, p := range progress {
			if qty := open(p); qty > 0 {
				lines = append(lines, movementLine{OrderItemId: p.ItemId, SkuId: p.SkuId, Quantity: qty, Price: p.Price})
			}
		}
		if len(lines) == 0 {
			return nil, utils.NewAppError(utils.KindNothingPending, "nothing left to move on this order")
		}
	} else {
		requested := make(map[int]int)
		for i, item := range items {
			if item.Quantity <= 0 {
				return nil, utils.NewValidationError("item %d: quantity must be positive", i+1)
			}
			p, ok := byId[item.OrderItemId]
			if !ok {
				return nil, utils.NewValidationError("item %d: order_item_id %d is not on this order", i+1, item.OrderItemId)
			}
			if item.SkuId > 0 && item.SkuId != p.SkuId {
				return nil, utils.NewValidationError("item %d: sku %d does not match the order item", i+1, item.SkuId)
			}
			requested[p.ItemId] += item.Quantity
			if requested[p.ItemId] > open(p) {
				return nil, utils.NewValidationError("item %d: quantity exceeds the open quantity %d of sku %d", i+1, open(p), p.SkuId)
			}
			price := p.Price
			if item.Price.GreaterThan(decimal.Zero) {
				price = item.Price
			}
			lines = append(lines, movementLine{OrderItemId: p.ItemId, SkuId: p.SkuId, Quantity: item.Quantity, Price: price})
		}
	}
	for i := range lines {
		lines[i].Amount = utils.LineAmount(lines[i].Quantity, lines[i].Price)
	}
	return lines, nil
}

// planFreeMovement resolves lines of a document without an order.
func planFreeMovement(tx *gorm.DB, items []NewMovementItem, requirePrice bool) ([]movementLine, error) {
	if len(items) == 0 {
		return nil, utils.NewValidationError("at least one item is required")
	}
	lines := make([]movementLine, 0, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, utils.NewValidationError("item %d: quantity must be positive", i+1)
		}
		if item.OrderItemId > 0 {
			return nil, utils.NewValidationError("item %d: order_item_id given without an order", i+1)
		}
		if item.Price.IsNegative() || (requirePrice && !item.Price.GreaterThan(decimal.Zero)) {
			return nil, utils.NewValidationError("item %d: price must be positive", i+1)
		}
		sku, err := resolveSku(tx, item.SkuId, item.ProductId)
		if err != nil {
			return nil, err
		}
		lines = append(lines, movementLine{
			SkuId:    sku.ID,
			Quantity: item.Quantity,
			Price:    item.Price,
			Amount:   utils.LineAmount(item.Quantity, item.Price),
		})
	}
	return lines, nil
}

func sumLines(lines []movementLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return total
}

// pendingQuantities sums quantities per order item sitting in pending documents
// of the given tables, skipping excludeDocId.
func pendingQuantities(tx *gorm.DB, itemTable, docTable, docFk, orderFk, orderItemFk string, orderId, excludeDocId int) (map[int]int, error) {
	var rows []struct {
		OrderItemId int
		Qty         int
	}
	err := tx.Table(itemTable+" AS i").
		Select("i."+orderItemFk+" AS order_item_id, SUM(i.quantity) AS qty").
		Joins("JOIN "+docTable+" AS d ON d.id = i."+docFk).
		Where("d."+orderFk+" = ? AND d.status = ? AND d.deleted_at IS NULL AND d.id <> ?", orderId, MovementStatusPending, excludeDocId).
		Group("i." + orderItemFk).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[int]int, len(rows))
	for _, r := range rows {
		result[r.OrderItemId] = r.Qty
	}
	return result, nil
}
