package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReturnStock moves the goods of a return: back into the warehouse for sale
// returns, out to the supplier for purchase returns.
type ReturnStock struct {
	ID          int               `gorm:"primary_key" json:"id"`
	DocNumber   string            `gorm:"size:32;not null;uniqueIndex" json:"doc_number"`
	SequenceNo  int64             `gorm:"index;not null" json:"sequence_no"`
	ReturnId    int               `gorm:"index;not null" json:"return_id"`
	Type        ReturnType        `gorm:"size:20;not null" json:"type"`
	WarehouseId int               `gorm:"index;not null" json:"warehouse_id"`
	Status      MovementStatus    `gorm:"size:20;not null;index" json:"status"`
	TotalAmount decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Remark      string            `gorm:"type:text" json:"remark"`
	Items       []ReturnStockItem `gorm:"foreignKey:ReturnStockId" json:"items"`
	CreatedBy   int               `json:"created_by"`
	AuditBy     int               `json:"audit_by"`
	AuditedAt   *time.Time        `json:"audited_at"`
	CancelledAt *time.Time        `json:"cancelled_at"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt    `gorm:"index" json:"-"`
}

type ReturnStockItem struct {
	ID            int             `gorm:"primary_key" json:"id"`
	ReturnStockId int             `gorm:"index;not null" json:"return_stock_id"`
	ReturnItemId  int             `gorm:"index;not null" json:"return_item_id"`
	SkuId         int             `gorm:"index;not null" json:"sku_id"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	Price         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	CostPrice     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_price"`
}

type ReturnStockLine struct {
	ReturnItemId int `json:"return_item_id" validate:"gt=0"`
	Quantity     int `json:"quantity" validate:"gt=0"`
}

// NewReturnStock picks part of the unprocessed remainder; no items means all of it.
type NewReturnStock struct {
	Remark string            `json:"remark"`
	Items  []ReturnStockLine `json:"items" validate:"dive"`
}

// CreateReturnStock emits a return stock document for the unprocessed
// remainder of an audited return and marks it processed.
func CreateReturnStock(ctx context.Context, returnId int, input *NewReturnStock) (*ReturnStock, error) {
	if input == nil {
		input = &NewReturnStock{}
	}
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	var doc ReturnStock
	err := withDocumentLock(ctx, "return", returnId, func(tx *gorm.DB) error {
		ret, err := lockReturn(tx, returnId)
		if err != nil {
			return err
		}
		if err := CheckReturnTransition(ret.Status, ActionCreateStock); err != nil {
			return err
		}

		take := make(map[int]int)
		if len(input.Items) == 0 {
			for _, item := range ret.Items {
				if left := item.ReturnQuantity - item.ProcessedQuantity; left > 0 {
					take[item.ID] = left
				}
			}
			if len(take) == 0 {
				return utils.NewAppError(utils.KindNothingPending, "return %s has nothing left to stock", ret.ReturnNumber)
			}
		} else {
			byId := make(map[int]ReturnItem, len(ret.Items))
			for _, item := range ret.Items {
				byId[item.ID] = item
			}
			for i, line := range input.Items {
				item, ok := byId[line.ReturnItemId]
				if !ok {
					return utils.NewValidationError("item %d: return_item_id %d is not on return %s", i+1, line.ReturnItemId, ret.ReturnNumber)
				}
				take[item.ID] += line.Quantity
				if left := item.ReturnQuantity - item.ProcessedQuantity; take[item.ID] > left {
					return utils.NewValidationError("item %d: only %d of sku %d is left to stock", i+1, left, item.SkuId)
				}
			}
		}

		seqNo, number, err := nextDocumentNumber[ReturnStock](ctx, tx, PrefixReturnStock)
		if err != nil {
			return err
		}
		doc = ReturnStock{
			DocNumber:   number,
			SequenceNo:  seqNo,
			ReturnId:    ret.ID,
			Type:        ret.Type,
			WarehouseId: ret.WarehouseId,
			Status:      MovementStatusPending,
			TotalAmount: decimal.Zero,
			Remark:      input.Remark,
		}
		for i := range ret.Items {
			item := &ret.Items[i]
			qty := take[item.ID]
			if qty == 0 {
				continue
			}
			amount := utils.LineAmount(qty, item.Price)
			doc.Items = append(doc.Items, ReturnStockItem{
				ReturnItemId: item.ID,
				SkuId:        item.SkuId,
				Quantity:     qty,
				Price:        item.Price,
				Amount:       amount,
			})
			doc.TotalAmount = doc.TotalAmount.Add(amount)
			item.ProcessedQuantity += qty
			if err := tx.Model(item).Update("processed_quantity", item.ProcessedQuantity).Error; err != nil {
				return err
			}
		}
		return tx.Create(&doc).Error
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// AuditReturnStock moves the goods in the ledger. Purchase returns fail with
// InsufficientStock when the warehouse no longer holds the goods.
func AuditReturnStock(ctx context.Context, id int) (*ReturnStock, error) {
	var doc *ReturnStock
	err := withDocumentLock(ctx, "return_stock", id, func(tx *gorm.DB) error {
		var err error
		doc, err = lockReturnStock(tx, id)
		if err != nil {
			return err
		}
		if err := CheckMovementTransition("return stock", doc.Status, ActionAudit); err != nil {
			return err
		}
		ret, err := lockReturn(tx, doc.ReturnId)
		if err != nil {
			return err
		}
		if ret.Status != ReturnStatusAudited {
			return utils.NewStateConflict("cannot audit return stock of return %s in status %s", ret.ReturnNumber, ret.Status)
		}
		stocked := make(map[int]int)
		for i := range doc.Items {
			item := &doc.Items[i]
			adj := StockAdjustment{
				SkuId:         item.SkuId,
				WarehouseId:   doc.WarehouseId,
				Delta:         item.Quantity,
				ReferenceType: StockReferenceReturnStock,
				ReferenceID:   doc.ID,
			}
			if doc.Type == ReturnTypeSale {
				cost, err := inboundCost(tx, item.SkuId, doc.WarehouseId)
				if err != nil {
					return err
				}
				adj.UnitCost = cost
			} else {
				adj.Delta = -item.Quantity
			}
			stock, err := AdjustStock(tx, adj)
			if err != nil {
				return err
			}
			item.CostPrice = stock.CostPrice
			if err := tx.Model(item).Update("cost_price", item.CostPrice).Error; err != nil {
				return err
			}
			stocked[item.ReturnItemId] += item.Quantity
		}
		if err := ret.addStocked(tx, stocked); err != nil {
			return err
		}
		doc.Status = MovementStatusAudited
		doc.AuditBy, doc.AuditedAt = auditStamp(tx)
		return tx.Omit(clause.Associations).Save(doc).Error
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// CancelReturnStock frees the quantities of a pending document, or reverses
// an audited one while the return is still open and nothing was refunded.
func CancelReturnStock(ctx context.Context, id int) (*ReturnStock, error) {
	var doc *ReturnStock
	err := withDocumentLock(ctx, "return_stock", id, func(tx *gorm.DB) error {
		var err error
		doc, err = lockReturnStock(tx, id)
		if err != nil {
			return err
		}
		if err := CheckMovementTransition("return stock", doc.Status, ActionCancel); err != nil {
			return err
		}
		ret, err := lockReturn(tx, doc.ReturnId)
		if err != nil {
			return err
		}
		released := make(map[int]int)
		for _, item := range doc.Items {
			released[item.ReturnItemId] += item.Quantity
		}

		if doc.Status == MovementStatusAudited {
			if ret.Status != ReturnStatusAudited {
				return utils.NewStateConflict("cannot reverse return stock of return %s in status %s", ret.ReturnNumber, ret.Status)
			}
			if !utils.IsZeroMoney(ret.RefundedAmount) {
				return utils.NewStateConflict("return %s already has refunds", ret.ReturnNumber)
			}
			for _, item := range doc.Items {
				adj := StockAdjustment{
					SkuId:         item.SkuId,
					WarehouseId:   doc.WarehouseId,
					Delta:         -item.Quantity,
					ReferenceType: StockReferenceReturnStock,
					ReferenceID:   doc.ID,
					IsReversal:    true,
				}
				if doc.Type == ReturnTypePurchase {
					adj.Delta = item.Quantity
					adj.UnitCost = item.CostPrice
				}
				if _, err := AdjustStock(tx, adj); err != nil {
					return err
				}
			}
			negated := make(map[int]int, len(released))
			for k, v := range released {
				negated[k] = -v
			}
			if err := ret.addStocked(tx, negated); err != nil {
				return err
			}
		}
		for i := range ret.Items {
			item := &ret.Items[i]
			if qty := released[item.ID]; qty > 0 {
				item.ProcessedQuantity -= qty
				if item.ProcessedQuantity < 0 {
					item.ProcessedQuantity = 0
				}
				if err := tx.Model(item).Update("processed_quantity", item.ProcessedQuantity).Error; err != nil {
					return err
				}
			}
		}

		now := time.Now().UTC()
		doc.Status = MovementStatusCancelled
		doc.CancelledAt = &now
		return tx.Omit(clause.Associations).Save(doc).Error
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// addStocked moves stocked quantities per return item and refreshes stock progress.
func (r *Return) addStocked(tx *gorm.DB, deltas map[int]int) error {
	for i := range r.Items {
		item := &r.Items[i]
		delta := deltas[item.ID]
		if delta == 0 {
			continue
		}
		next := item.StockedQuantity + delta
		if next < 0 || next > item.ProcessedQuantity {
			return utils.NewStateConflict("stocked quantity of sku %d out of range on return %s", item.SkuId, r.ReturnNumber)
		}
		item.StockedQuantity = next
		if err := tx.Model(item).Update("stocked_quantity", next).Error; err != nil {
			return err
		}
	}
	r.refreshStockStatus()
	return tx.Model(r).Update("stock_status", r.StockStatus).Error
}

func GetReturnStock(ctx context.Context, id int) (*ReturnStock, error) {
	doc, err := utils.FetchModel[ReturnStock](ctx, id, "Items")
	if err != nil {
		return nil, notFoundOr(err, "return stock", id)
	}
	return doc, nil
}

func lockReturnStock(tx *gorm.DB, id int) (*ReturnStock, error) {
	doc, err := utils.FetchModelForUpdate[ReturnStock](tx, id, "Items")
	if err != nil {
		return nil, notFoundOr(err, "return stock", id)
	}
	return doc, nil
}
