package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockTake records a physical count of one warehouse. The difference against
// the ledger is taken when the count is audited, not when it is entered.
type StockTake struct {
	ID          int             `gorm:"primary_key" json:"id"`
	DocNumber   string          `gorm:"size:32;not null;uniqueIndex" json:"doc_number"`
	SequenceNo  int64           `gorm:"index;not null" json:"sequence_no"`
	WarehouseId int             `gorm:"index;not null" json:"warehouse_id"`
	Status      MovementStatus  `gorm:"size:20;not null;index" json:"status"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Remark      string          `gorm:"type:text" json:"remark"`
	Items       []StockTakeItem `gorm:"foreignKey:StockTakeId" json:"items"`
	CreatedBy   int             `json:"created_by"`
	AuditBy     int             `json:"audit_by"`
	AuditedAt   *time.Time      `json:"audited_at"`
	CancelledAt *time.Time      `json:"cancelled_at"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

type StockTakeItem struct {
	ID              int `gorm:"primary_key" json:"id"`
	StockTakeId     int `gorm:"index;not null" json:"stock_take_id"`
	SkuId           int `gorm:"index;not null" json:"sku_id"`
	CountedQuantity int `gorm:"not null" json:"counted_quantity"`
	// ledger quantity when entered; replaced by the ledger quantity at audit
	SystemQuantity int `gorm:"not null;default:0" json:"system_quantity"`
	// counted - system, the ledger delta applied at audit
	Difference int             `gorm:"not null;default:0" json:"difference"`
	Price      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
}

type NewStockTakeItem struct {
	SkuId           int `json:"sku_id"`
	ProductId       int `json:"product_id"`
	CountedQuantity int `json:"counted_quantity" validate:"gte=0"`
}

type NewStockTake struct {
	WarehouseId int                `json:"warehouse_id" validate:"required,gt=0"`
	Remark      string             `json:"remark"`
	Items       []NewStockTakeItem `json:"items" validate:"required,min=1,dive"`
}

func CreateStockTake(ctx context.Context, input *NewStockTake) (*StockTake, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	var doc StockTake
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := requireWarehouse(tx, input.WarehouseId); err != nil {
			return err
		}
		seen := make(map[int]bool)
		skuIds := make([]int, 0, len(input.Items))
		items := make([]StockTakeItem, 0, len(input.Items))
		for i, in := range input.Items {
			sku, err := resolveSku(tx, in.SkuId, in.ProductId)
			if err != nil {
				return err
			}
			if seen[sku.ID] {
				return utils.NewValidationError("item %d: sku %d is counted twice", i+1, sku.ID)
			}
			seen[sku.ID] = true
			skuIds = append(skuIds, sku.ID)
			items = append(items, StockTakeItem{SkuId: sku.ID, CountedQuantity: in.CountedQuantity})
		}
		available, err := availableQuantities(tx, input.WarehouseId, skuIds)
		if err != nil {
			return err
		}
		for i := range items {
			items[i].SystemQuantity = available[items[i].SkuId]
			items[i].Difference = items[i].CountedQuantity - items[i].SystemQuantity
		}

		seqNo, number, err := nextDocumentNumber[StockTake](ctx, tx, PrefixStockTake)
		if err != nil {
			return err
		}
		doc = StockTake{
			DocNumber:   number,
			SequenceNo:  seqNo,
			WarehouseId: input.WarehouseId,
			Status:      MovementStatusPending,
			Remark:      input.Remark,
			Items:       items,
		}
		return tx.Create(&doc).Error
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// AuditStockTake brings the ledger to the counted quantities. Gains come in at
// the current cost price, or the sku's purchase price for a new row.
func AuditStockTake(ctx context.Context, id int) (*StockTake, error) {
	var doc *StockTake
	err := withDocumentLock(ctx, "stock_take", id, func(tx *gorm.DB) error {
		var err error
		doc, err = lockStockTake(tx, id)
		if err != nil {
			return err
		}
		if err := CheckMovementTransition("stock take", doc.Status, ActionAudit); err != nil {
			return err
		}
		total := decimal.Zero
		for i := range doc.Items {
			item := &doc.Items[i]
			stock, err := lockStock(tx, item.SkuId, doc.WarehouseId)
			if err != nil {
				return err
			}
			system := 0
			if stock != nil {
				system = stock.Quantity
			}
			cost, err := inboundCost(tx, item.SkuId, doc.WarehouseId)
			if err != nil {
				return err
			}
			item.SystemQuantity = system
			item.Difference = item.CountedQuantity - system
			item.Price = cost
			item.Amount = utils.LineAmount(item.Difference, cost)
			if _, err := AdjustStock(tx, StockAdjustment{
				SkuId:         item.SkuId,
				WarehouseId:   doc.WarehouseId,
				Delta:         item.Difference,
				UnitCost:      cost,
				ReferenceType: StockReferenceStockTake,
				ReferenceID:   doc.ID,
			}); err != nil {
				return err
			}
			total = total.Add(item.Amount)
			if err := tx.Model(item).Updates(map[string]interface{}{
				"system_quantity": item.SystemQuantity,
				"difference":      item.Difference,
				"price":           item.Price,
				"amount":          item.Amount,
			}).Error; err != nil {
				return err
			}
		}
		doc.TotalAmount = total
		doc.Status = MovementStatusAudited
		doc.AuditBy, doc.AuditedAt = auditStamp(tx)
		return tx.Omit(clause.Associations).Save(doc).Error
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// CancelStockTake drops a pending count or undoes the differences of an audited one.
func CancelStockTake(ctx context.Context, id int) (*StockTake, error) {
	var doc *StockTake
	err := withDocumentLock(ctx, "stock_take", id, func(tx *gorm.DB) error {
		var err error
		doc, err = lockStockTake(tx, id)
		if err != nil {
			return err
		}
		if err := CheckMovementTransition("stock take", doc.Status, ActionCancel); err != nil {
			return err
		}
		if doc.Status == MovementStatusAudited {
			for _, item := range doc.Items {
				if _, err := AdjustStock(tx, StockAdjustment{
					SkuId:         item.SkuId,
					WarehouseId:   doc.WarehouseId,
					Delta:         -item.Difference,
					UnitCost:      item.Price,
					ReferenceType: StockReferenceStockTake,
					ReferenceID:   doc.ID,
					IsReversal:    true,
				}); err != nil {
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

func GetStockTake(ctx context.Context, id int) (*StockTake, error) {
	doc, err := utils.FetchModel[StockTake](ctx, id, "Items")
	if err != nil {
		return nil, notFoundOr(err, "stock take", id)
	}
	return doc, nil
}

func lockStockTake(tx *gorm.DB, id int) (*StockTake, error) {
	doc, err := utils.FetchModelForUpdate[StockTake](tx, id, "Items")
	if err != nil {
		return nil, notFoundOr(err, "stock take", id)
	}
	return doc, nil
}
