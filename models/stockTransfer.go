package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockTransfer moves goods between two warehouses. Items are valued at the
// source warehouse's cost price when the transfer is audited.
type StockTransfer struct {
	ID              int                 `gorm:"primary_key" json:"id"`
	DocNumber       string              `gorm:"size:32;not null;uniqueIndex" json:"doc_number"`
	SequenceNo      int64               `gorm:"index;not null" json:"sequence_no"`
	FromWarehouseId int                 `gorm:"index;not null" json:"from_warehouse_id"`
	ToWarehouseId   int                 `gorm:"index;not null" json:"to_warehouse_id"`
	Status          MovementStatus      `gorm:"size:20;not null;index" json:"status"`
	TotalAmount     decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Remark          string              `gorm:"type:text" json:"remark"`
	Items           []StockTransferItem `gorm:"foreignKey:StockTransferId" json:"items"`
	CreatedBy       int                 `json:"created_by"`
	AuditBy         int                 `json:"audit_by"`
	AuditedAt       *time.Time          `json:"audited_at"`
	CancelledAt     *time.Time          `json:"cancelled_at"`
	CreatedAt       time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt      `gorm:"index" json:"-"`
}

type StockTransferItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	StockTransferId int             `gorm:"index;not null" json:"stock_transfer_id"`
	SkuId           int             `gorm:"index;not null" json:"sku_id"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	Price           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
}

type NewStockTransfer struct {
	FromWarehouseId int               `json:"from_warehouse_id" validate:"required,gt=0"`
	ToWarehouseId   int               `json:"to_warehouse_id" validate:"required,gt=0,nefield=FromWarehouseId"`
	Remark          string            `json:"remark"`
	Items           []NewMovementItem `json:"items" validate:"required,min=1,dive"`
}

func CreateStockTransfer(ctx context.Context, input *NewStockTransfer) (*StockTransfer, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	var doc StockTransfer
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := requireWarehouse(tx, input.FromWarehouseId); err != nil {
			return err
		}
		if err := requireWarehouse(tx, input.ToWarehouseId); err != nil {
			return err
		}
		lines, err := planFreeMovement(tx, input.Items, false)
		if err != nil {
			return err
		}
		seqNo, number, err := nextDocumentNumber[StockTransfer](ctx, tx, PrefixStockTransfer)
		if err != nil {
			return err
		}
		doc = StockTransfer{
			DocNumber:       number,
			SequenceNo:      seqNo,
			FromWarehouseId: input.FromWarehouseId,
			ToWarehouseId:   input.ToWarehouseId,
			Status:          MovementStatusPending,
			TotalAmount:     sumLines(lines),
			Remark:          input.Remark,
		}
		for _, l := range lines {
			doc.Items = append(doc.Items, StockTransferItem{
				SkuId:    l.SkuId,
				Quantity: l.Quantity,
				Price:    l.Price,
				Amount:   l.Amount,
			})
		}
		return tx.Create(&doc).Error
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// AuditStockTransfer takes the goods out of the source and puts them into the
// destination at the source's cost price.
func AuditStockTransfer(ctx context.Context, id int) (*StockTransfer, error) {
	var doc *StockTransfer
	err := withDocumentLock(ctx, "stock_transfer", id, func(tx *gorm.DB) error {
		var err error
		doc, err = lockStockTransfer(tx, id)
		if err != nil {
			return err
		}
		if err := CheckMovementTransition("stock transfer", doc.Status, ActionAudit); err != nil {
			return err
		}
		total := decimal.Zero
		for i := range doc.Items {
			item := &doc.Items[i]
			source, err := AdjustStock(tx, StockAdjustment{
				SkuId:         item.SkuId,
				WarehouseId:   doc.FromWarehouseId,
				Delta:         -item.Quantity,
				ReferenceType: StockReferenceTransferOut,
				ReferenceID:   doc.ID,
			})
			if err != nil {
				return err
			}
			if _, err := AdjustStock(tx, StockAdjustment{
				SkuId:         item.SkuId,
				WarehouseId:   doc.ToWarehouseId,
				Delta:         item.Quantity,
				UnitCost:      source.CostPrice,
				ReferenceType: StockReferenceTransferIn,
				ReferenceID:   doc.ID,
			}); err != nil {
				return err
			}
			item.Price = source.CostPrice
			item.Amount = utils.LineAmount(item.Quantity, item.Price)
			total = total.Add(item.Amount)
			if err := tx.Model(item).Updates(map[string]interface{}{
				"price":  item.Price,
				"amount": item.Amount,
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

// CancelStockTransfer drops a pending transfer or moves an audited one back.
// Goods already consumed at the destination cannot be moved back.
func CancelStockTransfer(ctx context.Context, id int) (*StockTransfer, error) {
	var doc *StockTransfer
	err := withDocumentLock(ctx, "stock_transfer", id, func(tx *gorm.DB) error {
		var err error
		doc, err = lockStockTransfer(tx, id)
		if err != nil {
			return err
		}
		if err := CheckMovementTransition("stock transfer", doc.Status, ActionCancel); err != nil {
			return err
		}
		if doc.Status == MovementStatusAudited {
			for _, item := range doc.Items {
				if _, err := AdjustStock(tx, StockAdjustment{
					SkuId:         item.SkuId,
					WarehouseId:   doc.ToWarehouseId,
					Delta:         -item.Quantity,
					ReferenceType: StockReferenceTransferIn,
					ReferenceID:   doc.ID,
					IsReversal:    true,
				}); err != nil {
					return err
				}
				if _, err := AdjustStock(tx, StockAdjustment{
					SkuId:         item.SkuId,
					WarehouseId:   doc.FromWarehouseId,
					Delta:         item.Quantity,
					UnitCost:      item.Price,
					ReferenceType: StockReferenceTransferOut,
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

func GetStockTransfer(ctx context.Context, id int) (*StockTransfer, error) {
	doc, err := utils.FetchModel[StockTransfer](ctx, id, "Items")
	if err != nil {
		return nil, notFoundOr(err, "stock transfer", id)
	}
	return doc, nil
}

func lockStockTransfer(tx *gorm.DB, id int) (*StockTransfer, error) {
	doc, err := utils.FetchModelForUpdate[StockTransfer](tx, id, "Items")
	if err != nil {
		return nil, notFoundOr(err, "stock transfer", id)
	}
	return doc, nil
}
