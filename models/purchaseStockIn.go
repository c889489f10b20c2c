package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PurchaseStockIn receives goods into a warehouse, optionally against a purchase order.
type PurchaseStockIn struct {
	ID              int                   `gorm:"primary_key" json:"id"`
	DocNumber       string                `gorm:"size:32;not null;uniqueIndex" json:"doc_number"`
	SequenceNo      int64                 `gorm:"index;not null" json:"sequence_no"`
	PurchaseOrderId int                   `gorm:"index;default:0" json:"purchase_order_id"`
	WarehouseId     int                   `gorm:"index;not null" json:"warehouse_id"`
	Status          MovementStatus        `gorm:"size:20;not null;index" json:"status"`
	TotalAmount     decimal.Decimal       `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Remark          string                `gorm:"type:text" json:"remark"`
	Items           []PurchaseStockInItem `gorm:"foreignKey:PurchaseStockInId" json:"items"`
	CreatedBy       int                   `json:"created_by"`
	AuditBy         int                   `json:"audit_by"`
	AuditedAt       *time.Time            `json:"audited_at"`
	CancelledAt     *time.Time            `json:"cancelled_at"`
	CreatedAt       time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt        `gorm:"index" json:"-"`
}

type PurchaseStockInItem struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	PurchaseStockInId   int             `gorm:"index;not null" json:"purchase_stock_in_id"`
	PurchaseOrderItemId int             `gorm:"index;default:0" json:"purchase_order_item_id"`
	SkuId               int             `gorm:"index;not null" json:"sku_id"`
	Quantity            int             `gorm:"not null" json:"quantity"`
	Price               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Amount              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
}

type NewPurchaseStockIn struct {
	PurchaseOrderId int               `json:"purchase_order_id"`
	WarehouseId     int               `json:"warehouse_id"`
	Remark          string            `json:"remark"`
	Items           []NewMovementItem `json:"items" validate:"dive"`
}

func purchaseOrderProgress(order *PurchaseOrder) []orderProgress {
	progress := make([]orderProgress, 0, len(order.Items))
	for _, item := range order.Items {
		progress = append(progress, orderProgress{
			ItemId:   item.ID,
			SkuId:    item.SkuId,
			Quantity: item.Quantity,
			Done:     item.ReceivedQuantity,
			Price:    item.Price,
		})
	}
	return progress
}

func pendingPurchaseReceipts(tx *gorm.DB, orderId, excludeDocId int) (map[int]int, error) {
	return pendingQuantities(tx, "purchase_stock_in_items", "purchase_stock_ins", "purchase_stock_in_id",
		"purchase_order_id", "purchase_order_item_id", orderId, excludeDocId)
}

// CreatePurchaseStockIn drafts a receipt. Linked to an order, quantities are
// capped by what is still open on the order; with no items all of it is taken.
func CreatePurchaseStockIn(ctx context.Context, input *NewPurchaseStockIn) (*PurchaseStockIn, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	var doc PurchaseStockIn
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		warehouseId := input.WarehouseId
		var lines []movementLine
		if input.PurchaseOrderId > 0 {
			order, err := lockPurchaseOrder(tx, input.PurchaseOrderId)
			if err != nil {
				return err
			}
			if err := CheckOrderTransition("purchase order", order.Status, ActionFulfil); err != nil {
				return err
			}
			if warehouseId == 0 {
				warehouseId = order.WarehouseId
			}
			pending, err := pendingPurchaseReceipts(tx, order.ID, 0)
			if err != nil {
				return err
			}
			lines, err = planOrderMovement(purchaseOrderProgress(order), pending, input.Items)
			if err != nil {
				return err
			}
		} else {
			var err error
			lines, err = planFreeMovement(tx, input.Items, true)
			if err != nil {
				return err
			}
		}
		if err := requireWarehouse(tx, warehouseId); err != nil {
			return err
		}

		seqNo, number, err := nextDocumentNumber[PurchaseStockIn](ctx, tx, PrefixPurchaseStockIn)
		if err != nil {
			return err
		}
		doc = PurchaseStockIn{
			DocNumber:       number,
			SequenceNo:      seqNo,
			PurchaseOrderId: input.PurchaseOrderId,
			WarehouseId:     warehouseId,
			Status:          MovementStatusPending,
			TotalAmount:     sumLines(lines),
			Remark:          input.Remark,
		}
		for _, l := range lines {
			doc.Items = append(doc.Items, PurchaseStockInItem{
				PurchaseOrderItemId: l.OrderItemId,
				SkuId:               l.SkuId,
				Quantity:            l.Quantity,
				Price:               l.Price,
				Amount:              l.Amount,
			})
		}
		return tx.Create(&doc).Error
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// AuditPurchaseStockIn puts the goods into the ledger at the receipt price
// and advances the order's received quantities.
func AuditPurchaseStockIn(ctx context.Context, id int) (*PurchaseStockIn, error) {
	var doc *PurchaseStockIn
	err := withDocumentLock(ctx, "purchase_stock_in", id, func(tx *gorm.DB) error {
		var err error
		doc, err = lockPurchaseStockIn(tx, id)
		if err != nil {
			return err
		}
		if err := CheckMovementTransition("purchase stock-in", doc.Status, ActionAudit); err != nil {
			return err
		}
		if doc.PurchaseOrderId > 0 {
			order, err := lockPurchaseOrder(tx, doc.PurchaseOrderId)
			if err != nil {
				return err
			}
			if err := CheckOrderTransition("purchase order", order.Status, ActionFulfil); err != nil {
				return err
			}
			deltas := make(map[int]int)
			for _, item := range doc.Items {
				deltas[item.PurchaseOrderItemId] += item.Quantity
			}
			if err := receivePurchaseOrderItems(tx, order, deltas); err != nil {
				return err
			}
		}
		for _, item := range doc.Items {
			if _, err := AdjustStock(tx, StockAdjustment{
				SkuId:         item.SkuId,
				WarehouseId:   doc.WarehouseId,
				Delta:         item.Quantity,
				UnitCost:      item.Price,
				ReferenceType: StockReferencePurchaseStockIn,
				ReferenceID:   doc.ID,
			}); err != nil {
				return err
			}
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

// CancelPurchaseStockIn drops a pending receipt, or takes an audited one back
// out of the ledger and the order's received quantities. Goods already sold
// or returned cannot be taken back.
func CancelPurchaseStockIn(ctx context.Context, id int) (*PurchaseStockIn, error) {
	var doc *PurchaseStockIn
	err := withDocumentLock(ctx, "purchase_stock_in", id, func(tx *gorm.DB) error {
		var err error
		doc, err = lockPurchaseStockIn(tx, id)
		if err != nil {
			return err
		}
		if err := CheckMovementTransition("purchase stock-in", doc.Status, ActionCancel); err != nil {
			return err
		}
		if doc.Status == MovementStatusAudited {
			if err := reversePurchaseStockIn(tx, doc); err != nil {
				return err
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

func reversePurchaseStockIn(tx *gorm.DB, doc *PurchaseStockIn) error {
	if doc.PurchaseOrderId > 0 {
		order, err := lockPurchaseOrder(tx, doc.PurchaseOrderId)
		if err != nil {
			return err
		}
		if err := CheckOrderTransition("purchase order", order.Status, ActionFulfil); err != nil {
			return err
		}
		returned, err := returnedQuantities(tx, ReturnTypePurchase, order.ID, 0)
		if err != nil {
			return err
		}
		deltas := make(map[int]int)
		for _, item := range doc.Items {
			deltas[item.PurchaseOrderItemId] -= item.Quantity
		}
		for _, item := range order.Items {
			if item.ReceivedQuantity+deltas[item.ID] < returned[item.ID] {
				return utils.NewStateConflict("sku %d of purchase order %s is already on a return", item.SkuId, order.OrderNumber)
			}
		}
		if err := receivePurchaseOrderItems(tx, order, deltas); err != nil {
			return err
		}
	}
	for _, item := range doc.Items {
		if _, err := AdjustStock(tx, StockAdjustment{
			SkuId:         item.SkuId,
			WarehouseId:   doc.WarehouseId,
			Delta:         -item.Quantity,
			ReferenceType: StockReferencePurchaseStockIn,
			ReferenceID:   doc.ID,
			IsReversal:    true,
		}); err != nil {
			return err
		}
	}
	return nil
}

func GetPurchaseStockIn(ctx context.Context, id int) (*PurchaseStockIn, error) {
	doc, err := utils.FetchModel[PurchaseStockIn](ctx, id, "Items")
	if err != nil {
		return nil, notFoundOr(err, "purchase stock-in", id)
	}
	return doc, nil
}

func lockPurchaseStockIn(tx *gorm.DB, id int) (*PurchaseStockIn, error) {
	doc, err := utils.FetchModelForUpdate[PurchaseStockIn](tx, id, "Items")
	if err != nil {
		return nil, notFoundOr(err, "purchase stock-in", id)
	}
	return doc, nil
}
