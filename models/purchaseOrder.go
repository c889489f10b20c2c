package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/warehouse_backend/config"
	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PurchaseOrder struct {
	ID          int                 `gorm:"primary_key" json:"id"`
	OrderNumber string              `gorm:"size:32;not null;uniqueIndex" json:"order_number"`
	SequenceNo  int64               `gorm:"index;not null" json:"sequence_no"`
	SupplierId  int                 `gorm:"index;not null" json:"supplier_id"`
	WarehouseId int                 `gorm:"index;not null" json:"warehouse_id"`
	Status      OrderStatus         `gorm:"size:20;not null;index" json:"status"`
	TotalAmount decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	PaidAmount  decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	Remark      string              `gorm:"type:text" json:"remark"`
	Items       []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderId" json:"items"`
	CreatedBy   int                 `json:"created_by"`
	AuditBy     int                 `json:"audit_by"`
	AuditedAt   *time.Time          `json:"audited_at"`
	CompletedAt *time.Time          `json:"completed_at"`
	CancelledAt *time.Time          `json:"cancelled_at"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt      `gorm:"index" json:"-"`
}

type PurchaseOrderItem struct {
	ID               int             `gorm:"primary_key" json:"id"`
	PurchaseOrderId  int             `gorm:"index;not null" json:"purchase_order_id"`
	SkuId            int             `gorm:"index;not null" json:"sku_id"`
	Quantity         int             `gorm:"not null" json:"quantity"`
	Price            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Amount           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	ReceivedQuantity int             `gorm:"not null;default:0" json:"received_quantity"`
}

type NewPurchaseOrder struct {
	SupplierId  int            `json:"supplier_id" validate:"required,gt=0"`
	WarehouseId int            `json:"warehouse_id" validate:"required,gt=0"`
	Remark      string         `json:"remark"`
	Items       []NewOrderItem `json:"items" validate:"required,min=1,dive"`
}

func (input *NewPurchaseOrder) validate(tx *gorm.DB) ([]PurchaseOrderItem, decimal.Decimal, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, decimal.Zero, err
	}
	if _, err := lookupSupplier(tx, input.SupplierId); err != nil {
		return nil, decimal.Zero, err
	}
	if err := requireWarehouse(tx, input.WarehouseId); err != nil {
		return nil, decimal.Zero, err
	}
	lines, total, err := buildOrderLines(tx, input.Items)
	if err != nil {
		return nil, decimal.Zero, err
	}
	items := make([]PurchaseOrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, PurchaseOrderItem{
			SkuId:    l.SkuId,
			Quantity: l.Quantity,
			Price:    l.Price,
			Amount:   l.Amount,
		})
	}
	return items, total, nil
}

func CreatePurchaseOrder(ctx context.Context, input *NewPurchaseOrder) (*PurchaseOrder, error) {
	var order PurchaseOrder
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		items, total, err := input.validate(tx)
		if err != nil {
			return err
		}
		seqNo, number, err := nextDocumentNumber[PurchaseOrder](ctx, tx, PrefixPurchaseOrder)
		if err != nil {
			return err
		}
		order = PurchaseOrder{
			OrderNumber: number,
			SequenceNo:  seqNo,
			SupplierId:  input.SupplierId,
			WarehouseId: input.WarehouseId,
			Status:      OrderStatusPending,
			TotalAmount: total,
			Remark:      input.Remark,
			Items:       items,
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdatePurchaseOrder replaces the item set wholesale while the order is pending.
func UpdatePurchaseOrder(ctx context.Context, id int, input *NewPurchaseOrder) (*PurchaseOrder, error) {
	var order *PurchaseOrder
	err := withDocumentLock(ctx, "purchase_order", id, func(tx *gorm.DB) error {
		var err error
		order, err = lockPurchaseOrder(tx, id)
		if err != nil {
			return err
		}
		if err := CheckOrderTransition("purchase order", order.Status, ActionEdit); err != nil {
			return err
		}
		items, total, err := input.validate(tx)
		if err != nil {
			return err
		}
		if err := tx.Where("purchase_order_id = ?", order.ID).Delete(&PurchaseOrderItem{}).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].PurchaseOrderId = order.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		order.SupplierId = input.SupplierId
		order.WarehouseId = input.WarehouseId
		order.Remark = input.Remark
		order.TotalAmount = total
		order.Items = items
		return tx.Omit(clause.Associations).Save(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// DeletePurchaseOrder removes a pending order together with its items.
func DeletePurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	var order *PurchaseOrder
	err := withDocumentLock(ctx, "purchase_order", id, func(tx *gorm.DB) error {
		var err error
		order, err = lockPurchaseOrder(tx, id)
		if err != nil {
			return err
		}
		if err := CheckOrderTransition("purchase order", order.Status, ActionEdit); err != nil {
			return err
		}
		if err := tx.Where("purchase_order_id = ?", order.ID).Delete(&PurchaseOrderItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// AuditPurchaseOrder approves the order and books the payable against the supplier.
func AuditPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	var order *PurchaseOrder
	err := withDocumentLock(ctx, "purchase_order", id, func(tx *gorm.DB) error {
		var err error
		order, err = lockPurchaseOrder(tx, id)
		if err != nil {
			return err
		}
		if err := CheckOrderTransition("purchase order", order.Status, ActionAudit); err != nil {
			return err
		}
		order.Status = OrderStatusAudited
		order.AuditBy, order.AuditedAt = auditStamp(tx)
		if err := tx.Omit(clause.Associations).Save(order).Error; err != nil {
			return err
		}
		_, err = createAccountRecord(ctx, tx, accountRecordInput{
			Type:        AccountTypePayable,
			TargetId:    order.SupplierId,
			RelatedType: RelatedTypePurchaseOrder,
			RelatedId:   order.ID,
			Amount:      order.TotalAmount,
			Remark:      "purchase order " + order.OrderNumber,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CancelPurchaseOrder cancels a pending or audited order. For an audited order
// the payable is withdrawn when REVERSE_ON_ORDER_CANCEL is on, which requires
// that no money was paid against it.
func CancelPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	var order *PurchaseOrder
	err := withDocumentLock(ctx, "purchase_order", id, func(tx *gorm.DB) error {
		var err error
		order, err = lockPurchaseOrder(tx, id)
		if err != nil {
			return err
		}
		if err := CheckOrderTransition("purchase order", order.Status, ActionCancel); err != nil {
			return err
		}
		if order.Status == OrderStatusAudited {
			for _, item := range order.Items {
				if item.ReceivedQuantity > 0 {
					return utils.NewStateConflict("purchase order %s already has received stock", order.OrderNumber)
				}
			}
			pending, err := utils.ResourceCountWhere[PurchaseStockIn](tx, "purchase_order_id = ? AND status = ?", order.ID, MovementStatusPending)
			if err != nil {
				return err
			}
			if pending > 0 {
				return utils.NewStateConflict("purchase order %s has pending stock-in documents", order.OrderNumber)
			}
			if config.ReverseOnOrderCancel() {
				record, err := lockRelatedAccountRecord(tx, RelatedTypePurchaseOrder, order.ID)
				if err != nil {
					return err
				}
				if err := removeAccountRecord(tx, record); err != nil {
					return err
				}
			}
		}
		now := time.Now().UTC()
		order.Status = OrderStatusCancelled
		order.CancelledAt = &now
		return tx.Omit(clause.Associations).Save(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CompletePurchaseOrder is the manual terminal marker for an audited order.
func CompletePurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	var order *PurchaseOrder
	err := withDocumentLock(ctx, "purchase_order", id, func(tx *gorm.DB) error {
		var err error
		order, err = lockPurchaseOrder(tx, id)
		if err != nil {
			return err
		}
		if err := CheckOrderTransition("purchase order", order.Status, ActionComplete); err != nil {
			return err
		}
		now := time.Now().UTC()
		order.Status = OrderStatusCompleted
		order.CompletedAt = &now
		return tx.Omit(clause.Associations).Save(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	order, err := utils.FetchModel[PurchaseOrder](ctx, id, "Items")
	if err != nil {
		return nil, notFoundOr(err, "purchase order", id)
	}
	return order, nil
}

func lockPurchaseOrder(tx *gorm.DB, id int) (*PurchaseOrder, error) {
	order, err := utils.FetchModelForUpdate[PurchaseOrder](tx, id, "Items")
	if err != nil {
		return nil, notFoundOr(err, "purchase order", id)
	}
	return order, nil
}

// receivePurchaseOrderItems moves received counters by delta per order item
// (negative on reversal) and recomputes the order status.
func receivePurchaseOrderItems(tx *gorm.DB, order *PurchaseOrder, deltas map[int]int) error {
	ordered := make([]int, len(order.Items))
	received := make([]int, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		if delta, ok := deltas[item.ID]; ok && delta != 0 {
			next := item.ReceivedQuantity + delta
			if next > item.Quantity {
				return utils.NewValidationError("sku %d: receiving %d exceeds ordered quantity %d", item.SkuId, next, item.Quantity)
			}
			if next < 0 {
				return utils.NewStateConflict("sku %d: received quantity cannot go below zero", item.SkuId)
			}
			item.ReceivedQuantity = next
			if err := tx.Model(item).Update("received_quantity", next).Error; err != nil {
				return err
			}
		}
		ordered[i] = item.Quantity
		received[i] = item.ReceivedQuantity
	}
	status := fulfilmentStatus(order.Status, ordered, received)
	if status == order.Status {
		return nil
	}
	order.Status = status
	if status == OrderStatusCompleted {
		now := time.Now().UTC()
		order.CompletedAt = &now
	}
	return tx.Omit(clause.Associations).Save(order).Error
}
