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

type SalesOrder struct {
	ID          int         `gorm:"primary_key" json:"id"`
	OrderNumber string      `gorm:"size:32;not null;uniqueIndex" json:"order_number"`
	SequenceNo  int64       `gorm:"index;not null" json:"sequence_no"`
	CustomerId  int         `gorm:"index;not null" json:"customer_id"`
	WarehouseId int         `gorm:"index;not null" json:"warehouse_id"`
	Status      OrderStatus `gorm:"size:20;not null;index" json:"status"`
	// sum(quantity * price)
	TotalAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	// customer's rate at the time of the last create/edit, in percent
	DiscountRate   decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"discount_rate"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	// total_amount - discount_amount, the receivable
	FinalAmount decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"final_amount"`
	PaidAmount  decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	Remark      string           `gorm:"type:text" json:"remark"`
	Items       []SalesOrderItem `gorm:"foreignKey:SalesOrderId" json:"items"`
	CreatedBy   int              `json:"created_by"`
	AuditBy     int              `json:"audit_by"`
	AuditedAt   *time.Time       `json:"audited_at"`
	CompletedAt *time.Time       `json:"completed_at"`
	CancelledAt *time.Time       `json:"cancelled_at"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt   `gorm:"index" json:"-"`
}

type SalesOrderItem struct {
	ID                int             `gorm:"primary_key" json:"id"`
	SalesOrderId      int             `gorm:"index;not null" json:"sales_order_id"`
	SkuId             int             `gorm:"index;not null" json:"sku_id"`
	Quantity          int             `gorm:"not null" json:"quantity"`
	Price             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Amount            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	DeliveredQuantity int             `gorm:"not null;default:0" json:"delivered_quantity"`
}

type NewSalesOrder struct {
	CustomerId  int            `json:"customer_id" validate:"required,gt=0"`
	WarehouseId int            `json:"warehouse_id" validate:"required,gt=0"`
	Remark      string         `json:"remark"`
	Items       []NewOrderItem `json:"items" validate:"required,min=1,dive"`
}

type salesOrderDraft struct {
	items          []SalesOrderItem
	total          decimal.Decimal
	discountRate   decimal.Decimal
	discountAmount decimal.Decimal
	finalAmount    decimal.Decimal
}

// validate resolves lines, applies the customer's discount and checks the
// warehouse can cover every sku at this moment.
func (input *NewSalesOrder) validate(tx *gorm.DB) (*salesOrderDraft, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	customer, err := lookupCustomer(tx, input.CustomerId)
	if err != nil {
		return nil, err
	}
	if err := requireWarehouse(tx, input.WarehouseId); err != nil {
		return nil, err
	}
	lines, total, err := buildOrderLines(tx, input.Items)
	if err != nil {
		return nil, err
	}
	if err := ensureStockAvailable(tx, input.WarehouseId, requestedBySku(lines)); err != nil {
		return nil, err
	}
	draft := &salesOrderDraft{
		total:        total,
		discountRate: customer.DiscountRate,
	}
	draft.discountAmount = utils.CalculateDiscountAmount(total, customer.DiscountRate)
	draft.finalAmount = total.Sub(draft.discountAmount)
	for _, l := range lines {
		draft.items = append(draft.items, SalesOrderItem{
			SkuId:    l.SkuId,
			Quantity: l.Quantity,
			Price:    l.Price,
			Amount:   l.Amount,
		})
	}
	return draft, nil
}

func CreateSalesOrder(ctx context.Context, input *NewSalesOrder) (*SalesOrder, error) {
	var order SalesOrder
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		draft, err := input.validate(tx)
		if err != nil {
			return err
		}
		seqNo, number, err := nextDocumentNumber[SalesOrder](ctx, tx, PrefixSalesOrder)
		if err != nil {
			return err
		}
		order = SalesOrder{
			OrderNumber:    number,
			SequenceNo:     seqNo,
			CustomerId:     input.CustomerId,
			WarehouseId:    input.WarehouseId,
			Status:         OrderStatusPending,
			TotalAmount:    draft.total,
			DiscountRate:   draft.discountRate,
			DiscountAmount: draft.discountAmount,
			FinalAmount:    draft.finalAmount,
			Remark:         input.Remark,
			Items:          draft.items,
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateSalesOrder replaces the item set wholesale while the order is pending
// and re-validates stock.
func UpdateSalesOrder(ctx context.Context, id int, input *NewSalesOrder) (*SalesOrder, error) {
	var order *SalesOrder
	err := withDocumentLock(ctx, "sales_order", id, func(tx *gorm.DB) error {
		var err error
		order, err = lockSalesOrder(tx, id)
		if err != nil {
			return err
		}
		if err := CheckOrderTransition("sales order", order.Status, ActionEdit); err != nil {
			return err
		}
		draft, err := input.validate(tx)
		if err != nil {
			return err
		}
		if err := tx.Where("sales_order_id = ?", order.ID).Delete(&SalesOrderItem{}).Error; err != nil {
			return err
		}
		for i := range draft.items {
			draft.items[i].SalesOrderId = order.ID
		}
		if err := tx.Create(&draft.items).Error; err != nil {
			return err
		}
		order.CustomerId = input.CustomerId
		order.WarehouseId = input.WarehouseId
		order.Remark = input.Remark
		order.TotalAmount = draft.total
		order.DiscountRate = draft.discountRate
		order.DiscountAmount = draft.discountAmount
		order.FinalAmount = draft.finalAmount
		order.Items = draft.items
		return tx.Omit(clause.Associations).Save(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// DeleteSalesOrder removes a pending order together with its items.
func DeleteSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	var order *SalesOrder
	err := withDocumentLock(ctx, "sales_order", id, func(tx *gorm.DB) error {
		var err error
		order, err = lockSalesOrder(tx, id)
		if err != nil {
			return err
		}
		if err := CheckOrderTransition("sales order", order.Status, ActionEdit); err != nil {
			return err
		}
		if err := tx.Where("sales_order_id = ?", order.ID).Delete(&SalesOrderItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// AuditSalesOrder approves the order and books the receivable for its final amount.
func AuditSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	var order *SalesOrder
	err := withDocumentLock(ctx, "sales_order", id, func(tx *gorm.DB) error {
		var err error
		order, err = lockSalesOrder(tx, id)
		if err != nil {
			return err
		}
		if err := CheckOrderTransition("sales order", order.Status, ActionAudit); err != nil {
			return err
		}
		order.Status = OrderStatusAudited
		order.AuditBy, order.AuditedAt = auditStamp(tx)
		if err := tx.Omit(clause.Associations).Save(order).Error; err != nil {
			return err
		}
		_, err = createAccountRecord(ctx, tx, accountRecordInput{
			Type:        AccountTypeReceivable,
			TargetId:    order.CustomerId,
			RelatedType: RelatedTypeSalesOrder,
			RelatedId:   order.ID,
			Amount:      order.FinalAmount,
			Remark:      "sales order " + order.OrderNumber,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CancelSalesOrder mirrors CancelPurchaseOrder for the receivable side.
func CancelSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	var order *SalesOrder
	err := withDocumentLock(ctx, "sales_order", id, func(tx *gorm.DB) error {
		var err error
		order, err = lockSalesOrder(tx, id)
		if err != nil {
			return err
		}
		if err := CheckOrderTransition("sales order", order.Status, ActionCancel); err != nil {
			return err
		}
		if order.Status == OrderStatusAudited {
			for _, item := range order.Items {
				if item.DeliveredQuantity > 0 {
					return utils.NewStateConflict("sales order %s already has delivered stock", order.OrderNumber)
				}
			}
			pending, err := utils.ResourceCountWhere[SaleStockOut](tx, "sales_order_id = ? AND status = ?", order.ID, MovementStatusPending)
			if err != nil {
				return err
			}
			if pending > 0 {
				return utils.NewStateConflict("sales order %s has pending stock-out documents", order.OrderNumber)
			}
			if config.ReverseOnOrderCancel() {
				record, err := lockRelatedAccountRecord(tx, RelatedTypeSalesOrder, order.ID)
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

func GetSalesOrder(ctx context.Context, id int) (*SalesOrder, error) {
	order, err := utils.FetchModel[SalesOrder](ctx, id, "Items")
	if err != nil {
		return nil, notFoundOr(err, "sales order", id)
	}
	return order, nil
}

func lockSalesOrder(tx *gorm.DB, id int) (*SalesOrder, error) {
	order, err := utils.FetchModelForUpdate[SalesOrder](tx, id, "Items")
	if err != nil {
		return nil, notFoundOr(err, "sales order", id)
	}
	return order, nil
}

// deliverSalesOrderItems moves delivered counters by delta per order item
// (negative on reversal) and recomputes the order status.
func deliverSalesOrderItems(tx *gorm.DB, order *SalesOrder, deltas map[int]int) error {
	ordered := make([]int, len(order.Items))
	delivered := make([]int, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		if delta, ok := deltas[item.ID]; ok && delta != 0 {
			next := item.DeliveredQuantity + delta
			if next > item.Quantity {
				return utils.NewValidationError("sku %d: delivering %d exceeds ordered quantity %d", item.SkuId, next, item.Quantity)
			}
			if next < 0 {
				return utils.NewStateConflict("sku %d: delivered quantity cannot go below zero", item.SkuId)
			}
			item.DeliveredQuantity = next
			if err := tx.Model(item).Update("delivered_quantity", next).Error; err != nil {
				return err
			}
		}
		ordered[i] = item.Quantity
		delivered[i] = item.DeliveredQuantity
	}
	status := fulfilmentStatus(order.Status, ordered, delivered)
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
