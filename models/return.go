package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Return sends goods back to us (sale) or to a supplier (purchase). Stock and
// refund progress independently; Complete needs both done.
type Return struct {
	ID           int          `gorm:"primary_key" json:"id"`
	ReturnNumber string       `gorm:"size:32;not null;uniqueIndex" json:"return_number"`
	SequenceNo   int64        `gorm:"index;not null" json:"sequence_no"`
	Type         ReturnType   `gorm:"size:20;not null;index" json:"type"`
	OrderId      int          `gorm:"index;default:0" json:"order_id"`
	TargetId     int          `gorm:"index;not null" json:"target_id"`
	WarehouseId  int          `gorm:"index;not null" json:"warehouse_id"`
	Status       ReturnStatus `gorm:"size:20;not null;index" json:"status"`
	// progress of the goods, from audited return stock documents
	StockStatus  ProgressStatus  `gorm:"size:20;not null" json:"stock_status"`
	RefundStatus ProgressStatus  `gorm:"size:20;not null" json:"refund_status"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	// agreed refund, defaults to total_amount
	RefundAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"refund_amount"`
	RefundedAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"refunded_amount"`
	Remark         string          `gorm:"type:text" json:"remark"`
	Items          []ReturnItem    `gorm:"foreignKey:ReturnId" json:"items"`
	CreatedBy      int             `json:"created_by"`
	AuditBy        int             `json:"audit_by"`
	AuditedAt      *time.Time      `json:"audited_at"`
	CompletedAt    *time.Time      `json:"completed_at"`
	CancelledAt    *time.Time      `json:"cancelled_at"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Return) TableName() string {
	return "return_orders"
}

type ReturnItem struct {
	ID       int `gorm:"primary_key" json:"id"`
	ReturnId int `gorm:"index;not null" json:"return_id"`
	// purchase or sales order item, 0 when the return has no order
	OrderItemId    int `gorm:"index;default:0" json:"order_item_id"`
	SkuId          int `gorm:"index;not null" json:"sku_id"`
	ReturnQuantity int `gorm:"not null" json:"return_quantity"`
	// placed into return stock documents (pending or audited)
	ProcessedQuantity int `gorm:"not null;default:0" json:"processed_quantity"`
	// moved in the ledger by audited return stock documents
	StockedQuantity int             `gorm:"not null;default:0" json:"stocked_quantity"`
	Price           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
}

type NewReturnItem struct {
	OrderItemId    int             `json:"order_item_id"`
	SkuId          int             `json:"sku_id"`
	ProductId      int             `json:"product_id"`
	ReturnQuantity int             `json:"return_quantity" validate:"gt=0"`
	Price          decimal.Decimal `json:"price"`
}

type NewReturn struct {
	Type        ReturnType `json:"type" validate:"required,oneof=sale purchase"`
	OrderId     int        `json:"order_id"`
	TargetId    int        `json:"target_id"`
	WarehouseId int        `json:"warehouse_id"`
	// nil means a full refund of the goods value
	RefundAmount *decimal.Decimal `json:"refund_amount"`
	Remark       string           `json:"remark"`
	Items        []NewReturnItem  `json:"items" validate:"required,min=1,dive"`
}

type RefundInput struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method" validate:"required,max=50"`
	Remark        string          `json:"remark"`
}

// returnSourceLine is the view of one order line a return needs.
type returnSourceLine struct {
	SkuId     int
	Fulfilled int
	Price     decimal.Decimal
}

type returnSource struct {
	OrderNumber string
	TargetId    int
	WarehouseId int
	Lines       map[int]returnSourceLine
}

// loadReturnSource reads the order a return is raised against. Only orders
// that went through audit can have goods returned.
func loadReturnSource(tx *gorm.DB, returnType ReturnType, orderId int) (*returnSource, error) {
	src := &returnSource{Lines: make(map[int]returnSourceLine)}
	var status OrderStatus
	switch returnType {
	case ReturnTypeSale:
		order, err := lockSalesOrder(tx, orderId)
		if err != nil {
			return nil, err
		}
		status = order.Status
		src.OrderNumber, src.TargetId, src.WarehouseId = order.OrderNumber, order.CustomerId, order.WarehouseId
		for _, item := range order.Items {
			src.Lines[item.ID] = returnSourceLine{SkuId: item.SkuId, Fulfilled: item.DeliveredQuantity, Price: item.Price}
		}
	case ReturnTypePurchase:
		order, err := lockPurchaseOrder(tx, orderId)
		if err != nil {
			return nil, err
		}
		status = order.Status
		src.OrderNumber, src.TargetId, src.WarehouseId = order.OrderNumber, order.SupplierId, order.WarehouseId
		for _, item := range order.Items {
			src.Lines[item.ID] = returnSourceLine{SkuId: item.SkuId, Fulfilled: item.ReceivedQuantity, Price: item.Price}
		}
	default:
		return nil, utils.NewValidationError("unknown return type %s", returnType)
	}
	if status == OrderStatusPending || status == OrderStatusCancelled {
		return nil, utils.NewStateConflict("cannot return goods of order %s in status %s", src.OrderNumber, status)
	}
	return src, nil
}

// returnedQuantities sums return quantities per order item over the
// non-cancelled returns of an order, skipping excludeReturnId.
func returnedQuantities(tx *gorm.DB, returnType ReturnType, orderId, excludeReturnId int) (map[int]int, error) {
	var rows []struct {
		OrderItemId int
		Qty         int
	}
	err := tx.Table("return_items AS i").
		Select("i.order_item_id AS order_item_id, SUM(i.return_quantity) AS qty").
		Joins("JOIN return_orders AS r ON r.id = i.return_id").
		Where("r.type = ? AND r.order_id = ? AND r.status <> ? AND r.deleted_at IS NULL AND r.id <> ?",
			returnType, orderId, ReturnStatusCancelled, excludeReturnId).
		Group("i.order_item_id").
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

type returnDraft struct {
	targetId     int
	warehouseId  int
	items        []ReturnItem
	total        decimal.Decimal
	refundAmount decimal.Decimal
}

func (input *NewReturn) validate(tx *gorm.DB, excludeReturnId int) (*returnDraft, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	draft := &returnDraft{targetId: input.TargetId, warehouseId: input.WarehouseId, total: decimal.Zero}

	if input.OrderId > 0 {
		src, err := loadReturnSource(tx, input.Type, input.OrderId)
		if err != nil {
			return nil, err
		}
		if draft.targetId != 0 && draft.targetId != src.TargetId {
			return nil, utils.NewValidationError("target_id %d does not match order %s", draft.targetId, src.OrderNumber)
		}
		draft.targetId = src.TargetId
		if draft.warehouseId == 0 {
			draft.warehouseId = src.WarehouseId
		}
		returned, err := returnedQuantities(tx, input.Type, input.OrderId, excludeReturnId)
		if err != nil {
			return nil, err
		}
		requested := make(map[int]int)
		for i, in := range input.Items {
			line, ok := src.Lines[in.OrderItemId]
			if !ok {
				return nil, utils.NewValidationError("item %d: order_item_id %d is not on order %s", i+1, in.OrderItemId, src.OrderNumber)
			}
			if in.SkuId > 0 && in.SkuId != line.SkuId {
				return nil, utils.NewValidationError("item %d: sku %d does not match the order item", i+1, in.SkuId)
			}
			requested[in.OrderItemId] += in.ReturnQuantity
			if left := line.Fulfilled - returned[in.OrderItemId]; requested[in.OrderItemId] > left {
				return nil, utils.NewValidationError("item %d: only %d of sku %d can still be returned", i+1, left, line.SkuId)
			}
			price := line.Price
			if in.Price.GreaterThan(decimal.Zero) {
				price = in.Price
			}
			draft.items = append(draft.items, ReturnItem{
				OrderItemId:    in.OrderItemId,
				SkuId:          line.SkuId,
				ReturnQuantity: in.ReturnQuantity,
				Price:          price,
			})
		}
	} else {
		if draft.targetId <= 0 {
			return nil, utils.NewValidationError("target_id is required without an order")
		}
		var err error
		if input.Type == ReturnTypeSale {
			_, err = lookupCustomer(tx, draft.targetId)
		} else {
			_, err = lookupSupplier(tx, draft.targetId)
		}
		if err != nil {
			return nil, err
		}
		for i, in := range input.Items {
			if in.OrderItemId > 0 {
				return nil, utils.NewValidationError("item %d: order_item_id given without an order", i+1)
			}
			if !in.Price.GreaterThan(decimal.Zero) {
				return nil, utils.NewValidationError("item %d: price must be positive", i+1)
			}
			sku, err := resolveSku(tx, in.SkuId, in.ProductId)
			if err != nil {
				return nil, err
			}
			draft.items = append(draft.items, ReturnItem{
				SkuId:          sku.ID,
				ReturnQuantity: in.ReturnQuantity,
				Price:          in.Price,
			})
		}
	}
	if err := requireWarehouse(tx, draft.warehouseId); err != nil {
		return nil, err
	}

	for i := range draft.items {
		draft.items[i].Amount = utils.LineAmount(draft.items[i].ReturnQuantity, draft.items[i].Price)
		draft.total = draft.total.Add(draft.items[i].Amount)
	}
	draft.refundAmount = draft.total
	if input.RefundAmount != nil {
		if input.RefundAmount.IsNegative() || utils.ExceedsMoney(*input.RefundAmount, draft.total) {
			return nil, utils.NewValidationError("refund_amount must be between 0 and %s", draft.total.StringFixed(2))
		}
		draft.refundAmount = *input.RefundAmount
	}
	return draft, nil
}

func CreateReturn(ctx context.Context, input *NewReturn) (*Return, error) {
	var ret Return
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		draft, err := input.validate(tx, 0)
		if err != nil {
			return err
		}
		seqNo, number, err := nextDocumentNumber[Return](ctx, tx, PrefixReturn)
		if err != nil {
			return err
		}
		ret = Return{
			ReturnNumber: number,
			SequenceNo:   seqNo,
			Type:         input.Type,
			OrderId:      input.OrderId,
			TargetId:     draft.targetId,
			WarehouseId:  draft.warehouseId,
			Status:       ReturnStatusPendingAudit,
			StockStatus:  ProgressPending,
			RefundStatus: ProgressPending,
			TotalAmount:  draft.total,
			RefundAmount: draft.refundAmount,
			Remark:       input.Remark,
			Items:        draft.items,
		}
		return tx.Create(&ret).Error
	})
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

// UpdateReturn replaces the item set and refund amount before audit.
// The type and the order cannot change.
func UpdateReturn(ctx context.Context, id int, input *NewReturn) (*Return, error) {
	var ret *Return
	err := withDocumentLock(ctx, "return", id, func(tx *gorm.DB) error {
		var err error
		ret, err = lockReturn(tx, id)
		if err != nil {
			return err
		}
		if err := CheckReturnTransition(ret.Status, ActionEdit); err != nil {
			return err
		}
		if input.Type != ret.Type || input.OrderId != ret.OrderId {
			return utils.NewValidationError("type and order_id of return %s cannot change", ret.ReturnNumber)
		}
		draft, err := input.validate(tx, ret.ID)
		if err != nil {
			return err
		}
		if err := tx.Where("return_id = ?", ret.ID).Delete(&ReturnItem{}).Error; err != nil {
			return err
		}
		for i := range draft.items {
			draft.items[i].ReturnId = ret.ID
		}
		if err := tx.Create(&draft.items).Error; err != nil {
			return err
		}
		ret.TargetId = draft.targetId
		ret.WarehouseId = draft.warehouseId
		ret.TotalAmount = draft.total
		ret.RefundAmount = draft.refundAmount
		ret.Remark = input.Remark
		ret.Items = draft.items
		return tx.Omit(clause.Associations).Save(ret).Error
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// AuditReturn approves the return and books a negative account record against
// the same receivable/payable the order raised. A zero refund books nothing.
func AuditReturn(ctx context.Context, id int) (*Return, error) {
	var ret *Return
	err := withDocumentLock(ctx, "return", id, func(tx *gorm.DB) error {
		var err error
		ret, err = lockReturn(tx, id)
		if err != nil {
			return err
		}
		if err := CheckReturnTransition(ret.Status, ActionAudit); err != nil {
			return err
		}
		ret.Status = ReturnStatusAudited
		ret.AuditBy, ret.AuditedAt = auditStamp(tx)
		ret.RefundStatus = refundProgress(ret.RefundedAmount, ret.RefundAmount)
		if err := tx.Omit(clause.Associations).Save(ret).Error; err != nil {
			return err
		}
		if utils.IsZeroMoney(ret.RefundAmount) {
			return nil
		}
		_, err = createAccountRecord(ctx, tx, accountRecordInput{
			Type:        ret.accountType(),
			TargetId:    ret.TargetId,
			RelatedType: RelatedTypeReturn,
			RelatedId:   ret.ID,
			Amount:      ret.RefundAmount.Neg(),
			Remark:      "return " + ret.ReturnNumber,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Refund pays money back once every returned item has been stocked. It writes a
// financial record and settles it against the return's account record.
func Refund(ctx context.Context, id int, input *RefundInput) (*Return, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	if !input.Amount.GreaterThan(decimal.Zero) {
		return nil, utils.NewValidationError("amount must be positive")
	}
	var ret *Return
	err := withDocumentLock(ctx, "return", id, func(tx *gorm.DB) error {
		var err error
		ret, err = lockReturn(tx, id)
		if err != nil {
			return err
		}
		if err := CheckReturnTransition(ret.Status, ActionRefund); err != nil {
			return err
		}
		if ret.StockStatus != ProgressComplete {
			return utils.NewStateConflict("return %s must be fully stocked before refund", ret.ReturnNumber)
		}
		refundable := ret.RefundAmount.Sub(ret.RefundedAmount)
		if utils.ExceedsMoney(input.Amount, refundable) {
			return utils.NewAppError(utils.KindExceedsRefundable,
				"amount %s exceeds refundable %s of return %s", input.Amount.StringFixed(2), refundable.StringFixed(2), ret.ReturnNumber)
		}
		record, err := lockRelatedAccountRecord(tx, RelatedTypeReturn, ret.ID)
		if err != nil {
			return err
		}
		if record == nil {
			return utils.NewAppError(utils.KindExceedsRefundable, "return %s has nothing to refund", ret.ReturnNumber)
		}
		financial := FinancialRecord{
			Type:          record.expectedFinancialType(),
			Amount:        input.Amount,
			PaymentMethod: strings.TrimSpace(input.PaymentMethod),
			Remark:        input.Remark,
		}
		if err := insertFinancialRecord(ctx, tx, &financial); err != nil {
			return err
		}
		if _, err := applySettlement(ctx, tx, &financial, record, settlementLine{
			AccountType: record.Type,
			Amount:      input.Amount,
			Remark:      "refund of return " + ret.ReturnNumber,
		}); err != nil {
			return err
		}
		ret, err = lockReturn(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// CompleteReturn closes a return whose goods and money have both been handled.
func CompleteReturn(ctx context.Context, id int) (*Return, error) {
	var ret *Return
	err := withDocumentLock(ctx, "return", id, func(tx *gorm.DB) error {
		var err error
		ret, err = lockReturn(tx, id)
		if err != nil {
			return err
		}
		if err := CheckReturnTransition(ret.Status, ActionComplete); err != nil {
			return err
		}
		if ret.StockStatus != ProgressComplete || ret.RefundStatus != ProgressComplete {
			return utils.NewStateConflict("return %s is not fully stocked and refunded (stock %s, refund %s)",
				ret.ReturnNumber, ret.StockStatus, ret.RefundStatus)
		}
		now := time.Now().UTC()
		ret.Status = ReturnStatusCompleted
		ret.CompletedAt = &now
		return tx.Omit(clause.Associations).Save(ret).Error
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// CancelReturn cancels a return before any of its goods or money moved.
// Pending return stock documents are cancelled with it and the account record is withdrawn.
func CancelReturn(ctx context.Context, id int) (*Return, error) {
	var ret *Return
	err := withDocumentLock(ctx, "return", id, func(tx *gorm.DB) error {
		var err error
		ret, err = lockReturn(tx, id)
		if err != nil {
			return err
		}
		if err := CheckReturnTransition(ret.Status, ActionCancel); err != nil {
			return err
		}
		if ret.Status == ReturnStatusAudited {
			for _, item := range ret.Items {
				if item.StockedQuantity > 0 {
					return utils.NewStateConflict("return %s already has audited return stock", ret.ReturnNumber)
				}
			}
			if !utils.IsZeroMoney(ret.RefundedAmount) {
				return utils.NewStateConflict("return %s already has refunds", ret.ReturnNumber)
			}
			now := time.Now().UTC()
			if err := tx.Model(&ReturnStock{}).
				Where("return_id = ? AND status = ?", ret.ID, MovementStatusPending).
				Updates(map[string]interface{}{"status": MovementStatusCancelled, "cancelled_at": now}).Error; err != nil {
				return err
			}
			if err := tx.Model(&ReturnItem{}).Where("return_id = ?", ret.ID).Update("processed_quantity", 0).Error; err != nil {
				return err
			}
			record, err := lockRelatedAccountRecord(tx, RelatedTypeReturn, ret.ID)
			if err != nil {
				return err
			}
			if err := removeAccountRecord(tx, record); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		ret.Status = ReturnStatusCancelled
		ret.CancelledAt = &now
		return tx.Omit(clause.Associations).Save(ret).Error
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func GetReturn(ctx context.Context, id int) (*Return, error) {
	ret, err := utils.FetchModel[Return](ctx, id, "Items")
	if err != nil {
		return nil, notFoundOr(err, "return", id)
	}
	return ret, nil
}

func lockReturn(tx *gorm.DB, id int) (*Return, error) {
	ret, err := utils.FetchModelForUpdate[Return](tx, id, "Items")
	if err != nil {
		return nil, notFoundOr(err, "return", id)
	}
	return ret, nil
}

// accountType is the side of the books the original order hit.
func (r Return) accountType() AccountType {
	if r.Type == ReturnTypeSale {
		return AccountTypeReceivable
	}
	return AccountTypePayable
}

// refreshStockStatus recomputes stock progress from the items' stocked quantities.
func (r *Return) refreshStockStatus() {
	stocked, total := 0, 0
	for _, item := range r.Items {
		stocked += item.StockedQuantity
		total += item.ReturnQuantity
	}
	r.StockStatus = progressOf(stocked, total)
}

func refundProgress(refunded, refundAmount decimal.Decimal) ProgressStatus {
	switch {
	case !utils.ExceedsMoney(refundAmount, refunded):
		return ProgressComplete
	case utils.IsZeroMoney(refunded):
		return ProgressPending
	default:
		return ProgressPartial
	}
}
