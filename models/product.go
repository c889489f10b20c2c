package models

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Code      string    `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Skus      []Sku     `gorm:"foreignKey:ProductId" json:"skus"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Sku is immutable once created except its prices.
type Sku struct {
	ID            int               `gorm:"primary_key" json:"id"`
	ProductId     int               `gorm:"index;not null" json:"product_id"`
	Code          string            `gorm:"size:191;not null;uniqueIndex" json:"code"`
	Spec          map[string]string `gorm:"type:text;serializer:json" json:"spec"`
	PurchasePrice decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"purchase_price"`
	SalePrice     decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"sale_price"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name string   `json:"name" validate:"required"`
	Code string   `json:"code" validate:"required,max=50"`
	Skus []NewSku `json:"skus" validate:"required,min=1,dive"`
}

type NewSku struct {
	Spec          map[string]string `json:"spec"`
	PurchasePrice decimal.Decimal   `json:"purchase_price"`
	SalePrice     decimal.Decimal   `json:"sale_price"`
}

type SkuPriceInput struct {
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	SalePrice     *decimal.Decimal `json:"sale_price"`
}

// BuildSkuCode derives PRODUCTCODE-v1-v2 with values ordered by spec key.
func BuildSkuCode(productCode string, spec map[string]string) string {
	keys := make([]string, 0, len(spec))
	for k := range spec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := []string{strings.ToUpper(strings.TrimSpace(productCode))}
	for _, k := range keys {
		v := strings.TrimSpace(spec[k])
		if v == "" {
			continue
		}
		parts = append(parts, strings.ToUpper(v))
	}
	return strings.Join(parts, "-")
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}
	product := Product{
		Name: strings.TrimSpace(input.Name),
		Code: strings.ToUpper(strings.TrimSpace(input.Code)),
	}
	seen := make(map[string]bool)
	for _, in := range input.Skus {
		if in.PurchasePrice.IsNegative() || in.SalePrice.IsNegative() {
			return nil, utils.NewValidationError("sku prices must not be negative")
		}
		code := BuildSkuCode(product.Code, in.Spec)
		if seen[code] {
			return nil, utils.NewValidationError("duplicate sku spec %s", code)
		}
		seen[code] = true
		product.Skus = append(product.Skus, Sku{
			Code:          code,
			Spec:          in.Spec,
			PurchasePrice: in.PurchasePrice,
			SalePrice:     in.SalePrice,
		})
	}

	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		count, err := utils.ResourceCountWhere[Sku](tx, "code IN ?", utils.UniqueSlice(skuCodes(product.Skus)))
		if err != nil {
			return err
		}
		if count > 0 {
			return utils.NewValidationError("sku code already exists")
		}
		return tx.Create(&product).Error
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func skuCodes(skus []Sku) []string {
	codes := make([]string, 0, len(skus))
	for _, s := range skus {
		codes = append(codes, s.Code)
	}
	return codes
}

// UpdateSkuPrice changes only price fields; spec and code stay fixed.
func UpdateSkuPrice(ctx context.Context, id int, input *SkuPriceInput) (*Sku, error) {
	if input.PurchasePrice == nil && input.SalePrice == nil {
		return nil, utils.NewValidationError("nothing to update")
	}
	var sku Sku
	err := runInTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&sku, id).Error; err != nil {
			return notFoundOr(err, "sku", id)
		}
		updates := map[string]interface{}{}
		if input.PurchasePrice != nil {
			if input.PurchasePrice.IsNegative() {
				return utils.NewValidationError("purchase_price must not be negative")
			}
			sku.PurchasePrice = *input.PurchasePrice
			updates["purchase_price"] = sku.PurchasePrice
		}
		if input.SalePrice != nil {
			if input.SalePrice.IsNegative() {
				return utils.NewValidationError("sale_price must not be negative")
			}
			sku.SalePrice = *input.SalePrice
			updates["sale_price"] = sku.SalePrice
		}
		return tx.Model(&sku).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &sku, nil
}

func GetSku(ctx context.Context, id int) (*Sku, error) {
	sku, err := utils.FetchModel[Sku](ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "sku", id)
	}
	return sku, nil
}

// resolveSku accepts a sku id, or a product id whose product has exactly one sku.
func resolveSku(tx *gorm.DB, skuId int, productId int) (*Sku, error) {
	var sku Sku
	if skuId > 0 {
		if err := tx.First(&sku, skuId).Error; err != nil {
			return nil, notFoundOr(err, "sku", skuId)
		}
		if productId > 0 && sku.ProductId != productId {
			return nil, utils.NewValidationError("sku %d does not belong to product %d", skuId, productId)
		}
		return &sku, nil
	}
	if productId <= 0 {
		return nil, utils.NewValidationError("sku_id or product_id is required")
	}
	var skus []Sku
	if err := tx.Where("product_id = ?", productId).Limit(2).Find(&skus).Error; err != nil {
		return nil, err
	}
	switch len(skus) {
	case 0:
		return nil, utils.NewNotFound("product", productId)
	case 1:
		return &skus[0], nil
	}
	return nil, utils.NewValidationError("product %d has several skus, sku_id is required", productId)
}
