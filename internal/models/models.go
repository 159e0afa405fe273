package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers (999.99), not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// ProductStatusActive is the status every product is created with.
const ProductStatusActive = "active"

// PriceScale is the number of decimal places prices are stored with.
const PriceScale = 2

// maxPrice is the exclusive bound of the NUMERIC(12, 2) price column.
var maxPrice = decimal.New(1, 10)

// NormalizePrice rounds d to the stored scale.
func NormalizePrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(PriceScale)
}

// PriceInRange reports whether d fits the price column once normalized.
func PriceInRange(d decimal.Decimal) bool {
	return NormalizePrice(d).Abs().LessThan(maxPrice)
}

// Product represents a row of the products table
type Product struct {
	ID          int64           `db:"id" json:"id"`
	ProductName string          `db:"product_name" json:"product_name"`
	Category    string          `db:"category" json:"category"`
	SKU         string          `db:"sku" json:"SKU"`
	Stock       int             `db:"stock" json:"stock"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Status      string          `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// CreateProductRequest is the accepted body of POST /product.
// Stock and Price are pointers so that a zero value still counts as provided.
type CreateProductRequest struct {
	ProductName string           `json:"product_name" binding:"required,max=255"`
	Category    string           `json:"category" binding:"required,max=100"`
	SKU         string           `json:"SKU" binding:"required,max=100"`
	Stock       *int             `json:"stock" binding:"required,min=-2147483648,max=2147483647"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
}

// UpdateProductRequest is the accepted body of PUT /product/:id.
// Every field is required; the stored record is fully replaced.
type UpdateProductRequest struct {
	ProductName string           `json:"product_name" binding:"required,max=255"`
	Category    string           `json:"category" binding:"required,max=100"`
	SKU         string           `json:"SKU" binding:"required,max=100"`
	Stock       *int             `json:"stock" binding:"required,min=-2147483648,max=2147483647"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
}

// PatchProductRequest is the accepted body of PATCH /product/:id.
// Only non-nil fields are applied.
type PatchProductRequest struct {
	ProductName *string          `json:"product_name" binding:"omitempty,min=1,max=255"`
	Category    *string          `json:"category" binding:"omitempty,min=1,max=100"`
	SKU         *string          `json:"SKU" binding:"omitempty,min=1,max=100"`
	Stock       *int             `json:"stock" binding:"omitempty,min=-2147483648,max=2147483647"`
	Price       *decimal.Decimal `json:"price"`
}

// IsEmpty reports whether the patch carries no field at all
func (r *PatchProductRequest) IsEmpty() bool {
	return r.ProductName == nil && r.Category == nil && r.SKU == nil &&
		r.Stock == nil && r.Price == nil
}

// Patch converts a full update into the equivalent patch with every field set
func (r *UpdateProductRequest) Patch() *PatchProductRequest {
	return &PatchProductRequest{
		ProductName: &r.ProductName,
		Category:    &r.Category,
		SKU:         &r.SKU,
		Stock:       r.Stock,
		Price:       r.Price,
	}
}

// Apply copies the provided fields onto p and reports whether anything changed.
func (r *PatchProductRequest) Apply(p *Product) bool {
	changed := false
	if r.ProductName != nil && *r.ProductName != p.ProductName {
		p.ProductName = *r.ProductName
		changed = true
	}
	if r.Category != nil && *r.Category != p.Category {
		p.Category = *r.Category
		changed = true
	}
	if r.SKU != nil && *r.SKU != p.SKU {
		p.SKU = *r.SKU
		changed = true
	}
	if r.Stock != nil && *r.Stock != p.Stock {
		p.Stock = *r.Stock
		changed = true
	}
	if r.Price != nil && !r.Price.Equal(p.Price) {
		p.Price = *r.Price
		changed = true
	}
	return changed
}
