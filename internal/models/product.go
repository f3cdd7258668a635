package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product represents a catalog item, either created through the API or
// imported from CSV. SKUs are unique case-insensitively: they are trimmed
// and lowercased before every write.
type Product struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Name        string    `json:"name" gorm:"not null;index"`
	SKU         string    `json:"sku" gorm:"not null;uniqueIndex:idx_products_sku"`
	Description *string   `json:"description,omitempty"`
	Active      bool      `json:"active" gorm:"index"`
	CreatedAt   time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Product) TableName() string {
	return "products"
}

// BeforeCreate assigns an ID so the model works across dialects without
// relying on a database-side default.
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// BeforeSave normalizes the SKU for case-insensitive uniqueness.
func (p *Product) BeforeSave(tx *gorm.DB) error {
	p.SKU = NormalizeSKU(p.SKU)
	return nil
}

// NormalizeSKU trims whitespace and lowercases a SKU. All code paths that
// compare or persist SKUs go through this.
func NormalizeSKU(sku string) string {
	return strings.ToLower(strings.TrimSpace(sku))
}

// CreateProductRequest is the payload for creating a product via the API.
type CreateProductRequest struct {
	Name        string  `json:"name" binding:"required"`
	SKU         string  `json:"sku" binding:"required"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// UpdateProductRequest is the payload for updating a product via the API.
type UpdateProductRequest struct {
	Name        *string `json:"name,omitempty"`
	SKU         *string `json:"sku,omitempty"`
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// ListProductsQuery carries the supported list filters. String filters are
// case-insensitive substring matches.
type ListProductsQuery struct {
	SKU         string `form:"sku"`
	Name        string `form:"name"`
	Description string `form:"description"`
	Active      *bool  `form:"active"`
	Page        int    `form:"page,default=1"`
	Limit       int    `form:"limit,default=20"`
}
