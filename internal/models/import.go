package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ImportStatus represents the status of an import job
type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "PENDING"
	ImportStatusProcessing ImportStatus = "PROCESSING"
	ImportStatusCompleted  ImportStatus = "COMPLETED"
	ImportStatusFailed     ImportStatus = "FAILED"
)

// Terminal reports whether the status is final. Completed and failed jobs
// are never mutated again.
func (s ImportStatus) Terminal() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed
}

// ImportJob tracks the progress of one CSV import run. The raw CSV payload
// is stored on the job so a worker on another instance can re-read it for
// both the count pass and the process pass.
type ImportJob struct {
	ID               uuid.UUID    `json:"id" gorm:"type:uuid;primary_key"`
	Status           ImportStatus `json:"status" gorm:"type:varchar(20);default:'PENDING';index"`
	Progress         int          `json:"progress" gorm:"default:0"`
	TotalRecords     int          `json:"totalRecords" gorm:"default:0"`
	ProcessedRecords int          `json:"processedRecords" gorm:"default:0"`
	ErrorMessage     *string      `json:"errorMessage,omitempty"`
	FileContent      string       `json:"-"`
	CreatedAt        time.Time    `json:"createdAt" gorm:"index"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

func (ImportJob) TableName() string {
	return "import_jobs"
}

func (j *ImportJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"`
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity  string                 `json:"entity"`
	Version string                 `json:"version"`
	Columns []ImportTemplateColumn `json:"columns"`
}

// ProductImportColumns returns the column definitions for product import
func ProductImportColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: "name", Description: "Product name", Required: true, Type: "string", Example: "Blue Cotton T-Shirt"},
		{Name: "sku", Description: "Unique product SKU (case-insensitive)", Required: true, Type: "string", Example: "tsh-blu-001"},
		{Name: "description", Description: "Product description", Required: false, Type: "string", Example: ""},
		{Name: "active", Description: "Whether the product is active", Required: false, Type: "boolean", Example: "true"},
	}
}

// ProductImportTemplate returns the template definition for products
func ProductImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "products",
		Version: "1.0",
		Columns: ProductImportColumns(),
	}
}
