package services

import (
	"strings"

	"fulfill-service/internal/models"
)

// SkipReason explains why a raw row was rejected by validation.
type SkipReason string

const (
	SkipMissingName SkipReason = "missing_name"
	SkipMissingSKU  SkipReason = "missing_sku"
	SkipMissingBoth SkipReason = "missing_both"
)

// ProductRecord is the canonical form of one valid CSV row: trimmed fields
// and a normalized (trimmed, lowercased) SKU.
type ProductRecord struct {
	SKU         string
	Name        string
	Description string
	Active      bool
}

// ValidateRow normalizes one raw CSV row and validates it. A row is valid
// iff both name and sku are non-empty after trimming. The same function is
// used by the orchestrator's count pass and process pass so the two passes
// always agree on which rows count.
func ValidateRow(row map[string]string) (ProductRecord, SkipReason, bool) {
	name := strings.TrimSpace(row["name"])
	sku := models.NormalizeSKU(row["sku"])

	switch {
	case name == "" && sku == "":
		return ProductRecord{}, SkipMissingBoth, false
	case name == "":
		return ProductRecord{}, SkipMissingName, false
	case sku == "":
		return ProductRecord{}, SkipMissingSKU, false
	}

	return ProductRecord{
		SKU:         sku,
		Name:        name,
		Description: strings.TrimSpace(row["description"]),
		Active:      parseActive(row["active"]),
	}, "", true
}

// parseActive interprets the optional active column. Imported products
// default to active, matching the behavior of single-product creation.
func parseActive(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "false", "0", "no":
		return false
	}
	return true
}

// Model converts a record into its store representation.
func (rec ProductRecord) Model() *models.Product {
	product := &models.Product{
		Name:   rec.Name,
		SKU:    rec.SKU,
		Active: rec.Active,
	}
	if rec.Description != "" {
		desc := rec.Description
		product.Description = &desc
	}
	return product
}
