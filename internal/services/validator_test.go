package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRow(t *testing.T) {
	tests := []struct {
		name       string
		row        map[string]string
		wantOK     bool
		wantReason SkipReason
		wantSKU    string
	}{
		{
			name:    "valid row",
			row:     map[string]string{"name": "Widget", "sku": "WID-001"},
			wantOK:  true,
			wantSKU: "wid-001",
		},
		{
			name:    "sku trimmed and lowercased",
			row:     map[string]string{"name": "Widget", "sku": "  ABC-1  "},
			wantOK:  true,
			wantSKU: "abc-1",
		},
		{
			name:       "missing name",
			row:        map[string]string{"name": "   ", "sku": "abc-1"},
			wantOK:     false,
			wantReason: SkipMissingName,
		},
		{
			name:       "missing sku",
			row:        map[string]string{"name": "Widget", "sku": ""},
			wantOK:     false,
			wantReason: SkipMissingSKU,
		},
		{
			name:       "missing both",
			row:        map[string]string{"name": "", "sku": "  "},
			wantOK:     false,
			wantReason: SkipMissingBoth,
		},
		{
			name:       "empty row",
			row:        map[string]string{},
			wantOK:     false,
			wantReason: SkipMissingBoth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, reason, ok := ValidateRow(tt.row)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantSKU, rec.SKU)
			} else {
				assert.Equal(t, tt.wantReason, reason)
			}
		})
	}
}

func TestValidateRowActiveFlag(t *testing.T) {
	for value, want := range map[string]bool{
		"":      true,
		"true":  true,
		"TRUE":  true,
		"yes":   true,
		"1":     true,
		"false": false,
		"FALSE": false,
		"0":     false,
		"no":    false,
	} {
		rec, _, ok := ValidateRow(map[string]string{"name": "Widget", "sku": "w-1", "active": value})
		assert.True(t, ok)
		assert.Equal(t, want, rec.Active, "active=%q", value)
	}
}

func TestProductRecordModel(t *testing.T) {
	rec := ProductRecord{SKU: "w-1", Name: "Widget", Description: "A widget", Active: true}
	product := rec.Model()
	assert.Equal(t, "w-1", product.SKU)
	assert.Equal(t, "Widget", product.Name)
	assert.NotNil(t, product.Description)
	assert.Equal(t, "A widget", *product.Description)

	rec.Description = ""
	assert.Nil(t, rec.Model().Description)
}
