package services

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVSource(t *testing.T) {
	payload := []byte("Name,SKU *,description\nWidget,W-1,first\nGadget,G-2,\n")

	source, err := NewCSVSource(payload)
	require.NoError(t, err)

	row, err := source.Next()
	require.NoError(t, err)
	assert.Equal(t, "Widget", row["name"])
	assert.Equal(t, "W-1", row["sku"])
	assert.Equal(t, "first", row["description"])

	row, err = source.Next()
	require.NoError(t, err)
	assert.Equal(t, "Gadget", row["name"])

	_, err = source.Next()
	assert.Equal(t, io.EOF, err)

	// Reset replays the same rows
	require.NoError(t, source.Reset())
	row, err = source.Next()
	require.NoError(t, err)
	assert.Equal(t, "Widget", row["name"])
}

func TestCSVSourceEmptyPayload(t *testing.T) {
	source, err := NewCSVSource(nil)
	require.NoError(t, err)

	_, err = source.Next()
	assert.Equal(t, io.EOF, err)
}

func TestCSVSourceShortRows(t *testing.T) {
	payload := []byte("name,sku,description\nWidget,W-1\n")

	source, err := NewCSVSource(payload)
	require.NoError(t, err)

	row, err := source.Next()
	require.NoError(t, err)
	assert.Equal(t, "W-1", row["sku"])
	_, hasDescription := row["description"]
	assert.False(t, hasDescription)
}

func TestChunkerBatchesAndSkips(t *testing.T) {
	payload := []byte("name,sku\n" +
		"A,a-1\n" +
		",missing-name\n" +
		"B,b-2\n" +
		"No SKU,\n" +
		"C,c-3\n")

	source, err := NewCSVSource(payload)
	require.NoError(t, err)
	chunker := NewChunker(source, 2)

	batch, err := chunker.Next()
	require.NoError(t, err)
	assert.Len(t, batch.Records, 2)
	assert.Equal(t, 2, batch.RowCount)

	batch, err = chunker.Next()
	require.NoError(t, err)
	assert.Len(t, batch.Records, 1)
	assert.Equal(t, "c-3", batch.Records[0].SKU)

	_, err = chunker.Next()
	assert.Equal(t, io.EOF, err)

	assert.Equal(t, 2, chunker.SkippedTotal())
	assert.Equal(t, 1, chunker.Skipped[SkipMissingName])
	assert.Equal(t, 1, chunker.Skipped[SkipMissingSKU])
}

func TestChunkerDeduplicatesWithinBatch(t *testing.T) {
	payload := []byte("name,sku\n" +
		"First,DUP-1\n" +
		"Other,x-9\n" +
		"Last,dup-1\n")

	source, err := NewCSVSource(payload)
	require.NoError(t, err)
	chunker := NewChunker(source, 10)

	batch, err := chunker.Next()
	require.NoError(t, err)

	// Three valid rows consumed, two distinct SKUs survive
	assert.Equal(t, 3, batch.RowCount)
	require.Len(t, batch.Records, 2)

	// Last occurrence wins for the duplicated SKU
	assert.Equal(t, "dup-1", batch.Records[0].SKU)
	assert.Equal(t, "Last", batch.Records[0].Name)
	assert.Equal(t, "x-9", batch.Records[1].SKU)
}

func TestDeduplicateRecords(t *testing.T) {
	records := []ProductRecord{
		{SKU: "a", Name: "first"},
		{SKU: "b", Name: "b"},
		{SKU: "a", Name: "second"},
		{SKU: "c", Name: "c"},
		{SKU: "a", Name: "third"},
	}

	deduped := DeduplicateRecords(records)
	require.Len(t, deduped, 3)
	assert.Equal(t, "third", deduped[0].Name)
	assert.Equal(t, "b", deduped[1].SKU)
	assert.Equal(t, "c", deduped[2].SKU)
}
