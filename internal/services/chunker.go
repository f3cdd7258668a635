package services

import (
	"io"
)

// DefaultChunkSize is how many valid records are accumulated before a
// batch is handed to the upsert engine.
const DefaultChunkSize = 5000

// Batch is one unit of store I/O. Records are deduplicated by normalized
// SKU with the last occurrence in stream order winning; RowCount is the
// number of valid rows consumed to build the batch and is what progress
// advances by.
type Batch struct {
	Records  []ProductRecord
	RowCount int
}

// Chunker walks a row source, validating rows and grouping the valid ones
// into fixed-size batches. Invalid rows are counted by reason and never
// reach a batch. The last batch may be smaller than the chunk size.
type Chunker struct {
	source    RowSource
	chunkSize int

	// Skipped counts invalid rows by reason, accumulated across Next calls.
	Skipped map[SkipReason]int
}

// NewChunker creates a chunker over the given source. A non-positive
// chunkSize falls back to DefaultChunkSize.
func NewChunker(source RowSource, chunkSize int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Chunker{
		source:    source,
		chunkSize: chunkSize,
		Skipped:   make(map[SkipReason]int),
	}
}

// Next returns the next batch, or io.EOF when the source is exhausted and
// no valid rows remain.
func (c *Chunker) Next() (*Batch, error) {
	records := make([]ProductRecord, 0, c.chunkSize)

	for len(records) < c.chunkSize {
		row, err := c.source.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		rec, reason, ok := ValidateRow(row)
		if !ok {
			c.Skipped[reason]++
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, io.EOF
	}

	return &Batch{
		Records:  DeduplicateRecords(records),
		RowCount: len(records),
	}, nil
}

// SkippedTotal returns how many rows were skipped so far.
func (c *Chunker) SkippedTotal() int {
	total := 0
	for _, n := range c.Skipped {
		total += n
	}
	return total
}

// DeduplicateRecords collapses records sharing a normalized SKU, keeping
// the last occurrence in input order. Order of first appearance is
// preserved for the surviving records.
func DeduplicateRecords(records []ProductRecord) []ProductRecord {
	if len(records) < 2 {
		return records
	}

	index := make(map[string]int, len(records))
	deduped := make([]ProductRecord, 0, len(records))
	for _, rec := range records {
		if pos, seen := index[rec.SKU]; seen {
			deduped[pos] = rec
			continue
		}
		index[rec.SKU] = len(deduped)
		deduped = append(deduped, rec)
	}
	return deduped
}
