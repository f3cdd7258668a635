package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// RowSource yields raw field-mapped rows sequentially. Sources must be
// resettable so the import orchestrator can replay the same rows for its
// count pass and its process pass.
type RowSource interface {
	// Next returns the next row, or io.EOF when the source is exhausted.
	Next() (map[string]string, error)
	// Reset restarts the source from the beginning.
	Reset() error
}

// CSVSource reads rows from an in-memory CSV payload. The first row is the
// header; header names are trimmed and lowercased. Records with fewer
// fields than the header are padded by position, extra fields are dropped.
type CSVSource struct {
	payload []byte
	reader  *csv.Reader
	headers []string
	line    int
}

// NewCSVSource creates a source over the given CSV payload. The header row
// is read eagerly so a malformed header is reported at construction.
func NewCSVSource(payload []byte) (*CSVSource, error) {
	s := &CSVSource{payload: payload}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reset restarts the source from the first data row.
func (s *CSVSource) Reset() error {
	reader := csv.NewReader(bytes.NewReader(s.payload))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			// An empty payload is a valid source with zero rows.
			s.reader = reader
			s.headers = nil
			s.line = 1
			return nil
		}
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	for i := range headers {
		headers[i] = strings.TrimSpace(strings.ToLower(headers[i]))
		headers[i] = strings.TrimSuffix(headers[i], " *")
	}

	s.reader = reader
	s.headers = headers
	s.line = 1
	return nil
}

// Next returns the next data row keyed by header name.
func (s *CSVSource) Next() (map[string]string, error) {
	if s.headers == nil {
		return nil, io.EOF
	}

	record, err := s.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("error reading line %d: %w", s.line+1, err)
	}
	s.line++

	row := make(map[string]string, len(s.headers))
	for i, value := range record {
		if i < len(s.headers) {
			row[s.headers[i]] = value
		}
	}
	return row, nil
}
