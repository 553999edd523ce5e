package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"property-valuation/models"
)

var csvHeader = []string{
	"reference", "postcode", "floor_area_sqft", "floor_area_sqm", "price_per_sqm",
	"year", "confidence", "sample_size", "local_average", "available", "source", "reason", "created_at",
}

// CSVWriter writes valuation records to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	closer io.Closer
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w, err := newCSVWriter(f, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

func newCSVWriter(out io.Writer, closer io.Closer) (*CSVWriter, error) {
	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()
	return &CSVWriter{closer: closer, writer: w}, nil
}

// Write appends one row per record. Unavailable records leave the value
// columns empty and carry the reason.
func (c *CSVWriter) Write(records []*models.ValuationRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		if err := c.writer.Write(csvRow(r)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

func csvRow(r *models.ValuationRecord) []string {
	row := []string{
		r.Reference,
		r.Postcode,
		formatFloat(r.FloorAreaSqFt),
		"", "", "", "", "", "",
		strconv.FormatBool(r.Available),
		string(r.Source),
		r.Reason,
		r.CreatedAt.Format(time.RFC3339),
	}
	if r.Available {
		row[3] = formatFloat(r.FloorAreaSqm)
		row[4] = formatFloat(r.PricePerSqm)
		row[5] = strconv.Itoa(r.Year)
		row[6] = string(r.Confidence)
		row[7] = strconv.Itoa(r.SampleSize)
		row[8] = formatFloat(r.LocalAverage)
	}
	return row
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
