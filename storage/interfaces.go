package storage

import "property-valuation/models"

// ValuationWriter is the interface any storage backend for batch results must satisfy.
type ValuationWriter interface {
	Write(records []*models.ValuationRecord) error
	Close() error
}

var (
	_ ValuationWriter = (*CSVWriter)(nil)
	_ ValuationWriter = (*PostgresWriter)(nil)
)
