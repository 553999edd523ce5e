package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"property-valuation/models"
)

const valuationColumns = 12

// PostgresWriter persists valuation records to PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	return NewPostgresWriterFromDB(db)
}

// NewPostgresWriterFromDB wraps an open handle and runs schema migrations.
func NewPostgresWriterFromDB(db *sql.DB) (*PostgresWriter, error) {
	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS valuations (
			id              SERIAL PRIMARY KEY,
			reference       TEXT          UNIQUE NOT NULL,
			postcode        TEXT          NOT NULL,
			floor_area_sqft NUMERIC(10,2) NOT NULL DEFAULT 0,
			floor_area_sqm  NUMERIC(10,3) NOT NULL DEFAULT 0,
			price_per_sqm   NUMERIC(12,2) NOT NULL DEFAULT 0,
			year            INTEGER       NOT NULL DEFAULT 0,
			confidence      VARCHAR(8)    NOT NULL DEFAULT '',
			sample_size     INTEGER       NOT NULL DEFAULT 0,
			local_average   NUMERIC(14,2),
			source          VARCHAR(16)   NOT NULL DEFAULT '',
			reason          TEXT          NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);

		ALTER TABLE valuations ALTER COLUMN postcode TYPE TEXT;

		CREATE INDEX IF NOT EXISTS idx_valuations_postcode   ON valuations(postcode);
		CREATE INDEX IF NOT EXISTS idx_valuations_confidence ON valuations(confidence);
	`)
	return err
}

// Write batch-upserts records keyed by reference. A NULL local_average marks
// an unavailable valuation.
func (pw *PostgresWriter) Write(records []*models.ValuationRecord) error {
	if len(records) == 0 {
		return nil
	}

	const batchSize = 50
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := pw.insertBatch(records[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (pw *PostgresWriter) insertBatch(batch []*models.ValuationRecord) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*valuationColumns)

	for idx, r := range batch {
		base := idx * valuationColumns
		placeholders := make([]string, valuationColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")

		var local interface{}
		if r.Available {
			local = r.LocalAverage
		}
		valueArgs = append(valueArgs,
			r.Reference, r.Postcode, r.FloorAreaSqFt, r.FloorAreaSqm, r.PricePerSqm,
			r.Year, string(r.Confidence), r.SampleSize, local, string(r.Source), r.Reason, r.CreatedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO valuations (reference, postcode, floor_area_sqft, floor_area_sqm, price_per_sqm,
			year, confidence, sample_size, local_average, source, reason, created_at)
		VALUES %s
		ON CONFLICT (reference) DO UPDATE SET
			postcode        = EXCLUDED.postcode,
			floor_area_sqft = EXCLUDED.floor_area_sqft,
			floor_area_sqm  = EXCLUDED.floor_area_sqm,
			price_per_sqm   = EXCLUDED.price_per_sqm,
			year            = EXCLUDED.year,
			confidence      = EXCLUDED.confidence,
			sample_size     = EXCLUDED.sample_size,
			local_average   = EXCLUDED.local_average,
			source          = EXCLUDED.source,
			reason          = EXCLUDED.reason,
			created_at      = EXCLUDED.created_at
	`, strings.Join(valueStrings, ","))

	if _, err := pw.db.Exec(query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert batch: %w", err)
	}
	return nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// FetchAll retrieves all stored valuations, used by the summary report.
func (pw *PostgresWriter) FetchAll() ([]*models.ValuationRecord, error) {
	rows, err := pw.db.Query(`
		SELECT id, reference, postcode, floor_area_sqft, floor_area_sqm, price_per_sqm,
			year, confidence, sample_size, local_average, source, reason, created_at
		FROM valuations
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	defer rows.Close()

	var records []*models.ValuationRecord
	for rows.Next() {
		r := &models.ValuationRecord{}
		var confidence, source string
		var local sql.NullFloat64
		if err := rows.Scan(
			&r.ID, &r.Reference, &r.Postcode, &r.FloorAreaSqFt, &r.FloorAreaSqm, &r.PricePerSqm,
			&r.Year, &confidence, &r.SampleSize, &local, &source, &r.Reason, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		r.Confidence = models.Confidence(confidence)
		r.Source = models.SeriesSource(source)
		r.Available = local.Valid
		r.LocalAverage = local.Float64
		records = append(records, r)
	}
	return records, rows.Err()
}
