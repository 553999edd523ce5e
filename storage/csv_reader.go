package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"property-valuation/models"
)

// LoadProperties reads batch input from a CSV file.
func LoadProperties(path string) ([]*models.Property, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()
	return ReadProperties(f)
}

// ReadProperties parses rows of reference,postcode,floor_area_sqft. A header
// row is detected and skipped. An unparseable floor area becomes 0 so the
// property is reported as not available instead of aborting the batch.
func ReadProperties(r io.Reader) ([]*models.Property, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var props []*models.Property
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read properties: %w", err)
		}
		line++

		if len(rec) < 3 {
			return nil, fmt.Errorf("csv: line %d: want 3 columns, got %d", line, len(rec))
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "reference") {
			continue
		}

		area, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err != nil {
			area = 0
		}
		props = append(props, &models.Property{
			Reference:     strings.TrimSpace(rec[0]),
			Postcode:      strings.TrimSpace(rec[1]),
			FloorAreaSqFt: area,
		})
	}
	return props, nil
}
