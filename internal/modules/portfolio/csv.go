package portfolio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidCSV is returned when an upload cannot be parsed as CSV
var ErrInvalidCSV = errors.New("invalid csv")

var amountNoise = regexp.MustCompile(`[€$£¥₹₽\s,]`)

// parseAmount reads a broker-formatted decimal. Currency symbols, spaces and
// thousands separators are ignored; empty, "na" and unparsable values are 0.
func parseAmount(raw string) decimal.Decimal {
	v := strings.TrimSpace(raw)
	if v == "" || strings.EqualFold(v, "na") {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(amountNoise.ReplaceAllString(v, ""))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// csvRecord is one data row addressed by lower-cased header name
type csvRecord map[string]string

func (r csvRecord) get(key string) string {
	return strings.TrimSpace(r[key])
}

// readRecords parses a CSV with a header row into records
func readRecords(src io.Reader) ([]csvRecord, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var records []csvRecord
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}

		rec := make(csvRecord, len(header))
		for i, name := range header {
			if i < len(fields) {
				rec[name] = fields[i]
			}
		}
		records = append(records, rec)
	}

	return records, nil
}
