// Package normalize converts the scraped listing table (CSV with arbitrary
// column order) into canonical listing records, and owns the persisted
// normalized-JSON contract consumed by the indexing pipeline.
//
// Naming: the CSV column is area_m2 (scraper output); the canonical
// persisted metadata key is area. This package owns that mapping.
package normalize

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/HomeGenieAI/homegenie-engine/engine/domain"
)

// Columns required in the source table.
var requiredColumns = []string{
	"title", "date", "price", "area_m2", "price_per_m2",
	"bedrooms", "toilets", "direction", "district_county",
	"province_city", "url", "doc",
}

// dateLayouts are accepted input date formats, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2006/01/02",
	"02-01-2006",
	time.RFC3339,
}

// RowError reports one failed row. Failed rows are excluded from the
// output, never silently dropped: the caller logs and counts them.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("normalize: row %d: %v", e.Row, e.Err)
}

// Table is a parsed tabular source: a header and its data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadCSV parses a CSV stream into a Table. The first line is the header.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // per-row validation happens in Normalize
	all, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("normalize: read csv: %w", err)
	}
	if len(all) == 0 {
		return Table{}, fmt.Errorf("normalize: empty table")
	}
	return Table{Header: all[0], Rows: all[1:]}, nil
}

// Normalize converts a table into canonical listings. Row-level failures
// are collected and reported; they never abort the batch. Output order
// matches input row order.
func Normalize(t Table) ([]domain.Listing, []RowError) {
	idx := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		idx[strings.TrimSpace(strings.ToLower(h))] = i
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		// Without the column every row fails the same way; report once per row
		// so counts stay honest.
		errs := make([]RowError, len(t.Rows))
		for i := range t.Rows {
			errs[i] = RowError{Row: i, Err: fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))}
		}
		return nil, errs
	}

	var (
		listings []domain.Listing
		errs     []RowError
	)
	for i, row := range t.Rows {
		l, err := normalizeRow(idx, i, row)
		if err != nil {
			errs = append(errs, RowError{Row: i, Err: err})
			continue
		}
		listings = append(listings, l)
	}
	return listings, errs
}

func normalizeRow(idx map[string]int, row int, fields []string) (domain.Listing, error) {
	get := func(col string) (string, error) {
		i := idx[col]
		if i >= len(fields) {
			return "", domain.NewValidationError(row, col, "", fmt.Errorf("column missing in row"))
		}
		return strings.TrimSpace(fields[i]), nil
	}

	var l domain.Listing
	var err error

	if l.Title, err = get("title"); err != nil {
		return l, err
	}
	rawDate, err := get("date")
	if err != nil {
		return l, err
	}
	if l.DatePosted, err = parseDate(rawDate); err != nil {
		return l, domain.NewValidationError(row, "date", rawDate, err)
	}
	if l.PriceVND, err = getFloat(get, row, "price"); err != nil {
		return l, err
	}
	if l.AreaM2, err = getFloat(get, row, "area_m2"); err != nil {
		return l, err
	}
	if l.PricePerArea, err = getFloat(get, row, "price_per_m2"); err != nil {
		return l, err
	}
	if l.Bedrooms, err = getInt(get, row, "bedrooms"); err != nil {
		return l, err
	}
	if l.Toilets, err = getInt(get, row, "toilets"); err != nil {
		return l, err
	}
	if l.Direction, err = get("direction"); err != nil {
		return l, err
	}
	if l.DistrictCounty, err = get("district_county"); err != nil {
		return l, err
	}
	if l.ProvinceCity, err = get("province_city"); err != nil {
		return l, err
	}
	if l.URL, err = get("url"); err != nil {
		return l, err
	}
	if l.Body, err = get("doc"); err != nil {
		return l, err
	}

	if verr := domain.ValidateListing(l); verr != nil {
		return l, domain.NewValidationError(row, "listing", l.Title, verr)
	}
	return l, nil
}

func getFloat(get func(string) (string, error), row int, col string) (float64, error) {
	s, err := get(col)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, domain.NewValidationError(row, col, s, fmt.Errorf("not a number"))
	}
	return v, nil
}

func getInt(get func(string) (string, error), row int, col string) (int, error) {
	s, err := get(col)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// Scraper sometimes emits integer counts as "3.0".
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, domain.NewValidationError(row, col, s, fmt.Errorf("not an integer"))
		}
		return int(f), nil
	}
	return v, nil
}

func parseDate(s string) (string, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", domain.ErrBadDate
}
