// Package ingest turns the operations and professionals spreadsheets into
// dispatch items and a recipient directory.
package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RawRow is one data row keyed by its trimmed header text.
type RawRow struct {
	// Position is the spreadsheet row number; the header is row 1.
	Position int
	Values   map[string]string
}

// Get returns the normalized cell under header, or "" when absent.
func (r RawRow) Get(header string) string {
	return r.Values[header]
}

// Table is a sheet read into memory.
type Table struct {
	Source string
	Header []string
	Rows   []RawRow
}

// MissingColumnsError reports required header cells a sheet lacks.
type MissingColumnsError struct {
	Source  string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Source, strings.Join(e.Missing, ", "))
}

// IsMissingColumns reports whether err (or any error in its chain) is a
// MissingColumnsError.
func IsMissingColumns(err error) bool {
	var mErr *MissingColumnsError
	return errors.As(err, &mErr)
}

// ReadTable reads sheet from the workbook at path. An empty sheet name
// selects the first sheet. Fully blank rows are skipped but keep their
// numbering.
func ReadTable(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, fmt.Errorf("looking up sheet %q in %s: %w", sheet, path, err)
	}
	if idx == -1 {
		return nil, fmt.Errorf("sheet %q not found in %s", sheet, path)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q in %s: %w", sheet, path, err)
	}

	t := &Table{Source: path + "#" + sheet}
	if len(rows) == 0 {
		return t, nil
	}

	for _, h := range rows[0] {
		t.Header = append(t.Header, strings.TrimSpace(h))
	}

	for i, cells := range rows[1:] {
		row := RawRow{Position: i + 2, Values: make(map[string]string, len(t.Header))}
		blank := true
		for j, h := range t.Header {
			if h == "" || j >= len(cells) {
				continue
			}
			v := Normalize(cells[j])
			if v != "" {
				blank = false
			}
			if _, dup := row.Values[h]; !dup {
				row.Values[h] = v
			}
		}
		if blank {
			continue
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// Require returns a MissingColumnsError listing the columns t lacks.
func (t *Table) Require(columns ...string) error {
	have := make(map[string]bool, len(t.Header))
	for _, h := range t.Header {
		have[h] = true
	}

	var missing []string
	for _, c := range columns {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Source: t.Source, Missing: missing}
	}
	return nil
}

// Normalize trims a cell and drops the ".0" suffix spreadsheets add to
// integer codes stored as numbers, so "123.0" and "123" compare equal.
func Normalize(v string) string {
	v = strings.TrimSpace(v)
	whole, frac, ok := strings.Cut(v, ".")
	if !ok || whole == "" || frac == "" {
		return v
	}
	if strings.Trim(frac, "0") != "" || !isDigits(strings.TrimPrefix(whole, "-")) {
		return v
	}
	return whole
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
