package history

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nhle/audit-mailer/internal/model"
)

// XLSXStore appends audit records to a sheet of an Excel workbook. The
// workbook is reopened for every append and replaced atomically, so a run
// killed between items leaves every finished row intact.
type XLSXStore struct {
	path  string
	sheet string

	// header is the sheet's header row, fixed when the store is opened.
	header []string
}

// OpenXLSX opens (or creates) the workbook at path and makes sure sheet
// exists with a header row containing at least the canonical columns.
// Existing header cells are kept in place; missing canonical columns are
// appended to the right.
func OpenXLSX(path, sheet string) (*XLSXStore, error) {
	if path == "" {
		return nil, &StoreWriteError{Backend: BackendXLSX, Target: sheet, Err: errors.New("no workbook path")}
	}
	if sheet == "" {
		return nil, &StoreWriteError{Backend: BackendXLSX, Target: path, Err: errors.New("no sheet name")}
	}

	s := &XLSXStore{path: path, sheet: sheet}
	if err := s.prepare(); err != nil {
		return nil, &StoreWriteError{Backend: BackendXLSX, Target: s.target(), Err: err}
	}
	return s, nil
}

func (s *XLSXStore) target() string {
	return s.path + "#" + s.sheet
}

// Header returns the header row fixed at open time.
func (s *XLSXStore) Header() []string {
	return append([]string(nil), s.header...)
}

func (s *XLSXStore) prepare() error {
	f, created, err := s.openOrCreate()
	if err != nil {
		return err
	}
	defer f.Close()

	changed := created

	idx, err := f.GetSheetIndex(s.sheet)
	if err != nil {
		return fmt.Errorf("looking up sheet: %w", err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(s.sheet); err != nil {
			return fmt.Errorf("creating sheet: %w", err)
		}
		changed = true
	}

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return fmt.Errorf("reading sheet: %w", err)
	}

	var existing []string
	if len(rows) > 0 {
		for _, h := range rows[0] {
			existing = append(existing, strings.TrimSpace(h))
		}
	}

	header := mergeHeader(existing, Headers())
	if len(header) != len(existing) {
		if err := writeRow(f, s.sheet, 1, toCells(header)); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
		changed = true
	}
	s.header = header

	if !changed {
		return nil
	}
	return s.save(f)
}

func (s *XLSXStore) openOrCreate() (*excelize.File, bool, error) {
	f, err := excelize.OpenFile(s.path)
	if err == nil {
		return f, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("opening workbook: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, false, fmt.Errorf("creating workbook directory: %w", err)
	}

	// NewFile starts with one default sheet; reuse it as ours.
	f = excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), s.sheet); err != nil {
		f.Close()
		return nil, false, fmt.Errorf("naming sheet: %w", err)
	}
	return f, true, nil
}

// mergeHeader keeps existing in order and appends the canonical headers it
// lacks.
func mergeHeader(existing, canonical []string) []string {
	have := make(map[string]bool, len(existing))
	for _, h := range existing {
		have[h] = true
	}

	out := append([]string(nil), existing...)
	for _, h := range canonical {
		if !have[h] {
			out = append(out, h)
		}
	}
	return out
}

// AppendRecord writes rec as a new row below the last non-empty row.
func (s *XLSXStore) AppendRecord(_ context.Context, rec model.AuditRecord) error {
	if err := s.appendRow(s.rowFor(rec)); err != nil {
		return &StoreWriteError{Backend: BackendXLSX, Target: s.target(), Err: err}
	}
	return nil
}

func (s *XLSXStore) appendRow(cells []any) error {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(s.sheet)
	if err != nil {
		return fmt.Errorf("looking up sheet: %w", err)
	}
	if idx == -1 {
		return fmt.Errorf("sheet %q no longer exists", s.sheet)
	}

	rows, err := f.GetRows(s.sheet)
	if err != nil {
		return fmt.Errorf("reading sheet: %w", err)
	}

	next := len(rows) + 1
	if next < 2 {
		next = 2
	}
	if err := writeRow(f, s.sheet, next, cells); err != nil {
		return fmt.Errorf("writing row %d: %w", next, err)
	}

	return s.save(f)
}

// rowFor lays rec out in header order. Header cells that are not canonical
// columns stay blank.
func (s *XLSXStore) rowFor(rec model.AuditRecord) []any {
	byHeader := make(map[string]column, len(columns))
	for _, c := range columns {
		byHeader[c.header] = c
	}

	cells := make([]any, len(s.header))
	for i, h := range s.header {
		cells[i] = ""
		if c, ok := byHeader[h]; ok {
			cells[i] = c.value(rec)
		}
	}
	return cells
}

// save writes the workbook next to the original and renames it into
// place.
func (s *XLSXStore) save(f *excelize.File) error {
	dir, base := filepath.Split(s.path)
	ext := filepath.Ext(base)
	tmp := filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".tmp"+ext)

	if err := f.SaveAs(tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("saving workbook: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing workbook: %w", err)
	}
	return nil
}

// Close is a no-op; the workbook is not held open between appends.
func (s *XLSXStore) Close() error {
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
