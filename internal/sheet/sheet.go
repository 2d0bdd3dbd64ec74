// Package sheet wraps an excelize workbook as a table of data rows below a
// single header row.
package sheet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// ErrTooNarrow is returned when a mapped column lies beyond the sheet.
var ErrTooNarrow = errors.New("sheet has fewer columns than the column map requires")

// Table is one worksheet. Row indexes are zero-based and exclude the header;
// column indexes are zero-based.
type Table struct {
	f     *excelize.File
	sheet string
	rows  [][]string
	width int
}

// Open loads the named worksheet of the workbook at path. An empty name
// selects the first sheet.
func Open(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	t, err := newTable(f, sheet)
	if err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

func newTable(f *excelize.File, sheet string) (*Table, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	if sheet == "" {
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	t := &Table{f: f, sheet: sheet}
	for _, r := range rows {
		t.width = max(t.width, len(r))
	}
	if len(rows) > 0 {
		t.rows = rows[1:]
	}
	return t, nil
}

// Sheet returns the worksheet name.
func (t *Table) Sheet() string { return t.sheet }

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Width returns the number of columns in the widest row, header included.
func (t *Table) Width() int { return t.width }

// Key returns the displayed text of cell (row, col) as it was loaded.
func (t *Table) Key(row, col int) string {
	if row < 0 || row >= len(t.rows) || col < 0 || col >= len(t.rows[row]) {
		return ""
	}
	return t.rows[row][col]
}

// Cell returns the current value of (row, col), including writes made since
// loading.
func (t *Table) Cell(row, col int) (string, error) {
	name, err := cellName(row, col)
	if err != nil {
		return "", err
	}
	return t.f.GetCellValue(t.sheet, name)
}

// Set writes a string value to (row, col).
func (t *Table) Set(row, col int, value string) error {
	if row < 0 || row >= len(t.rows) {
		return fmt.Errorf("row %d out of range [0,%d)", row, len(t.rows))
	}
	name, err := cellName(row, col)
	if err != nil {
		return err
	}
	if err := t.f.SetCellValue(t.sheet, name, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}
	return nil
}

// Widen prepares cols to receive text. Cells are typed individually, so a
// numeric column accepts strings as-is; the only requirement is that every
// column exists.
func (t *Table) Widen(cols ...int) error {
	for _, c := range cols {
		if c < 0 || c >= t.width {
			return fmt.Errorf("%w: column %d, width %d", ErrTooNarrow, c, t.width)
		}
	}
	return nil
}

// Save atomically writes the workbook to path: the data goes to a temporary
// file in the same directory which is synced and then renamed over path.
func (t *Table) Save(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			os.Remove(tmpName)
		}
	}()

	if err := t.f.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	tmpName = ""
	return nil
}

// Close releases the workbook.
func (t *Table) Close() error {
	return t.f.Close()
}

func cellName(row, col int) (string, error) {
	// +1 for excelize's 1-based coordinates, +1 more to skip the header.
	return excelize.CoordinatesToCellName(col+1, row+2)
}
