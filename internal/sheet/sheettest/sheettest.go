// Package sheettest builds workbook fixtures for tests.
package sheettest

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// Header is a 15-column header shaped like the fund list export.
var Header = []any{
	"Fon Kodu", "Fon Adı", "Kategori", "Kurucu", "Yönetici", "Tür",
	"Para Birimi", "Fiyat", "Tedavül", "Toplam Değer", "Getiri",
	"Yatırımcı Sayısı", "Pazar Payı", "Risk Değeri", "Durum",
}

// Row returns a data row for key with numeric placeholders in the mapped
// columns, matching what a fresh export looks like.
func Row(key string) []any {
	r := make([]any, len(Header))
	r[0] = key
	r[1] = key + " Fund"
	r[2] = 0
	for i := 3; i < len(r); i++ {
		r[i] = i
	}
	return r
}

// Write saves rows (the first being the header) to a new workbook named
// name in a fresh temp dir and returns its path.
func Write(t *testing.T, name string, rows ...[]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(t.TempDir(), name)
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

// Funds writes a workbook with the standard header and one row per key.
func Funds(t *testing.T, keys ...string) string {
	t.Helper()
	rows := [][]any{Header}
	for _, k := range keys {
		rows = append(rows, Row(k))
	}
	return Write(t, "funds.xlsx", rows...)
}
