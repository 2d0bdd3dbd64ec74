package sheet

import (
	"os"
	"path/filepath"
	"testing"

	"fundscrape/internal/sheet/sheettest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	path := sheettest.Funds(t, "AAA", "BBB", "CCC")

	tbl, err := Open(path, "")
	require.NoError(t, err)
	defer tbl.Close()

	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, 15, tbl.Width())
	assert.Equal(t, "AAA", tbl.Key(0, 0))
	assert.Equal(t, "CCC", tbl.Key(2, 0))
	assert.Equal(t, "", tbl.Key(3, 0))
	assert.Equal(t, "", tbl.Key(0, 99))
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.xlsx"), "")
	assert.Error(t, err)
}

func TestOpenUnknownSheet(t *testing.T) {
	path := sheettest.Funds(t, "AAA")
	_, err := Open(path, "Funds2024")
	assert.Error(t, err)
}

func TestOpenHeaderOnly(t *testing.T) {
	path := sheettest.Funds(t)

	tbl, err := Open(path, "")
	require.NoError(t, err)
	defer tbl.Close()
	assert.Equal(t, 0, tbl.Len())
}

func TestNumericKeyIsDisplayedText(t *testing.T) {
	row := sheettest.Row("")
	row[0] = 1234
	path := sheettest.Write(t, "numeric.xlsx", sheettest.Header, row)

	tbl, err := Open(path, "")
	require.NoError(t, err)
	defer tbl.Close()
	assert.Equal(t, "1234", tbl.Key(0, 0))
}

func TestSetOverwritesNumericCellWithText(t *testing.T) {
	path := sheettest.Funds(t, "AAA", "BBB")

	tbl, err := Open(path, "")
	require.NoError(t, err)
	defer tbl.Close()

	require.NoError(t, tbl.Widen(2, 11, 12, 13, 14))
	require.NoError(t, tbl.Set(1, 11, "1.234"))
	require.NoError(t, tbl.Set(1, 2, "Hisse Senedi Fonu"))

	got, err := tbl.Cell(1, 11)
	require.NoError(t, err)
	assert.Equal(t, "1.234", got)

	got, err = tbl.Cell(0, 11)
	require.NoError(t, err)
	assert.Equal(t, "11", got, "other rows untouched")

	assert.Error(t, tbl.Set(2, 2, "x"))
	assert.Error(t, tbl.Set(-1, 2, "x"))
}

func TestWidenTooNarrow(t *testing.T) {
	path := sheettest.Write(t, "narrow.xlsx",
		[]any{"Fon Kodu", "Fon Adı", "Kategori"},
		[]any{"AAA", "A", "x"},
	)

	tbl, err := Open(path, "")
	require.NoError(t, err)
	defer tbl.Close()

	require.NoError(t, tbl.Widen(2))
	assert.ErrorIs(t, tbl.Widen(2, 11), ErrTooNarrow)
}

func TestSaveRoundTrip(t *testing.T) {
	path := sheettest.Funds(t, "AAA", "BBB")
	out := filepath.Join(t.TempDir(), "out.xlsx")

	tbl, err := Open(path, "")
	require.NoError(t, err)
	require.NoError(t, tbl.Set(0, 14, "İşlem görüyor"))
	require.NoError(t, tbl.Save(out))
	require.NoError(t, tbl.Set(1, 14, "Error"))
	require.NoError(t, tbl.Save(out))
	require.NoError(t, tbl.Close())

	saved, err := Open(out, "")
	require.NoError(t, err)
	defer saved.Close()

	assert.Equal(t, 2, saved.Len())
	assert.Equal(t, "AAA", saved.Key(0, 0))
	assert.Equal(t, "İşlem görüyor", saved.Key(0, 14))
	assert.Equal(t, "Error", saved.Key(1, 14))

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are renamed away")
}

func TestSaveToMissingDir(t *testing.T) {
	path := sheettest.Funds(t, "AAA")
	tbl, err := Open(path, "")
	require.NoError(t, err)
	defer tbl.Close()

	assert.Error(t, tbl.Save(filepath.Join(t.TempDir(), "missing", "out.xlsx")))
}
