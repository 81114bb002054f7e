package fetcher

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/reconcile-cli/internal/table"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func readTestXLSX(t *testing.T, path string, opts XLSXOptions) (*table.Dataset, error) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return ReadXLSX(data, opts)
}

func TestReadXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"bduNIDAD": {
			{"Cédula", "Nombre"},
			{"A1", "Ana"},
			{"B2", "Beto"},
		},
	})

	ds, err := readTestXLSX(t, path, XLSXOptions{SheetName: "bduNIDAD"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Cédula", "Nombre"}, ds.Schema())
	require.Equal(t, 2, ds.Len())
	v, _ := ds.Value(1, "Nombre")
	assert.Equal(t, table.String("Beto"), v)
}

func TestReadXLSX_HeaderRowOne(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Tecnico": {
			{"PROMOCIÓN TÉCNICO 2024"},
			{"Documento", "Nombre Completo", ""},
			{"C3", "Carla", "extra"},
		},
	})
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	ds, err := ReadXLSX(data, XLSXOptions{SheetName: "Tecnico", HeaderRow: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"Documento", "Nombre Completo", "Unnamed: 2"}, ds.Schema())
	assert.Equal(t, 1, ds.Len())
}

func TestReadXLSX_SheetNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"a"}}})
	_, err := readTestXLSX(t, path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"a"}}})
	_, err := readTestXLSX(t, path, XLSXOptions{SheetIndex: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSX_HeaderRowOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"a"}}})
	_, err := readTestXLSX(t, path, XLSXOptions{HeaderRow: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header row 3 out of range")
}

func TestReadXLSX_NotAWorkbook(t *testing.T) {
	_, err := ReadXLSX([]byte("not a zip"), XLSXOptions{})
	require.Error(t, err)
}

func TestWriteXLSX_RoundTrip(t *testing.T) {
	ds := table.MustDataset([]string{"Cédula", "Nombre", "Edad", "Programa"}, [][]table.Value{
		{table.String("A1"), table.String("Ana"), table.Number(30), table.String("Técnico")},
		{table.String("C3"), table.String("Carla"), table.Null(), table.Null()},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "SW11", ds))

	back, err := ReadXLSX(buf.Bytes(), XLSXOptions{SheetName: "SW11"})
	require.NoError(t, err)
	assert.Equal(t, ds.Schema(), back.Schema())
	require.Equal(t, 2, back.Len())

	age, _ := back.Value(0, "Edad")
	f, ok := age.Float()
	assert.True(t, ok)
	assert.Equal(t, 30.0, f)

	for _, col := range []string{"Edad", "Programa"} {
		v, _ := back.Value(1, col)
		assert.True(t, v.IsNull(), "column %s should round-trip as null", col)
	}
}

func TestWriteXLSX_EmptyDataset(t *testing.T) {
	ds := table.MustDataset([]string{"a", "b"}, nil)
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "", ds))

	back, err := ReadXLSX(buf.Bytes(), XLSXOptions{SheetName: "Sheet1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, back.Schema())
	assert.Equal(t, 0, back.Len())
}

func TestIsDateFormat(t *testing.T) {
	tests := map[string]bool{
		"":                    false,
		"General":             false,
		"0":                   false,
		"0.00":                false,
		"#,##0":               false,
		"0%":                  false,
		"@":                   false,
		"mm-dd-yy":            true,
		"d/m/yyyy":            true,
		"yyyy-mm-dd hh:mm:ss": true,
		"[$-409]mmmm d, yyyy": true,
		"[Red]0.00":           false,
		`"days "0`:            false,
		`0\d`:                 false,
		"h:mm AM/PM":          true,
	}
	for format, want := range tests {
		assert.Equal(t, want, isDateFormat(format), "format %q", format)
	}
}

func TestBuildHeader(t *testing.T) {
	assert.Equal(t,
		[]string{"A", "A.1", "Unnamed: 2", "A.2", "Unnamed: 4"},
		buildHeader([]string{"A", "A", " ", "A"}, 5),
	)
	assert.Equal(t, []string{"x", "x.1", "x.1.1"}, buildHeader([]string{"x", "x.1", "x.1"}, 3))
}
