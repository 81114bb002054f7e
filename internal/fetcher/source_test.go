package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/table"
)

type stubFetcher struct {
	body string
	urls []string
}

func (s *stubFetcher) Download(_ context.Context, url string) (io.ReadCloser, error) {
	s.urls = append(s.urls, url)
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"sw11.xlsx":                       FormatXLSX,
		"promo.CSV":                       FormatCSV,
		"promo.tsv":                       FormatTSV,
		"runs.json":                       FormatJSON,
		"export.txt":                      FormatCSV,
		"https://host/a/b.csv?download=1": FormatCSV,
		"https://x.sharepoint.com/:x:/g/": FormatXLSX,
		"noext":                           FormatXLSX,
	}
	for name, want := range tests {
		assert.Equal(t, want, DetectFormat(name), name)
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("ods")
	require.Error(t, err)
}

func TestLoader_LocalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promo.csv")
	require.NoError(t, os.WriteFile(path, []byte("titulo\nDocumento\nC3\n"), 0o644))

	l := &Loader{}
	ds, err := l.Load(context.Background(), Source{Path: path, HeaderRow: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"Documento"}, ds.Schema())
	assert.Equal(t, 1, ds.Len())
}

func TestLoader_URLWinsOverPath(t *testing.T) {
	stub := &stubFetcher{body: "ID\nA1\nB2\n"}
	l := &Loader{HTTP: stub}

	ds, err := l.Load(context.Background(), Source{
		URL:  "https://x.sharepoint.com/sites/reg/sw11.csv",
		Path: "/does/not/exist.xlsx",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, []string{"https://x.sharepoint.com/sites/reg/sw11.csv?download=1"}, stub.urls)
}

func TestLoader_FTPScheme(t *testing.T) {
	stub := &stubFetcher{body: "ID\nA1\n"}
	l := &Loader{FTP: stub}

	_, err := l.Load(context.Background(), Source{URL: "ftp://files.example.edu/sw11.csv"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ftp://files.example.edu/sw11.csv"}, stub.urls, "ftp links are not rewritten")
}

func TestLoader_Errors(t *testing.T) {
	l := &Loader{}

	_, err := l.Load(context.Background(), Source{})
	assert.ErrorIs(t, err, ErrNoSource)

	_, err = l.Load(context.Background(), Source{URL: "s3://bucket/key.xlsx"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported url scheme")

	_, err = l.Load(context.Background(), Source{URL: "https://host/a.xlsx"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fetcher configured")

	_, err = l.Load(context.Background(), Source{Path: filepath.Join(t.TempDir(), "missing.xlsx")})
	require.Error(t, err)
}

func TestLoader_HTTPXLSX(t *testing.T) {
	ds := table.MustDataset([]string{"Cédula", "Nombre"}, [][]table.Value{
		{table.String("A1"), table.String("Ana")},
	})
	var workbook bytes.Buffer
	require.NoError(t, WriteXLSX(&workbook, "bduNIDAD", ds))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(workbook.Bytes())
	}))
	defer srv.Close()

	l := &Loader{HTTP: newTestFetcher()}
	got, err := l.Load(context.Background(), Source{URL: srv.URL + "/share/abc", Sheet: "bduNIDAD"})
	require.NoError(t, err)
	assert.True(t, ds.Equal(got))
}

func TestWrite_Formats(t *testing.T) {
	ds := table.MustDataset([]string{"a", "b"}, [][]table.Value{{table.String("1"), table.Null()}})

	var csvBuf, tsvBuf, xlsxBuf bytes.Buffer
	require.NoError(t, Write(&csvBuf, FormatCSV, "", ds))
	require.NoError(t, Write(&tsvBuf, FormatTSV, "", ds))
	require.NoError(t, Write(&xlsxBuf, FormatXLSX, "out", ds))

	assert.Equal(t, "a,b\n1,\n", csvBuf.String())
	assert.Equal(t, "a\tb\n1\t\n", tsvBuf.String())

	back, err := Parse(context.Background(), xlsxBuf.Bytes(), FormatXLSX, Source{Sheet: "out"})
	require.NoError(t, err)
	assert.True(t, ds.Equal(back))
}

func TestLoader_ZIPSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promo.zip")
	data := createTestZIP(t, zipEntry{"promo.tsv", "ID\tNombre\nA1\tAna\n"})
	require.NoError(t, os.WriteFile(path, data, 0o644))

	l := &Loader{}
	ds, err := l.Load(context.Background(), Source{Path: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Nombre"}, ds.Schema())
	assert.Equal(t, 1, ds.Len())
}

func TestLoader_ZIPSourceOverHTTP(t *testing.T) {
	data := createTestZIP(t, zipEntry{"sw11.csv", "ID\nA1\nB2\n"})
	stub := &stubFetcher{body: string(data)}
	l := &Loader{HTTP: stub}

	ds, err := l.Load(context.Background(), Source{URL: "https://host/exports/sw11.zip"})
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
}

func TestLoader_JSONSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promo.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"ID":"A1","Edad":30},{"ID":"B2"}]`), 0o644))

	l := &Loader{}
	ds, err := l.Load(context.Background(), Source{Path: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Edad"}, ds.Schema())
	v, _ := ds.Value(1, "Edad")
	assert.True(t, v.IsNull())
}

func TestWrite_JSON(t *testing.T) {
	ds := table.MustDataset([]string{"a"}, [][]table.Value{{table.Number(2)}})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, "", ds))
	assert.JSONEq(t, `{"columns":["a"],"rows":[[2]]}`, buf.String())
}
