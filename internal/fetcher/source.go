package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/table"
)

// Format is a tabular file format.
type Format string

// Supported formats.
const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatJSON Format = "json"
)

// ErrNoSource is returned when a Source has neither URL nor Path.
var ErrNoSource = eris.New("fetcher: source has no url or path")

// Source locates one spreadsheet and says how to read it.
type Source struct {
	URL       string `json:"url,omitempty"`
	Path      string `json:"path,omitempty"`
	Sheet     string `json:"sheet,omitempty"`
	HeaderRow int    `json:"header_row"`
	Charset   string `json:"charset,omitempty"`
	Format    Format `json:"format,omitempty"`
}

// Location returns the URL if set, otherwise the path.
func (s Source) Location() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Path
}

// DetectFormat infers the format from a file name or URL path. Unknown
// extensions are read as XLSX.
func DetectFormat(name string) Format {
	if u, err := url.Parse(name); err == nil && u.Scheme != "" {
		name = u.Path
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV
	case ".tsv":
		return FormatTSV
	case ".json":
		return FormatJSON
	default:
		return FormatXLSX
	}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatXLSX, FormatCSV, FormatTSV, FormatJSON:
		return f, nil
	default:
		return "", eris.Errorf("fetcher: unsupported format %q", s)
	}
}

// Loader reads sources through the fetcher matching their URL scheme.
type Loader struct {
	HTTP Fetcher
	FTP  Fetcher
}

// Load retrieves and parses src. A URL takes precedence over a local path.
// A .zip source must hold exactly one spreadsheet, whose name then decides
// the format.
func (l *Loader) Load(ctx context.Context, src Source) (*table.Dataset, error) {
	data, err := l.read(ctx, src)
	if err != nil {
		return nil, err
	}

	name := src.Location()
	if isZIPName(name) {
		name, data, err = unzipSpreadsheet(data)
		if err != nil {
			return nil, err
		}
	}

	format := src.Format
	if format == "" {
		format = DetectFormat(name)
	}
	return Parse(ctx, data, format, src)
}

func (l *Loader) read(ctx context.Context, src Source) ([]byte, error) {
	if src.URL == "" {
		if src.Path == "" {
			return nil, ErrNoSource
		}
		data, err := os.ReadFile(src.Path)
		return data, eris.Wrapf(err, "fetcher: read %s", src.Path)
	}

	u, err := url.Parse(src.URL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse source url")
	}

	var f Fetcher
	target := src.URL
	switch u.Scheme {
	case "http", "https":
		f = l.HTTP
		target = SharedLink(src.URL)
	case "ftp":
		f = l.FTP
	default:
		return nil, eris.Errorf("fetcher: unsupported url scheme %q", u.Scheme)
	}
	if f == nil {
		return nil, eris.Errorf("fetcher: no fetcher configured for %s", u.Scheme)
	}

	body, err := f.Download(ctx, target)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: download %s", u.Redacted())
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	return data, eris.Wrap(err, "fetcher: read body")
}

// Parse decodes already-retrieved bytes in the given format using src's
// sheet, header row and charset settings.
func Parse(ctx context.Context, data []byte, format Format, src Source) (*table.Dataset, error) {
	switch format {
	case FormatCSV, FormatTSV:
		opts := CSVOptions{HeaderRow: src.HeaderRow, Charset: src.Charset, LazyQuotes: true}
		if format == FormatTSV {
			opts.Delimiter = '\t'
		}
		return ReadCSV(ctx, bytes.NewReader(data), opts)
	case FormatJSON:
		return ReadJSON(ctx, bytes.NewReader(data))
	default:
		return ReadXLSX(data, XLSXOptions{SheetName: src.Sheet, HeaderRow: src.HeaderRow})
	}
}

// Write encodes ds in the given format.
func Write(w io.Writer, format Format, sheet string, ds *table.Dataset) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, ds, ',')
	case FormatTSV:
		return WriteCSV(w, ds, '\t')
	case FormatJSON:
		return WriteJSON(w, ds)
	default:
		return WriteXLSX(w, sheet, ds)
	}
}
