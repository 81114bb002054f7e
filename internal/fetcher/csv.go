package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/reconcile-cli/internal/table"
)

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter  rune   // default ','
	Comment    rune   // comment character (0 = none)
	Charset    string // e.g. "windows-1252"; empty or "utf-8" reads as UTF-8
	HeaderRow  int    // 0-indexed row holding column names
	LazyQuotes bool
	TrimSpace  bool
}

// decodeReader wraps r with a decoder for the named charset.
func decodeReader(r io.Reader, charset string) (io.Reader, error) {
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "utf8") {
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: unknown charset %q", charset)
	}
	return enc.NewDecoder().Reader(r), nil
}

// StreamCSV reads CSV records and sends them to a channel. Both channels are
// closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		src, err := decodeReader(r, opts.Charset)
		if err != nil {
			errCh <- err
			return
		}

		reader := csv.NewReader(src)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadCSV parses CSV into a dataset. Rows before HeaderRow are skipped, empty
// fields become null and every other field is a string cell.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) (*table.Dataset, error) {
	rowCh, errCh := StreamCSV(ctx, r, opts)

	var header []string
	var rows [][]table.Value
	i := 0
	for rec := range rowCh {
		switch {
		case i < opts.HeaderRow:
		case i == opts.HeaderRow:
			header = rec
		default:
			row := make([]table.Value, len(rec))
			for j, field := range rec {
				if field != "" {
					row[j] = table.String(field)
				}
			}
			rows = append(rows, row)
		}
		i++
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	if header == nil {
		return nil, eris.Errorf("csv: header row %d out of range (%d rows)", opts.HeaderRow, i)
	}

	ds, err := assemble(header, rows)
	return ds, eris.Wrap(err, "csv: build dataset")
}

// WriteCSV writes ds with a header row. Null cells are empty fields.
func WriteCSV(w io.Writer, ds *table.Dataset, delimiter rune) error {
	cw := csv.NewWriter(w)
	if delimiter != 0 {
		cw.Comma = delimiter
	}
	if err := cw.Write(ds.Schema()); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	for i := range ds.Len() {
		row := ds.Row(i)
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = v.Text()
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrapf(err, "csv: write row %d", i)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "csv: flush")
}
