package fetcher

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/table"
)

// DecodeJSONArray decodes a JSON array streaming, sending each element to a channel.
// Both channels are closed when processing completes.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)

		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			errCh <- eris.Errorf("json: expected '[', got %v", tok)
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}

			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "json: decode element")
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		if _, err := decoder.Token(); err != nil && err != io.EOF {
			errCh <- eris.Wrap(err, "json: read closing token")
		}
	}()

	return outCh, errCh
}

// jsonRecord is one flat JSON object with its key order preserved.
type jsonRecord struct {
	keys []string
	vals map[string]table.Value
}

func (rec *jsonRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return eris.Wrap(err, "json: read record")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return eris.Errorf("json: expected object, got %v", tok)
	}

	rec.vals = make(map[string]table.Value)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "json: read key")
		}
		key, _ := tok.(string)

		var v table.Value
		if err := dec.Decode(&v); err != nil {
			return eris.Wrapf(err, "json: field %q", key)
		}
		if _, dup := rec.vals[key]; !dup {
			rec.keys = append(rec.keys, key)
		}
		rec.vals[key] = v
	}
	return nil
}

// ReadJSON parses either the dataset form {"columns": [...], "rows": [[...]]}
// or an array of flat objects. For objects, columns follow the order in
// which keys are first seen and missing keys are null.
func ReadJSON(ctx context.Context, r io.Reader) (*table.Dataset, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, eris.Wrap(err, "json: read input")
	}

	if first == '{' {
		var ds table.Dataset
		if err := json.NewDecoder(br).Decode(&ds); err != nil {
			return nil, eris.Wrap(err, "json: decode dataset")
		}
		return &ds, nil
	}

	recCh, errCh := DecodeJSONArray[jsonRecord](ctx, br)

	var columns []string
	seen := make(map[string]bool)
	var records []map[string]table.Value
	for rec := range recCh {
		for _, k := range rec.keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
		records = append(records, rec.vals)
	}
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}

	ds, err := table.FromRecords(columns, records)
	return ds, eris.Wrap(err, "json: build dataset")
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// WriteJSON writes ds in the dataset form read by ReadJSON.
func WriteJSON(w io.Writer, ds *table.Dataset) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(ds), "json: encode dataset")
}
