package fetcher

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// maxZIPEntryBytes bounds the size of an extracted spreadsheet.
const maxZIPEntryBytes = 512 << 20

// isZIPName reports whether name (a path or URL) ends in .zip.
func isZIPName(name string) bool {
	return strings.EqualFold(path.Ext(stripQuery(name)), ".zip")
}

func stripQuery(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		return name[:i]
	}
	return name
}

// unzipSpreadsheet returns the name and contents of the single spreadsheet
// inside a ZIP archive. Directories and macOS metadata entries are ignored.
func unzipSpreadsheet(data []byte) (string, []byte, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, eris.Wrap(err, "zip: open archive")
	}

	var files []*zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") || strings.HasPrefix(path.Base(f.Name), ".") {
			continue
		}
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".xlsx", ".csv", ".tsv", ".txt", ".json":
			files = append(files, f)
		}
	}
	if len(files) != 1 {
		return "", nil, eris.Errorf("zip: expected exactly 1 spreadsheet, got %d", len(files))
	}

	f := files[0]
	rc, err := f.Open()
	if err != nil {
		return "", nil, eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := io.ReadAll(io.LimitReader(rc, maxZIPEntryBytes+1))
	if err != nil {
		return "", nil, eris.Wrapf(err, "zip: read %s", f.Name)
	}
	if len(out) > maxZIPEntryBytes {
		return "", nil, eris.Errorf("zip: entry %s exceeds %d bytes", f.Name, maxZIPEntryBytes)
	}
	return f.Name, out, nil
}
