package fetcher

import (
	"fmt"
	"strings"

	"github.com/sells-group/reconcile-cli/internal/table"
)

// buildHeader turns a raw header row into distinct column names, width
// wide. Blank names become "Unnamed: <i>" and repeated names get a ".<n>"
// suffix, the way spreadsheet users see them in pandas-based tools.
func buildHeader(raw []string, width int) []string {
	names := make([]string, width)
	seen := make(map[string]bool, width)
	for i := range width {
		name := ""
		if i < len(raw) {
			name = strings.TrimPrefix(raw[i], "\ufeff")
		}
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if seen[name] {
			base := name
			for n := 1; seen[name]; n++ {
				name = fmt.Sprintf("%s.%d", base, n)
			}
		}
		seen[name] = true
		names[i] = name
	}
	return names
}

// blankRow reports whether every cell is null.
func blankRow(row []table.Value) bool {
	for _, v := range row {
		if !v.IsNull() {
			return false
		}
	}
	return true
}

// trimTrailingNulls drops null cells at the end of row.
func trimTrailingNulls(row []table.Value) []table.Value {
	n := len(row)
	for n > 0 && row[n-1].IsNull() {
		n--
	}
	return row[:n]
}

// assemble builds a dataset from a raw header and converted data rows.
func assemble(rawHeader []string, rows [][]table.Value) (*table.Dataset, error) {
	width := len(rawHeader)
	kept := make([][]table.Value, 0, len(rows))
	for _, r := range rows {
		if blankRow(r) {
			continue
		}
		r = trimTrailingNulls(r)
		if len(r) > width {
			width = len(r)
		}
		kept = append(kept, r)
	}
	return table.NewDataset(buildHeader(rawHeader, width), kept)
}
