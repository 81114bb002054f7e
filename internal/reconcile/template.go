package reconcile

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/table"
)

// Mapping template column headers.
const (
	TemplateReferenceColumn = "Columna SW11"
	TemplateIncomingColumn  = "Columna Promoción Sugerida"
)

// MappingTemplate lists every reference column with its mapped incoming
// column, or null when unmapped. The result can be exported, edited by hand
// and read back with MappingFromTemplate.
func MappingTemplate(refSchema []string, m Mapping) *table.Dataset {
	rows := make([][]table.Value, len(refSchema))
	for i, col := range refSchema {
		inc := table.Null()
		if c, ok := m.Get(col); ok {
			inc = table.String(c)
		}
		rows[i] = []table.Value{table.String(col), inc}
	}
	return table.MustDataset([]string{TemplateReferenceColumn, TemplateIncomingColumn}, rows)
}

// MappingFromTemplate reads a mapping template back. Rows with a blank
// incoming cell are unmapped. Row order becomes mapping order. Column names
// are kept as written, surrounding spaces included, so they match the
// headers they were exported from.
func MappingFromTemplate(ds *table.Dataset) (Mapping, error) {
	for _, col := range []string{TemplateReferenceColumn, TemplateIncomingColumn} {
		if !ds.HasColumn(col) {
			return Mapping{}, eris.Errorf("reconcile: template missing column %q", col)
		}
	}

	var m Mapping
	for i := range ds.Len() {
		refV, _ := ds.Value(i, TemplateReferenceColumn)
		incV, _ := ds.Value(i, TemplateIncomingColumn)
		ref, inc := refV.Text(), incV.Text()
		if strings.TrimSpace(ref) == "" || strings.TrimSpace(inc) == "" {
			continue
		}
		m = m.With(ref, inc)
	}
	return m, nil
}
