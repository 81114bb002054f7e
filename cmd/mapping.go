package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/fetcher"
	"github.com/sells-group/reconcile-cli/internal/reconcile"
	"github.com/sells-group/reconcile-cli/internal/store"
)

// mappingFlags selects where the base mapping comes from and how it is
// overridden.
type mappingFlags struct {
	templateFile string
	mappingFile  string
	useTemplate  string
	maps         []string
	unmaps       []string
	key          string
}

// baseMapping returns the mapping before overrides: a template spreadsheet,
// a YAML mapping file, a stored template, or the name-based suggestion. At
// most one explicit source may be given.
func baseMapping(ctx context.Context, st store.Store, refColumns, incColumns []string, f mappingFlags) (reconcile.Mapping, error) {
	given := 0
	for _, s := range []string{f.templateFile, f.mappingFile, f.useTemplate} {
		if s != "" {
			given++
		}
	}
	if given > 1 {
		return reconcile.Mapping{}, eris.New("use only one of --template, --mapping-file and --use-template")
	}

	switch {
	case f.templateFile != "":
		data, err := os.ReadFile(f.templateFile)
		if err != nil {
			return reconcile.Mapping{}, eris.Wrapf(err, "read template %s", f.templateFile)
		}
		ds, err := fetcher.Parse(ctx, data, fetcher.DetectFormat(f.templateFile), fetcher.Source{})
		if err != nil {
			return reconcile.Mapping{}, eris.Wrapf(err, "parse template %s", f.templateFile)
		}
		return reconcile.MappingFromTemplate(ds)

	case f.mappingFile != "":
		file, err := os.Open(f.mappingFile)
		if err != nil {
			return reconcile.Mapping{}, eris.Wrapf(err, "open mapping file %s", f.mappingFile)
		}
		defer file.Close() //nolint:errcheck
		return reconcile.ReadMappingYAML(file)

	case f.useTemplate != "":
		if st == nil {
			return reconcile.Mapping{}, eris.New("--use-template requires a store (store.driver is none)")
		}
		tpl, err := st.GetTemplate(ctx, f.useTemplate)
		if err != nil {
			return reconcile.Mapping{}, err
		}
		return tpl.Mapping, nil

	default:
		return reconcile.SuggestMapping(refColumns, incColumns), nil
	}
}

// applyOverrides applies --map, --unmap and --key in that order.
func applyOverrides(m reconcile.Mapping, f mappingFlags) (reconcile.Mapping, error) {
	for _, raw := range f.maps {
		ref, inc, err := parseMapFlag(raw)
		if err != nil {
			return m, err
		}
		m = m.With(ref, inc)
	}
	for _, ref := range f.unmaps {
		m = m.Without(ref)
	}
	if f.key != "" {
		keyed, err := m.WithKey(f.key)
		if err != nil {
			return m, err
		}
		m = keyed
	}
	return m, nil
}

// parseMapFlag splits "REF=INC". Column names may contain '=' after the
// first one and are kept verbatim, spaces included.
func parseMapFlag(raw string) (ref, inc string, err error) {
	ref, inc, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(ref) == "" || strings.TrimSpace(inc) == "" {
		return "", "", eris.Errorf("invalid --map %q: want REFERENCE=INCOMING", raw)
	}
	return ref, inc, nil
}

// formatMapping writes every reference column with its mapped incoming
// column. The key pair is marked.
func formatMapping(out io.Writer, refColumns []string, m reconcile.Mapping) {
	key, _ := m.KeyPair()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "REFERENCE\tINCOMING\tKEY")
	for _, col := range refColumns {
		inc, ok := m.Get(col)
		if !ok {
			inc = "-"
		}
		marker := ""
		if ok && col == key.Reference {
			marker = "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", col, inc, marker)
	}
	_ = w.Flush()
}
