package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/fetcher"
	"github.com/sells-group/reconcile-cli/internal/reconcile"
	"github.com/sells-group/reconcile-cli/internal/store"
)

var (
	suggestRef          sourceFlags
	suggestInc          sourceFlags
	suggestTemplateOut  string
	suggestYAMLOut      string
	suggestSaveTemplate string
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest a column mapping between the reference and incoming sheets",
	Long: "Loads both sources and pairs every reference column with the first incoming " +
		"column whose name matches it. The result can be exported as a mapping template " +
		"spreadsheet, a YAML mapping file, or saved in the store for later runs.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		refSrc, err := resolveSource(cfg.Reference, suggestRef)
		if err != nil {
			return err
		}
		incSrc, err := resolveSource(cfg.Incoming, suggestInc)
		if err != nil {
			return err
		}

		var st store.Store
		if suggestSaveTemplate != "" {
			st, err = requireStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		ref, inc, err := loadBoth(ctx, newLoader(), refSrc, incSrc)
		if err != nil {
			return err
		}

		m := reconcile.SuggestMapping(ref.Schema(), inc.Schema())
		zap.L().Info("mapping suggested",
			zap.Int("reference_columns", ref.Width()),
			zap.Int("mapped", m.Len()),
		)
		formatMapping(os.Stdout, ref.Schema(), m)

		if suggestTemplateOut != "" {
			if err := writeTemplate(suggestTemplateOut, ref.Schema(), m); err != nil {
				return err
			}
			zap.L().Info("mapping template written", zap.String("path", suggestTemplateOut))
		}

		if suggestYAMLOut != "" {
			err := writeFile(suggestYAMLOut, func(w io.Writer) error {
				return reconcile.WriteMappingYAML(w, m)
			})
			if err != nil {
				return err
			}
			zap.L().Info("mapping file written", zap.String("path", suggestYAMLOut))
		}

		if st != nil {
			if _, err := st.SaveTemplate(ctx, suggestSaveTemplate, m); err != nil {
				return eris.Wrap(err, "save template")
			}
			zap.L().Info("mapping template saved", zap.String("name", suggestSaveTemplate))
		}

		return nil
	},
}

func writeTemplate(path string, refSchema []string, m reconcile.Mapping) error {
	ds := reconcile.MappingTemplate(refSchema, m)
	return writeFile(path, func(w io.Writer) error {
		return fetcher.Write(w, fetcher.DetectFormat(path), "Mapeo", ds)
	})
}

// writeFile creates path, runs write and reports the first error, including
// one from closing the file.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "write %s", path)
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func init() {
	addSourceFlags(suggestCmd, "reference", &suggestRef)
	addSourceFlags(suggestCmd, "incoming", &suggestInc)
	suggestCmd.Flags().StringVar(&suggestTemplateOut, "template", "", "write the mapping template spreadsheet to this path (e.g. plantilla_mapeo_sw11.xlsx)")
	suggestCmd.Flags().StringVar(&suggestYAMLOut, "yaml", "", "write the mapping as a YAML mapping file")
	suggestCmd.Flags().StringVar(&suggestSaveTemplate, "save-template", "", "save the suggestion in the store under this name")
	rootCmd.AddCommand(suggestCmd)
}
