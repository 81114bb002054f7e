package main

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reconcile-cli/internal/fetcher"
	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/reconcile"
	"github.com/sells-group/reconcile-cli/internal/store"
	"github.com/sells-group/reconcile-cli/internal/table"
)

// Output file base names.
const (
	novelBaseName   = "nuevos_registros"
	updatedBaseName = "sw11_actualizado"
)

var (
	reconcileRef          sourceFlags
	reconcileInc          sourceFlags
	reconcileMap          mappingFlags
	reconcileOutDir       string
	reconcileOutFormat    string
	reconcileDryRun       bool
	reconcileSaveTemplate string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Append incoming records missing from the reference",
	Long: "Loads both sources concurrently, resolves the column mapping, finds incoming " +
		"rows whose key is absent from the reference and writes them (" + novelBaseName + ") " +
		"together with the updated reference (" + updatedBaseName + ").",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		refSrc, err := resolveSource(cfg.Reference, reconcileRef)
		if err != nil {
			return err
		}
		incSrc, err := resolveSource(cfg.Incoming, reconcileInc)
		if err != nil {
			return err
		}

		outDir := cfg.Output.Dir
		if reconcileOutDir != "" {
			outDir = reconcileOutDir
		}
		outFormat := cfg.Output.Format
		if reconcileOutFormat != "" {
			outFormat = reconcileOutFormat
		}
		format, err := fetcher.ParseFormat(outFormat)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st == nil && reconcileSaveTemplate != "" {
			return errNoStore
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		ref, inc, err := loadBoth(ctx, newLoader(), refSrc, incSrc)
		if err != nil {
			return err
		}

		m, err := baseMapping(ctx, st, ref.Schema(), inc.Schema(), reconcileMap)
		if err != nil {
			return err
		}
		m, err = applyOverrides(m, reconcileMap)
		if err != nil {
			return err
		}

		run, err := runReconcile(ctx, st, reconcileJob{
			ref:     ref,
			inc:     inc,
			mapping: m,
			refSrc:  refSrc,
			incSrc:  incSrc,
			outDir:  outDir,
			format:  format,
			dryRun:  reconcileDryRun,
			saveAs:  reconcileSaveTemplate,
		})
		if err != nil {
			return err
		}

		formatMapping(os.Stdout, ref.Schema(), run.Mapping)
		formatStats(os.Stdout, run)
		return nil
	},
}

type reconcileJob struct {
	ref, inc       *table.Dataset
	mapping        reconcile.Mapping
	refSrc, incSrc fetcher.Source
	outDir         string
	format         fetcher.Format
	dryRun         bool
	saveAs         string
}

// runReconcile reconciles, writes outputs and records the run. The store may
// be nil.
func runReconcile(ctx context.Context, st store.Store, job reconcileJob) (*model.Run, error) {
	if job.saveAs != "" && st == nil {
		return nil, errNoStore
	}

	res, err := reconcile.Reconcile(job.ref, job.inc, job.mapping)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile")
	}
	stats := res.Stats()

	zap.L().Info("reconcile complete",
		zap.String("key_reference", res.Key.Reference),
		zap.String("key_incoming", res.Key.Incoming),
		zap.Int("reference_rows", stats.ReferenceRows),
		zap.Int("incoming_rows", stats.IncomingRows),
		zap.Int("novel", stats.Novel),
		zap.Int("matched", stats.Matched),
		zap.Int("excluded_null_keys", stats.ExcludedNullKeys),
		zap.Int("reference_null_keys", stats.ReferenceNullKeys),
		zap.Int("updated_rows", stats.UpdatedRows),
		zap.Bool("dry_run", job.dryRun),
	)
	if stats.ExcludedNullKeys > 0 {
		zap.L().Warn("incoming rows with an empty key were skipped; review them manually",
			zap.String("key_incoming", res.Key.Incoming),
			zap.Int("count", stats.ExcludedNullKeys),
		)
	}

	var outputs []string
	if !job.dryRun && stats.Novel > 0 {
		outputs, err = writeOutputs(job.outDir, job.format, job.refSrc.Sheet, job.incSrc.Sheet, res)
		if err != nil {
			return nil, err
		}
	}

	run := &model.Run{
		Reference: job.refSrc.Location(),
		Incoming:  job.incSrc.Location(),
		Key:       res.Key,
		Mapping:   res.Mapping,
		Stats:     stats,
		Status:    model.StatusFor(stats, job.dryRun),
		Outputs:   outputs,
	}

	if st == nil {
		return run, nil
	}

	if job.saveAs != "" {
		if _, err := st.SaveTemplate(ctx, job.saveAs, res.Mapping); err != nil {
			return nil, eris.Wrap(err, "save template")
		}
		zap.L().Info("mapping template saved", zap.String("name", job.saveAs))
	}

	recorded, err := st.CreateRun(ctx, *run)
	if err != nil {
		// History is best effort once outputs exist.
		zap.L().Error("record run failed", zap.Error(err))
		return run, nil
	}
	zap.L().Info("run recorded", zap.String("run_id", recorded.ID))
	return recorded, nil
}

// writeOutputs writes the novel rows in the incoming layout and the updated
// reference. It returns the written paths.
func writeOutputs(dir string, format fetcher.Format, refSheet, incSheet string, res *reconcile.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "create output dir %s", dir)
	}

	files := []struct {
		base  string
		sheet string
		ds    *table.Dataset
	}{
		{novelBaseName, incSheet, res.Novel.Rows},
		{updatedBaseName, refSheet, res.Updated},
	}

	var paths []string
	for _, file := range files {
		path := filepath.Join(dir, file.base+"."+string(format))
		if err := writeDataset(path, format, file.sheet, file.ds); err != nil {
			return paths, err
		}
		zap.L().Info("output written", zap.String("path", path), zap.Int("rows", file.ds.Len()))
		paths = append(paths, path)
	}
	return paths, nil
}

func writeDataset(path string, format fetcher.Format, sheet string, ds *table.Dataset) error {
	return writeFile(path, func(w io.Writer) error {
		return fetcher.Write(w, format, sheet, ds)
	})
}

func init() {
	addSourceFlags(reconcileCmd, "reference", &reconcileRef)
	addSourceFlags(reconcileCmd, "incoming", &reconcileInc)

	f := reconcileCmd.Flags()
	f.StringVar(&reconcileMap.templateFile, "template", "", "read the mapping from a mapping template spreadsheet")
	f.StringVar(&reconcileMap.mappingFile, "mapping-file", "", "read the mapping from a YAML mapping file")
	f.StringVar(&reconcileMap.useTemplate, "use-template", "", "use a mapping template saved in the store")
	f.StringArrayVar(&reconcileMap.maps, "map", nil, "override one pair as REFERENCE=INCOMING (repeatable)")
	f.StringArrayVar(&reconcileMap.unmaps, "unmap", nil, "drop the pair for a reference column (repeatable)")
	f.StringVar(&reconcileMap.key, "key", "", "reference column to use as key (must be mapped)")
	f.StringVar(&reconcileOutDir, "output-dir", "", "output directory (default from config)")
	f.StringVar(&reconcileOutFormat, "output-format", "", "output format: xlsx, csv, tsv or json (default from config)")
	f.BoolVar(&reconcileDryRun, "dry-run", false, "compute and report without writing files")
	f.StringVar(&reconcileSaveTemplate, "save-template", "", "save the final mapping in the store under this name")
	rootCmd.AddCommand(reconcileCmd)
}
