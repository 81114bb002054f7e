package main

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/reconcile-cli/internal/config"
	"github.com/sells-group/reconcile-cli/internal/fetcher"
	"github.com/sells-group/reconcile-cli/internal/table"
)

// sourceFlags holds per-invocation overrides for one side's source.
type sourceFlags struct {
	location  string
	sheet     string
	headerRow int
	format    string
}

func addSourceFlags(cmd *cobra.Command, side string, f *sourceFlags) {
	cmd.Flags().StringVar(&f.location, side, "", side+" spreadsheet path or URL (default from config)")
	cmd.Flags().StringVar(&f.sheet, side+"-sheet", "", side+" sheet name (default from config)")
	cmd.Flags().IntVar(&f.headerRow, side+"-header", -1, side+" header row, 0-indexed (default from config)")
	cmd.Flags().StringVar(&f.format, side+"-format", "", side+" format: xlsx, csv, tsv or json (default from extension)")
}

// resolveSource merges config with flag overrides. A location given on the
// command line replaces both url and path from config.
func resolveSource(sc config.SourceConfig, f sourceFlags) (fetcher.Source, error) {
	src := fetcher.Source{
		URL:       sc.URL,
		Path:      sc.Path,
		Sheet:     sc.Sheet,
		HeaderRow: sc.HeaderRow,
		Charset:   sc.Charset,
	}
	if f.location != "" {
		src.URL, src.Path = "", ""
		if isURL(f.location) {
			src.URL = f.location
		} else {
			src.Path = f.location
		}
	}
	if f.sheet != "" {
		src.Sheet = f.sheet
	}
	if f.headerRow >= 0 {
		src.HeaderRow = f.headerRow
	}

	format := sc.Format
	if f.format != "" {
		format = f.format
	}
	if format != "" {
		parsed, err := fetcher.ParseFormat(format)
		if err != nil {
			return src, err
		}
		src.Format = parsed
	}
	return src, nil
}

func isURL(s string) bool {
	for _, prefix := range []string{"http://", "https://", "ftp://"} {
		if strings.HasPrefix(strings.ToLower(s), prefix) {
			return true
		}
	}
	return false
}

func newLoader() *fetcher.Loader {
	timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second
	return &fetcher.Loader{
		HTTP: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    timeout,
			MaxRetries: cfg.Fetch.MaxRetries,
			RatePerSec: cfg.Fetch.RatePerSec,
		}),
		FTP: fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout:    timeout,
			MaxRetries: cfg.Fetch.MaxRetries,
		}),
	}
}

// loadBoth fetches and parses the reference and incoming sources
// concurrently. Both must succeed.
func loadBoth(ctx context.Context, loader *fetcher.Loader, refSrc, incSrc fetcher.Source) (ref, inc *table.Dataset, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ds, err := loadOne(gctx, loader, "reference", refSrc)
		ref = ds
		return err
	})
	g.Go(func() error {
		ds, err := loadOne(gctx, loader, "incoming", incSrc)
		inc = ds
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return ref, inc, nil
}

func loadOne(ctx context.Context, loader *fetcher.Loader, side string, src fetcher.Source) (*table.Dataset, error) {
	start := time.Now()
	ds, err := loader.Load(ctx, src)
	if err != nil {
		zap.L().Error("source load failed", zap.String("side", side), zap.Error(err))
		return nil, err
	}
	zap.L().Info("source loaded",
		zap.String("side", side),
		zap.String("location", src.Location()),
		zap.String("sheet", src.Sheet),
		zap.Int("columns", ds.Width()),
		zap.Int("rows", ds.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ds, nil
}
