package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect reconciliation run history",
	Long:  "Commands for listing, viewing, and summarizing reconciliation runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reconciliation runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		reference, _ := cmd.Flags().GetString("reference")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status:    model.RunStatus(status),
			Reference: reference,
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, computeRunStats(runs))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (complete, dry_run, no_change)")
	runsListCmd.Flags().String("reference", "", "filter by reference location")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total            int
	Complete         int
	DryRun           int
	NoChange         int
	NovelRows        int
	ExcludedNullKeys int
}

func computeRunStats(runs []model.Run) runStats {
	var s runStats
	s.Total = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			s.Complete++
			s.NovelRows += r.Stats.Novel
		case model.RunStatusDryRun:
			s.DryRun++
		case model.RunStatusNoChange:
			s.NoChange++
		}
		s.ExcludedNullKeys += r.Stats.ExcludedNullKeys
	}
	return s
}

func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "Dry runs:\t%d\n", s.DryRun)
	_, _ = fmt.Fprintf(w, "No change:\t%d\n", s.NoChange)
	_, _ = fmt.Fprintf(w, "Rows appended:\t%d\n", s.NovelRows)
	_, _ = fmt.Fprintf(w, "Empty-key rows skipped:\t%d\n", s.ExcludedNullKeys)
	_ = w.Flush()
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tREFERENCE\tKEY\tSTATUS\tNOVEL\tSKIPPED\tCREATED")
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			id,
			truncate(r.Reference, 40),
			r.Key.Reference+"="+r.Key.Incoming,
			r.Status,
			r.Stats.Novel,
			r.Stats.ExcludedNullKeys,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatStats writes the outcome of a single reconciliation.
func formatStats(out io.Writer, r *model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Key:\t%s = %s\n", r.Key.Reference, r.Key.Incoming)
	_, _ = fmt.Fprintf(w, "Reference rows:\t%d\n", r.Stats.ReferenceRows)
	_, _ = fmt.Fprintf(w, "Incoming rows:\t%d\n", r.Stats.IncomingRows)
	_, _ = fmt.Fprintf(w, "Already present:\t%d\n", r.Stats.Matched)
	_, _ = fmt.Fprintf(w, "New records:\t%d\n", r.Stats.Novel)
	_, _ = fmt.Fprintf(w, "Skipped (empty key):\t%d\n", r.Stats.ExcludedNullKeys)
	_, _ = fmt.Fprintf(w, "Updated reference rows:\t%d\n", r.Stats.UpdatedRows)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	for _, p := range r.Outputs {
		_, _ = fmt.Fprintf(w, "Wrote:\t%s\n", p)
	}
	if r.ID != "" {
		_, _ = fmt.Fprintf(w, "Run ID:\t%s\n", r.ID)
	}
	_ = w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
