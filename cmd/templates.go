package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/reconcile-cli/internal/reconcile"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage saved mapping templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved mapping templates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.ListTemplates(ctx)
		if err != nil {
			return eris.Wrap(err, "templates list")
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No templates found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tPAIRS\tKEY\tUPDATED")
		for _, t := range list {
			key, _ := t.Mapping.KeyPair()
			_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", t.Name, t.Mapping.Len(), key.Reference, t.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var templatesExportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "Print a saved mapping template as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		t, err := st.GetTemplate(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "templates export")
		}
		return reconcile.WriteMappingYAML(os.Stdout, t.Mapping)
	},
}

var templatesImportCmd = &cobra.Command{
	Use:   "import <name> <mapping.yaml>",
	Short: "Save a YAML mapping file as a named template",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, err := os.Open(args[1])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[1])
		}
		defer f.Close() //nolint:errcheck

		m, err := reconcile.ReadMappingYAML(f)
		if err != nil {
			return err
		}
		if m.IsEmpty() {
			return reconcile.ErrEmptyMapping
		}

		st, err := requireStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := st.SaveTemplate(ctx, args[0], m); err != nil {
			return eris.Wrap(err, "templates import")
		}
		fmt.Fprintf(os.Stderr, "Saved template %q with %d pairs.\n", args[0], m.Len())
		return nil
	},
}

func init() {
	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesExportCmd)
	templatesCmd.AddCommand(templatesImportCmd)
	rootCmd.AddCommand(templatesCmd)
}
