// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/worldclim-extractor/internal/history"
	"github.com/pdiddy/worldclim-extractor/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past extraction runs",
	Long: `History reads the local run ledger. Every extract invocation records its
input, variable, resolution, window, archive and outcome there.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent extraction runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(context.Background(), queryOptsFromFlags(cmd))
	if err != nil {
		return err
	}
	return formatRuns(os.Stdout, runs)
}

func formatRuns(w io.Writer, runs []types.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tVARIABLE\tWINDOW\tROWS\tSTATUS\tINPUT\tDETAIL")
	for _, r := range runs {
		detail := r.OutputPath
		if r.Status == types.RunFailed {
			detail = r.Error
		}
		if len(detail) > 60 {
			detail = detail[:57] + "..."
		}
		fmt.Fprintf(tw, "%d\t%s\t%s/%s\t%d\t%d\t%s\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Variable, r.Resolution,
			r.Window, r.Rows, r.Status, r.InputPath, detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d runs\n", len(runs))
	return nil
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded runs as YAML or JSON",
	Long: `Export writes every recorded run (or those matching --variable and
--status) to stdout, or to --output when given.`,
	Args: cobra.NoArgs,
	RunE: runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) (err error) {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	opts := queryOptsFromFlags(cmd)
	switch strings.ToLower(format) {
	case "yaml", "":
		err = store.ExportYAML(context.Background(), w, opts)
	case "json":
		err = store.ExportJSON(context.Background(), w, opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err == nil && output != "" {
		printSuccess("exported runs to %s", output)
	}
	return err
}

// --- shared helpers ---

func openHistory() (*history.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return history.NewStore(cfg.History)
}

func queryOptsFromFlags(cmd *cobra.Command) history.QueryOptions {
	variable, _ := cmd.Flags().GetString("variable")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	return history.QueryOptions{
		Variable:   variable,
		Status:     types.RunStatus(strings.ToLower(status)),
		MaxResults: limit,
	}
}

func init() {
	historyCmd.PersistentFlags().String("variable", "", "only runs for this variable")
	historyCmd.PersistentFlags().String("status", "", "only runs with this status: succeeded or failed")

	historyListCmd.Flags().Int("limit", 0, "maximum runs to list (0 = use default)")

	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	historyExportCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyExportCmd)

	rootCmd.AddCommand(historyCmd)
}
