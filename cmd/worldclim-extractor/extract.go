// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/worldclim-extractor/internal/extract"
	"github.com/pdiddy/worldclim-extractor/internal/gdal"
	"github.com/pdiddy/worldclim-extractor/internal/history"
	"github.com/pdiddy/worldclim-extractor/internal/secrets"
	"github.com/pdiddy/worldclim-extractor/internal/table"
	"github.com/pdiddy/worldclim-extractor/internal/vsi"
	"github.com/pdiddy/worldclim-extractor/internal/worldclim"
	"github.com/pdiddy/worldclim-extractor/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract <input.csv|input.xlsx>",
	Short: "Add WorldClim layer values to a coordinate table",
	Long: `Extract reads a CSV or Excel table, samples every layer of the chosen
variable at each row's coordinates, and writes the table with one new
column per layer, named {variable}_{resolution}_{index}.

With --window N (odd, >= 3) each value is the mean of the N×N pixel block
centred on the coordinate's pixel instead of the single pixel.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

// extractOptions are the per-invocation flags that have no config key.
type extractOptions struct {
	input      string
	output     string
	format     table.Format
	variable   worldclim.Variable
	resolution worldclim.Resolution
	window     int
}

func extractOptionsFromFlags(cmd *cobra.Command, input string) (extractOptions, error) {
	opts := extractOptions{input: input}

	varFlag, _ := cmd.Flags().GetString("variable")
	v, err := worldclim.ParseVariable(varFlag)
	if err != nil {
		return opts, err
	}
	resFlag, _ := cmd.Flags().GetString("resolution")
	r, err := worldclim.ParseResolution(resFlag)
	if err != nil {
		return opts, err
	}
	opts.variable, opts.resolution = v, r
	opts.window, _ = cmd.Flags().GetInt("window")

	opts.output, _ = cmd.Flags().GetString("output")
	formatFlag, _ := cmd.Flags().GetString("format")
	switch {
	case formatFlag != "":
		if opts.format, err = table.ParseFormat(formatFlag); err != nil {
			return opts, err
		}
	case opts.output != "":
		if opts.format, err = table.FormatFor(opts.output); err != nil {
			return opts, err
		}
	default:
		if opts.format, err = table.FormatFor(input); err != nil {
			return opts, err
		}
	}
	if opts.output == "" {
		opts.output = defaultOutputPath(input, opts.variable, opts.resolution, opts.format)
	}
	return opts, nil
}

// defaultOutputPath places the result next to the input:
// sites.csv → sites_tmin_10m.csv.
func defaultOutputPath(input string, v worldclim.Variable, r worldclim.Resolution, f table.Format) string {
	stem := strings.TrimSuffix(input, filepath.Ext(input))
	return fmt.Sprintf("%s_%s_%s.%s", stem, v, r, f)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := extractOptionsFromFlags(cmd, args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	run := types.Run{
		StartedAt:  time.Now(),
		InputPath:  opts.input,
		Variable:   string(opts.variable),
		Resolution: string(opts.resolution),
		Window:     opts.window,
	}

	out, err := extractTable(ctx, cfg, opts, &run)
	run.FinishedAt = time.Now()
	if err != nil {
		run.Status, run.Error = types.RunFailed, err.Error()
	} else {
		run.Status, run.OutputPath = types.RunSucceeded, opts.output
		run.Rows, run.Columns = out.Len(), out.Columns()
	}
	recordRun(ctx, cfg.History, run)
	if err != nil {
		return err
	}

	printSuccess("wrote %d rows to %s in %s", out.Len(), opts.output, run.Duration().Round(time.Millisecond))
	fmt.Fprintln(os.Stdout)
	return writePreview(os.Stdout, out, previewRows)
}

// extractTable runs one extraction and writes its output. It fills in the
// archive URL of run as soon as it is known.
func extractTable(ctx context.Context, cfg types.AppConfig, opts extractOptions, run *types.Run) (*table.Table, error) {
	in, err := table.Read(opts.input)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", opts.input, err)
	}

	vcfg := vsi.ConfigFrom(cfg.Extraction.Remote)
	if dir := cfg.Extraction.Remote.HeadersDir; dir != "" {
		if vcfg.Header, err = secrets.Headers(dir, log); err != nil {
			return nil, err
		}
	}
	env := vsi.NewEnv(vcfg, nil)
	ex, err := extract.New(gdal.Opener{Env: env}, cfg.Extraction, log)
	if err != nil {
		return nil, err
	}
	ex.OnProgress = func(p extract.Progress) {
		switch p.Stage {
		case extract.LayerStarted:
			printInfo("[%2d/%d] %s", p.Position, p.Total, p.Column)
		case extract.LayerFailed:
			printFailure("[%2d/%d] %s: %v", p.Position, p.Total, p.Column, p.Err)
		}
	}

	req := extract.Request{
		LonColumn:  cfg.Extraction.LonColumn,
		LatColumn:  cfg.Extraction.LatColumn,
		Variable:   opts.variable,
		Resolution: opts.resolution,
		Window:     opts.window,
	}
	run.ArchiveURL = ex.ArchiveURL(req)
	printInfo("Using archive %s", run.ArchiveURL)

	out, err := ex.Extract(ctx, in, req)
	if err != nil {
		return nil, err
	}
	if err := table.Write(opts.output, opts.format, out); err != nil {
		return nil, fmt.Errorf("writing %s: %w", opts.output, err)
	}
	return out, nil
}

// recordRun stores run in the ledger. Ledger failures are reported but
// never fail the extraction.
func recordRun(ctx context.Context, cfg types.HistoryConfig, run types.Run) {
	if cfg.Disabled {
		return
	}
	store, err := history.NewStore(cfg)
	if err != nil {
		printWarn("run history unavailable: %v", err)
		return
	}
	defer store.Close()
	if _, err := store.Record(context.WithoutCancel(ctx), run); err != nil {
		printWarn("recording run: %v", err)
	}
}

func init() {
	extractCmd.Flags().String("lon-column", "Longitude", "name of the longitude column")
	extractCmd.Flags().String("lat-column", "Latitude", "name of the latitude column")
	extractCmd.Flags().String("variable", "", "WorldClim variable: "+joinVariables())
	extractCmd.Flags().String("resolution", "10m", "grid resolution: 30s, 2.5m, 5m, 10m")
	extractCmd.Flags().Int("window", 1, "focal window side in pixels (odd); 1 samples the single pixel")
	extractCmd.Flags().String("base-url", "", "root URL of the WorldClim archives")
	extractCmd.Flags().StringP("output", "o", "", "output file (default: <input>_<variable>_<resolution>.<format>)")
	extractCmd.Flags().String("format", "", "output format: csv or xlsx (default: from output extension)")
	extractCmd.Flags().Duration("timeout", 0, "timeout for each HTTP request (default 60s)")
	extractCmd.Flags().Bool("allow-even-window", false, "accept even window sizes with the window shifted up and left")
	extractCmd.MarkFlagRequired("variable")

	viper.BindPFlag("extraction.lon_column", extractCmd.Flags().Lookup("lon-column"))
	viper.BindPFlag("extraction.lat_column", extractCmd.Flags().Lookup("lat-column"))
	viper.BindPFlag("extraction.base_url", extractCmd.Flags().Lookup("base-url"))
	viper.BindPFlag("extraction.remote.timeout", extractCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("extraction.allow_even_window", extractCmd.Flags().Lookup("allow-even-window"))

	rootCmd.AddCommand(extractCmd)
}

func joinVariables() string {
	codes := make([]string, len(worldclim.Variables))
	for i, v := range worldclim.Variables {
		codes[i] = string(v)
	}
	return strings.Join(codes, ", ")
}
