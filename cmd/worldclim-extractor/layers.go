// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/worldclim-extractor/internal/extract"
	"github.com/pdiddy/worldclim-extractor/internal/worldclim"
)

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "List the layers, columns and paths an extraction would read",
	Long: `Layers prints the archive URL, the layer rule in force (count and index
padding, after any configured overrides) and, for every layer of the
variable, the output column name and the virtual path that would be
opened. Nothing is fetched.`,
	Args: cobra.NoArgs,
	RunE: runLayers,
}

// plannedLayer is the JSON form of one planned layer.
type plannedLayer struct {
	Index  int    `json:"index"`
	Column string `json:"column"`
	Path   string `json:"path"`
}

// layerReport is the JSON form of a whole plan.
type layerReport struct {
	Archive string         `json:"archive"`
	Count   int            `json:"count"`
	Padded  bool           `json:"padded"`
	Layers  []plannedLayer `json:"layers"`
}

func planReport(ex *extract.Extractor, req extract.Request) layerReport {
	rule := ex.Policy().Rule(req.Variable)
	rep := layerReport{Archive: ex.ArchiveURL(req), Count: rule.Count, Padded: rule.Padded}
	for _, p := range ex.Plan(req) {
		rep.Layers = append(rep.Layers, plannedLayer{Index: p.Layer.Index, Column: p.Column, Path: p.Path})
	}
	return rep
}

func formatPlan(w io.Writer, rep layerReport) error {
	padding := "unpadded"
	if rep.Padded {
		padding = "zero-padded"
	}
	fmt.Fprintf(w, "Archive %s\n", rep.Archive)
	fmt.Fprintf(w, "Rule    %d layers, %s index\n\n", rep.Count, padding)

	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tCOLUMN\tPATH")
	for _, l := range rep.Layers {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", l.Index, l.Column, l.Path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d layers\n", len(rep.Layers))
	return nil
}

func runLayers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	varFlag, _ := cmd.Flags().GetString("variable")
	v, err := worldclim.ParseVariable(varFlag)
	if err != nil {
		return err
	}
	resFlag, _ := cmd.Flags().GetString("resolution")
	r, err := worldclim.ParseResolution(resFlag)
	if err != nil {
		return err
	}

	ex, err := extract.New(nil, cfg.Extraction, log)
	if err != nil {
		return err
	}
	rep := planReport(ex, extract.Request{Variable: v, Resolution: r})

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return formatPlan(os.Stdout, rep)
}

func init() {
	layersCmd.Flags().String("variable", "", "WorldClim variable: "+joinVariables())
	layersCmd.Flags().String("resolution", "10m", "grid resolution: 30s, 2.5m, 5m, 10m")
	layersCmd.Flags().Bool("json", false, "output the plan as JSON")
	layersCmd.MarkFlagRequired("variable")

	rootCmd.AddCommand(layersCmd)
}
