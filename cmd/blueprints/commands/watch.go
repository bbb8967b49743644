package commands

import (
	"fmt"

	"github.com/dyluth/blueprints/internal/collab"
	"github.com/dyluth/blueprints/internal/printer"
	"github.com/dyluth/blueprints/internal/watch"
	"github.com/spf13/cobra"
)

var (
	watchOutputFormat string
	watchPolygons     bool
)

var watchCmd = &cobra.Command{
	Use:   "watch AUTHOR/NAME",
	Short: "Stream the live points of a blueprint",
	Long: `Stream points (and with --polygons, polygons) as collaborators draw them.

Output Formats:
  default - Human-readable, one line per event
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Follow a blueprint
  blueprints watch ana/house

  # Export events as JSON
  blueprints watch ana/house --polygons --output=json > events.jsonl`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().BoolVar(&watchPolygons, "polygons", false, "Also stream polygons")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	key, err := parseKey(args)
	if err != nil {
		return printer.Error("invalid blueprint", err.Error(), []string{"Name it as AUTHOR/NAME, e.g. ana/house"})
	}

	var format watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		format = watch.OutputFormatDefault
	case "json":
		format = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	ctx, stop := signalContext()
	defer stop()

	mgr, endpoint, err := newManager(cfg.Transport)
	if err != nil {
		return printer.Error("invalid transport", err.Error(), nil)
	}
	defer mgr.Close()

	if err := mgr.Connect(ctx); err != nil {
		return printer.ErrorWithContext(
			"connection failed",
			fmt.Sprintf("Could not connect to %s", endpoint),
			map[string]string{"Error": err.Error()},
			[]string{"Start the relay:\n  blueprints serve"},
		)
	}

	err = watch.Stream(ctx, collab.NewRegistry(mgr), key, watch.Options{Format: format, Polygons: watchPolygons}, cmd.OutOrStdout())
	if err != nil && ctx.Err() == nil {
		return printer.Error("watch stopped", err.Error(), nil)
	}
	return nil
}
