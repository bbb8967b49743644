package commands

import (
	"fmt"

	"github.com/dyluth/blueprints/internal/listing"
	"github.com/dyluth/blueprints/internal/printer"
	"github.com/dyluth/blueprints/internal/store"
	"github.com/dyluth/blueprints/internal/store/httpstore"
	"github.com/spf13/cobra"
)

var (
	listOutputFormat string
	listName         string
	listMinPoints    int
)

var listCmd = &cobra.Command{
	Use:   "list [AUTHOR]",
	Short: "List saved blueprints",
	Long: `List saved blueprints, optionally for one author.

Output Formats:
  default - Table with author, name, point count and bounds
  jsonl   - Line-delimited JSON, one blueprint per line

Examples:
  # Everything
  blueprints list

  # Ana's blueprints whose name starts with h
  blueprints list ana --name 'h*'

  # Pipe to jq
  blueprints list --output=jsonl | jq '.points | length'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

var getCmd = &cobra.Command{
	Use:   "get AUTHOR/NAME",
	Short: "Print one saved blueprint as JSON",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runGet,
}

func init() {
	listCmd.Flags().StringVarP(&listOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	listCmd.Flags().StringVar(&listName, "name", "", "Filter by name (glob pattern)")
	listCmd.Flags().IntVar(&listMinPoints, "min-points", 0, "Only blueprints with at least this many points")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := listing.ParseOutputFormat(listOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", listOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	st, err := httpstore.New(cfg.Store.URL)
	if err != nil {
		return printer.Error("invalid store URL", err.Error(), nil)
	}

	filter := &listing.Filter{NameGlob: listName, MinPoints: listMinPoints}
	if len(args) == 1 {
		filter.Author = args[0]
	}
	if err := listing.List(cmd.Context(), st, format, filter, cmd.OutOrStdout()); err != nil {
		return printer.ErrorWithContext("failed to list blueprints", err.Error(),
			map[string]string{"Store": cfg.Store.URL}, []string{"Start the relay:\n  blueprints serve"})
	}
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	key, err := parseKey(args)
	if err != nil {
		return printer.Error("invalid blueprint", err.Error(), []string{"Name it as AUTHOR/NAME, e.g. ana/house"})
	}

	st, err := httpstore.New(cfg.Store.URL)
	if err != nil {
		return printer.Error("invalid store URL", err.Error(), nil)
	}

	bp, err := st.Get(cmd.Context(), key)
	if store.IsNotFound(err) {
		return printer.Error(fmt.Sprintf("blueprint '%s' not found", key), "There is no saved blueprint with that author and name.", nil)
	}
	if err != nil {
		return printer.ErrorWithContext("failed to get blueprint", err.Error(),
			map[string]string{"Store": cfg.Store.URL}, nil)
	}
	return listing.FormatSingleJSON(cmd.OutOrStdout(), bp)
}
