package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/blueprints/internal/config"
	"github.com/dyluth/blueprints/internal/printer"
	"github.com/spf13/cobra"
)

var (
	configPath string

	// cfg is loaded before any sub-command runs
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "blueprints",
	Short: "Blueprints - real-time collaborative point drawing",
	Long: `Blueprints lets several clients draw the same point-ordered shape at once.

Points drawn by one client are broadcast over a pub/sub relay and merged
into every other client's view; every fourth relayed point closes a polygon
that is shown as an overlay. Saved blueprints live behind a REST API.`,
	// Prevent silent success when unknown flags are passed to root command
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	PersistentPreRunE: loadConfig,
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to blueprints.yml (defaults apply when it does not exist)")

	// glog registers -v, -logtostderr and friends on the standard flag set
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	// glog refuses to log until the standard flag set counts as parsed
	if !flag.Parsed() {
		flag.CommandLine.Parse(nil)
	}

	c, err := config.LoadOrDefault(configPath)
	if err != nil {
		return printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": configPath},
			[]string{"Fix the file, or remove it to use the defaults"},
		)
	}
	cfg = c
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
