package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/itohio/gonibp/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// options holds the flags shared by all commands.
type options struct {
	configPath  string
	port        string
	mock        bool
	archivePath string
	method      string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "nibp",
		Short:         "Oscillometric blood pressure monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "configuration file path")
	root.PersistentFlags().StringVar(&opts.archivePath, "archive", "", "SQLite archive path (overrides config)")
	root.PersistentFlags().StringVar(&opts.method, "method", "", "estimation method: ordinal|ratio (overrides config)")

	root.AddCommand(newMeasureCmd(opts))
	root.AddCommand(newAnalyzeCmd(opts))
	root.AddCommand(newReplayCmd(opts))
	root.AddCommand(newSessionsCmd(opts))
	root.AddCommand(newPortsCmd())
	return root
}

// loadConfig reads the configuration, applies flag overrides and installs
// the process logger on stderr.
func loadConfig(opts *options, stderr io.Writer) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.port != "" {
		cfg.Serial.Port = opts.port
	}
	if opts.archivePath != "" {
		cfg.Archive.Path = opts.archivePath
	}
	if opts.method != "" {
		cfg.Analysis.Method = opts.method
	}

	slog.SetDefault(config.NewLogger(cfg.Log, stderr))
	return cfg, nil
}
