package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	cfgpkg "github.com/KaramelBytes/climascope/internal/config"
	"github.com/KaramelBytes/climascope/internal/observability"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	cfgFile string
	debug   bool

	// Loaded configuration
	cfg *cfgpkg.Global
	// Shared structured logger; replaced in loadConfig.
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "climascope",
	Short: "climascope: cluster, flag and forecast climate datasets",
	Long: `climascope trains clustering and anomaly models on a climate dataset, annotates new
batches with cluster and anomaly labels, forecasts the average temperature trend, and
renders charts plus a PDF report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	defer func() { _ = logger.Sync() }()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.climascope/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func loadConfig() {
	if l, err := observability.NewLogger(debug); err == nil {
		logger = l
	} else {
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to build logger: %v\n", err)
	}

	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: commands fall back to built-in defaults
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c
	logger.Debug("config loaded", zap.String("models_dir", cfg.ModelsDir), zap.String("output_dir", cfg.OutputDir))
}

// requireConfig returns the loaded config, loading it on demand.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}
