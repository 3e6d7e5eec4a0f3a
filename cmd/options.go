package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/climascope/internal/anomaly"
	"github.com/KaramelBytes/climascope/internal/cluster"
	cfgpkg "github.com/KaramelBytes/climascope/internal/config"
	"github.com/KaramelBytes/climascope/internal/dataset"
	"github.com/KaramelBytes/climascope/internal/features"
	"github.com/KaramelBytes/climascope/internal/forecast"
	"github.com/KaramelBytes/climascope/internal/observability"
	"github.com/KaramelBytes/climascope/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// inputFlags are the dataset reading flags shared by every command that loads a file.
type inputFlags struct {
	delimiter string
	decimal   string
	thousands string
	sheet     string
	maxRows   int
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	cmd.Flags().StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "XLSX: sheet name (default first sheet)")
	cmd.Flags().IntVar(&f.maxRows, "max-rows", 0, "maximum rows to read (0 = unlimited)")
}

func (f *inputFlags) options() (dataset.Options, error) {
	opt := dataset.DefaultOptions()
	opt.Sheet = f.sheet
	opt.MaxRows = f.maxRows
	if f.delimiter != "" {
		switch f.delimiter {
		case ",":
			opt.Delimiter = ','
		case "\t", "tab":
			opt.Delimiter = '\t'
		case ";":
			opt.Delimiter = ';'
		default:
			return opt, fmt.Errorf("unsupported --delimiter: %s", f.delimiter)
		}
	}
	// Locale separators
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(f.thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.thousands)
	}
	return opt, nil
}

func (f *inputFlags) load(path string) (*dataset.Dataset, error) {
	opt, err := f.options()
	if err != nil {
		return nil, err
	}
	ds, err := dataset.Load(path, opt)
	if err != nil {
		return nil, err
	}
	logger.Debug("dataset loaded", zap.String("path", path), zap.Int("rows", ds.Len()), zap.Strings("columns", ds.Names()))
	return ds, nil
}

// forecastConfig builds the forecaster settings from config.
func forecastConfig(c *cfgpkg.Global) (forecast.Config, error) {
	unit, err := forecast.ParseUnit(c.ForecastUnit)
	if err != nil {
		return forecast.Config{}, err
	}
	if c.ForecastPeriods < 0 {
		return forecast.Config{}, fmt.Errorf("forecast_periods must be >= 0, got %d", c.ForecastPeriods)
	}
	return forecast.Config{Periods: c.ForecastPeriods, Unit: unit, IntervalWidth: c.IntervalWidth}, nil
}

// pipelineOptions maps config onto pipeline options. strict forces the
// strict schema policy regardless of config.
func pipelineOptions(c *cfgpkg.Global, strict bool) (pipeline.Options, error) {
	policy, err := features.ParsePolicy(c.SchemaPolicy)
	if err != nil {
		return pipeline.Options{}, err
	}
	if strict {
		policy = features.Strict
	}
	fc, err := forecastConfig(c)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Policy: policy,
		Cluster: cluster.Config{
			K:       c.Clusters,
			MaxIter: c.KMeansMaxIter,
			NInit:   c.KMeansNInit,
			Seed:    c.RandomSeed,
		},
		Anomaly: anomaly.Config{
			Contamination: c.Contamination,
			NEstimators:   c.ForestEstimators,
			MaxSamples:    c.ForestMaxSamples,
			Seed:          c.RandomSeed,
		},
		Forecast: fc,
		Logger:   logger,
		Metrics:  observability.NewMetrics(),
	}, nil
}

// writeMetrics stamps and writes run metrics to path; empty path is a no-op.
func writeMetrics(cmd *cobra.Command, m *observability.Metrics, path string) {
	if path == "" {
		return
	}
	m.MarkFinished()
	if err := m.WriteTextfile(path); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %v\n", err)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote run metrics to %s\n", filepath.Clean(path))
}
