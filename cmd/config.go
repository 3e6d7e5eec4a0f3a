package cmd

import (
	"fmt"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/climascope/internal/config"
	"github.com/KaramelBytes/climascope/internal/features"
	"github.com/KaramelBytes/climascope/internal/forecast"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set climascope configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "models_dir: %s\n", c.ModelsDir)
		fmt.Fprintf(out, "output_dir: %s\n", c.OutputDir)
		fmt.Fprintf(out, "schema_policy: %s\n", c.SchemaPolicy)
		fmt.Fprintf(out, "clusters: %d\n", c.Clusters)
		fmt.Fprintf(out, "kmeans_max_iter: %d\n", c.KMeansMaxIter)
		fmt.Fprintf(out, "kmeans_n_init: %d\n", c.KMeansNInit)
		fmt.Fprintf(out, "contamination: %.3f\n", c.Contamination)
		fmt.Fprintf(out, "forest_estimators: %d\n", c.ForestEstimators)
		fmt.Fprintf(out, "forest_max_samples: %d\n", c.ForestMaxSamples)
		fmt.Fprintf(out, "random_seed: %d\n", c.RandomSeed)
		fmt.Fprintf(out, "forecast_periods: %d\n", c.ForecastPeriods)
		fmt.Fprintf(out, "forecast_unit: %s\n", c.ForecastUnit)
		fmt.Fprintf(out, "interval_width: %.2f\n", c.IntervalWidth)
		if c.MetricsFile != "" {
			fmt.Fprintf(out, "metrics_file: %s\n", c.MetricsFile)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := setKey(c, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "models_dir":
		c.ModelsDir = val
	case "output_dir":
		c.OutputDir = val
	case "metrics_file":
		c.MetricsFile = val
	case "schema_policy":
		p, err := features.ParsePolicy(val)
		if err != nil {
			return err
		}
		c.SchemaPolicy = p.String()
	case "forecast_unit":
		u, err := forecast.ParseUnit(val)
		if err != nil {
			return err
		}
		c.ForecastUnit = u.String()
	case "clusters", "kmeans_max_iter", "kmeans_n_init", "forest_estimators", "forest_max_samples", "forecast_periods":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 || (i == 0 && key != "forecast_periods") {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		switch key {
		case "clusters":
			c.Clusters = i
		case "kmeans_max_iter":
			c.KMeansMaxIter = i
		case "kmeans_n_init":
			c.KMeansNInit = i
		case "forest_estimators":
			c.ForestEstimators = i
		case "forest_max_samples":
			c.ForestMaxSamples = i
		case "forecast_periods":
			c.ForecastPeriods = i
		}
	case "random_seed":
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int for random_seed: %w", err)
		}
		c.RandomSeed = i
	case "contamination":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 || f > 0.5 {
			return fmt.Errorf("invalid float for contamination: %v (use (0, 0.5])", val)
		}
		c.Contamination = f
	case "interval_width":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 || f >= 1 {
			return fmt.Errorf("invalid float for interval_width: %v (use (0, 1))", val)
		}
		c.IntervalWidth = f
	default:
		return fmt.Errorf("unknown key: %s (known: %s)", key, strings.Join(configKeys, ", "))
	}
	return nil
}

var configKeys = []string{
	"models_dir", "output_dir", "schema_policy", "clusters", "kmeans_max_iter", "kmeans_n_init",
	"contamination", "forest_estimators", "forest_max_samples", "random_seed",
	"forecast_periods", "forecast_unit", "interval_width", "metrics_file",
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
