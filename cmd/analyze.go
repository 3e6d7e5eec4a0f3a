package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/climascope/internal/domain"
	"github.com/KaramelBytes/climascope/internal/modelstore"
	"github.com/KaramelBytes/climascope/internal/pipeline"
	"github.com/KaramelBytes/climascope/internal/report"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

var (
	anaInput     inputFlags
	anaModelsDir string
	anaOutputDir string
	anaStrict    bool
	anaPeriods   int
	anaUnit      string
)

const runMetricsFile = "run_metrics.prom"

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Annotate a dataset with trained models, forecast temperature and write the report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("periods") {
			c.ForecastPeriods = anaPeriods
		}
		if cmd.Flags().Changed("unit") {
			c.ForecastUnit = anaUnit
		}
		opts, err := pipelineOptions(c, anaStrict)
		if err != nil {
			return err
		}
		modelsDir := firstNonEmpty(anaModelsDir, c.ModelsDir)
		outDir := firstNonEmpty(anaOutputDir, c.OutputDir)

		bundle, err := modelstore.Load(modelsDir)
		if err != nil {
			return err
		}
		ds, err := anaInput.load(args[0])
		if err != nil {
			return err
		}
		res, err := pipeline.Analyze(cmd.Context(), ds, bundle, opts)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if res.Forecast == nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: forecast skipped: %s\n", res.SkipReason)
		}

		files, err := report.Generate(outDir, reportInput(res, opts.Metrics.Clock()), logger)
		if err != nil {
			return err
		}
		writeMetrics(cmd, opts.Metrics, firstNonEmpty(c.MetricsFile, filepath.Join(outDir, runMetricsFile)))

		fmt.Fprintf(out, "✓ Analyzed %d rows (run %s, models %s)\n", ds.Len(), res.RunID, res.BundleID)
		fmt.Fprintf(out, "  clusters: %s\n", formatCounts(res.Clusters))
		fmt.Fprintf(out, "  anomalies: %d flagged\n", domain.CountOf(res.Anomalies, domain.Outlier))
		for _, f := range files.All() {
			fmt.Fprintf(out, "✓ Wrote %s\n", f)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	anaInput.register(analyzeCmd)
	analyzeCmd.Flags().StringVar(&anaModelsDir, "models-dir", "", "directory holding the trained model files (overrides config)")
	analyzeCmd.Flags().StringVarP(&anaOutputDir, "output-dir", "o", "", "directory for CSVs, charts and the PDF report (overrides config)")
	analyzeCmd.Flags().BoolVar(&anaStrict, "strict", false, "fail if any required climate column is missing")
	analyzeCmd.Flags().IntVar(&anaPeriods, "periods", 30, "forecast horizon in units (overrides config)")
	analyzeCmd.Flags().StringVar(&anaUnit, "unit", "years", "forecast step: years | days (overrides config)")
}

// reportInput stamps the report with the run's metrics clock.
func reportInput(res *pipeline.Result, clock clockwork.Clock) report.Input {
	return report.Input{
		RunID:     res.RunID,
		Generated: clock.Now(),
		Dataset:   res.Dataset,
		Clusters:  res.Clusters,
		Anomalies: res.Anomalies,
		Trend:     res.Trend,
		Forecast:  res.Forecast,
	}
}

func formatCounts(labels []int) string {
	s := ""
	for i, lc := range domain.ValueCounts(labels) {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d=%d", lc.Label, lc.Count)
	}
	return s
}
