package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/KaramelBytes/climascope/internal/pipeline"
	"github.com/KaramelBytes/climascope/internal/utils"
	"github.com/spf13/cobra"
)

var (
	trainInput     inputFlags
	trainModelsDir string
	trainOutputDir string
	trainStrict    bool
	trainClusters  int
)

const cleanedCSV = "cleaned_unsupervised.csv"

var trainCmd = &cobra.Command{
	Use:   "train <file>",
	Short: "Fit the preprocessor, cluster and anomaly models and save them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		opts, err := pipelineOptions(c, trainStrict)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("clusters") {
			opts.Cluster.K = trainClusters
		}
		modelsDir := firstNonEmpty(trainModelsDir, c.ModelsDir)
		outDir := firstNonEmpty(trainOutputDir, c.OutputDir)

		ds, err := trainInput.load(args[0])
		if err != nil {
			return err
		}
		res, err := pipeline.Train(cmd.Context(), ds, opts)
		if err != nil {
			return err
		}
		if err := res.Bundle.Save(modelsDir); err != nil {
			return err
		}

		if err := utils.EnsureDir(outDir); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		cleaned := filepath.Join(outDir, cleanedCSV)
		if err := utils.WriteWith(cleaned, func(w io.Writer) error {
			return pipeline.WriteMatrixCSV(w, res.Cleaned)
		}); err != nil {
			return fmt.Errorf("write cleaned features: %w", err)
		}
		annotated := filepath.Join(outDir, "clustered_analyzed_data.csv")
		if err := utils.WriteWith(annotated, res.Dataset.WriteCSV); err != nil {
			return fmt.Errorf("write annotated dataset: %w", err)
		}
		writeMetrics(cmd, opts.Metrics, c.MetricsFile)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Trained on %d rows with %d features (bundle %s)\n",
			ds.Len(), len(res.Bundle.Columns()), res.Bundle.Manifest.ID)
		fmt.Fprintf(out, "✓ Saved models to %s\n", modelsDir)
		fmt.Fprintf(out, "✓ Wrote %s and %s\n", cleaned, annotated)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainInput.register(trainCmd)
	trainCmd.Flags().StringVar(&trainModelsDir, "models-dir", "", "directory for the trained model files (overrides config)")
	trainCmd.Flags().StringVarP(&trainOutputDir, "output-dir", "o", "", "directory for the cleaned and annotated CSVs (overrides config)")
	trainCmd.Flags().BoolVar(&trainStrict, "strict", false, "fail if any required climate column is missing")
	trainCmd.Flags().IntVar(&trainClusters, "clusters", 3, "number of k-means clusters (overrides config)")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
