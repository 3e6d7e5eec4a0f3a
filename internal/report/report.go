// Package report renders the analysis outputs: annotated CSV, forecast CSV,
// PNG charts and the PDF summary.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/KaramelBytes/climascope/internal/dataset"
	"github.com/KaramelBytes/climascope/internal/domain"
	"github.com/KaramelBytes/climascope/internal/forecast"
	"github.com/KaramelBytes/climascope/internal/utils"
	"go.uber.org/zap"
)

// Output file names inside the output directory.
const (
	AnnotatedCSV  = "clustered_analyzed_data.csv"
	ForecastCSV   = "temperature_forecast.csv"
	ClusterPNG    = "cluster_distribution.png"
	AnomalyPNG    = "anomaly_scatter.png"
	TrendPNG      = "temp_trend.png"
	ForecastPNG   = "temperature_forecast_plot.png"
	ReportPDF     = "climate_analysis_report.pdf"
	forecastHeadN = 5
)

// Input is everything the report needs from an analysis run.
type Input struct {
	RunID     string
	Generated time.Time
	Dataset   *dataset.Dataset
	Clusters  []int
	Anomalies []int
	// Trend and Forecast are nil when forecasting was skipped.
	Trend    []forecast.Observation
	Forecast *forecast.Series
}

// Files lists the paths that were written. Skipped outputs are empty.
type Files struct {
	AnnotatedCSV string
	ForecastCSV  string
	ClusterChart string
	AnomalyChart string
	TrendChart   string
	ForecastPlot string
	PDF          string
}

// All returns the non-empty paths in write order.
func (f Files) All() []string {
	var out []string
	for _, p := range []string{f.AnnotatedCSV, f.ForecastCSV, f.ClusterChart, f.AnomalyChart, f.TrendChart, f.ForecastPlot, f.PDF} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Generate writes every output into dir. Charts whose source columns are
// absent are skipped with a warning.
func Generate(dir string, in Input, logger *zap.Logger) (Files, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := utils.EnsureDir(dir); err != nil {
		return Files{}, fmt.Errorf("create output dir: %w", err)
	}
	var files Files

	files.AnnotatedCSV = filepath.Join(dir, AnnotatedCSV)
	if err := utils.WriteWith(files.AnnotatedCSV, in.Dataset.WriteCSV); err != nil {
		return files, fmt.Errorf("write annotated dataset: %w", err)
	}

	files.ClusterChart = filepath.Join(dir, ClusterPNG)
	if err := clusterChart(files.ClusterChart, in.Clusters); err != nil {
		return files, fmt.Errorf("cluster chart: %w", err)
	}

	temp, okT := in.Dataset.NumericValues(domain.ColTemperature)
	co2, okC := in.Dataset.NumericValues(domain.ColCO2)
	if okT && okC {
		files.AnomalyChart = filepath.Join(dir, AnomalyPNG)
		if err := anomalyChart(files.AnomalyChart, temp, co2, in.Anomalies); err != nil {
			return files, fmt.Errorf("anomaly chart: %w", err)
		}
	} else {
		logger.Warn("anomaly scatter skipped", zap.Strings("needs", []string{domain.ColTemperature, domain.ColCO2}))
	}

	if len(in.Trend) > 0 {
		files.TrendChart = filepath.Join(dir, TrendPNG)
		if err := trendChart(files.TrendChart, in.Trend); err != nil {
			return files, fmt.Errorf("trend chart: %w", err)
		}
	}

	if in.Forecast != nil {
		files.ForecastCSV = filepath.Join(dir, ForecastCSV)
		if err := utils.WriteWith(files.ForecastCSV, in.Forecast.WriteCSV); err != nil {
			return files, fmt.Errorf("write forecast: %w", err)
		}
		files.ForecastPlot = filepath.Join(dir, ForecastPNG)
		if err := forecastChart(files.ForecastPlot, in.Trend, *in.Forecast); err != nil {
			return files, fmt.Errorf("forecast chart: %w", err)
		}
	}

	files.PDF = filepath.Join(dir, ReportPDF)
	if err := utils.WriteWith(files.PDF, func(w io.Writer) error {
		return writePDF(w, in, files)
	}); err != nil {
		return files, fmt.Errorf("write pdf: %w", err)
	}
	logger.Info("report written", zap.String("dir", dir), zap.Int("files", len(files.All())))
	return files, nil
}
