// Package pipeline wires the statistical stages into the two batch runs:
// offline training and analysis of a dataset against a trained bundle.
package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/KaramelBytes/climascope/internal/anomaly"
	"github.com/KaramelBytes/climascope/internal/cluster"
	"github.com/KaramelBytes/climascope/internal/dataset"
	"github.com/KaramelBytes/climascope/internal/domain"
	"github.com/KaramelBytes/climascope/internal/features"
	"github.com/KaramelBytes/climascope/internal/forecast"
	"github.com/KaramelBytes/climascope/internal/modelstore"
	"github.com/KaramelBytes/climascope/internal/observability"
	"github.com/KaramelBytes/climascope/internal/preprocess"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Stage names used for logging and the stage duration metric.
const (
	StageSelect     = "select"
	StagePreprocess = "preprocess"
	StageCluster    = "cluster"
	StageAnomaly    = "anomaly"
	StageForecast   = "forecast"
)

// Options configures a run.
type Options struct {
	Policy   features.Policy
	Cluster  cluster.Config
	Anomaly  anomaly.Config
	Forecast forecast.Config
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// DefaultOptions returns permissive selection and the default model settings.
func DefaultOptions() Options {
	return Options{
		Policy:   features.Permissive,
		Cluster:  cluster.DefaultConfig(),
		Anomaly:  anomaly.DefaultConfig(),
		Forecast: forecast.DefaultConfig(),
	}
}

func (o *Options) normalize() {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = observability.NewMetrics()
	}
}

// TrainResult is the outcome of Train.
type TrainResult struct {
	Bundle *modelstore.Bundle
	// Cleaned holds the selected feature columns with missing cells imputed.
	Cleaned domain.FeatureMatrix
	// Dataset is the training dataset annotated with Cluster and Anomaly.
	Dataset   *dataset.Dataset
	Clusters  []int
	Anomalies []int
}

// Train selects features, fits the preprocessor and then fits the cluster
// and anomaly models concurrently on the same scaled matrix.
func Train(ctx context.Context, ds *dataset.Dataset, opts Options) (*TrainResult, error) {
	opts.normalize()
	log := opts.Logger.With(zap.String("run", "train"), zap.String("dataset", ds.Name))
	m := opts.Metrics

	if err := checkpoint(ctx, StageSelect); err != nil {
		return nil, err
	}
	done := m.StartStage(StageSelect)
	fm, err := features.NewSelector(opts.Policy, log).Select(ds)
	done()
	if err != nil {
		return nil, err
	}
	log.Info("features selected", zap.Strings("columns", fm.Columns), zap.Int("rows", fm.NumRows()))

	if err := checkpoint(ctx, StagePreprocess); err != nil {
		return nil, err
	}
	done = m.StartStage(StagePreprocess)
	scaled, params, err := preprocess.Fit(fm)
	done()
	if err != nil {
		return nil, fmt.Errorf("fit preprocessor: %w", err)
	}
	cleaned, err := params.Impute(fm)
	if err != nil {
		return nil, err
	}

	var (
		km     *cluster.KMeans
		forest *anomaly.IsolationForest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := checkpoint(gctx, StageCluster); err != nil {
			return err
		}
		defer m.StartStage(StageCluster)()
		var err error
		km, err = cluster.Fit(scaled, opts.Cluster)
		if err != nil {
			return fmt.Errorf("fit cluster model: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := checkpoint(gctx, StageAnomaly); err != nil {
			return err
		}
		defer m.StartStage(StageAnomaly)()
		var err error
		forest, err = anomaly.Fit(scaled, opts.Anomaly)
		if err != nil {
			return fmt.Errorf("fit anomaly model: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Info("models fitted",
		zap.Int("clusters", km.K()),
		zap.Float64("inertia", km.Inertia),
		zap.Float64("anomaly_threshold", forest.Threshold))

	bundle := modelstore.NewBundle(ds.Name, ds.Len(), params, km, forest, m.Clock().Now().UTC())
	bundle.Manifest.SchemaPolicy = opts.Policy.String()

	clusters, anomalies, err := label(scaled, km, forest)
	if err != nil {
		return nil, err
	}
	if err := annotate(ds, clusters, anomalies); err != nil {
		return nil, err
	}
	record(m, ds.Len(), clusters, anomalies)

	return &TrainResult{
		Bundle:    bundle,
		Cleaned:   cleaned,
		Dataset:   ds,
		Clusters:  clusters,
		Anomalies: anomalies,
	}, nil
}

// Result is the outcome of Analyze.
type Result struct {
	RunID     string
	BundleID  string
	Dataset   *dataset.Dataset
	Clusters  []int
	Anomalies []int
	// Trend holds yearly mean temperatures; nil when forecasting was skipped.
	Trend []forecast.Observation
	// Forecast is nil when forecasting was skipped; SkipReason then says why.
	Forecast   *forecast.Series
	Model      *forecast.Model
	SkipReason string
}

// Analyze annotates ds with cluster and anomaly labels from bundle and, when
// the time and temperature columns are present, forecasts temperature.
// ds is modified in place.
func Analyze(ctx context.Context, ds *dataset.Dataset, bundle *modelstore.Bundle, opts Options) (*Result, error) {
	if bundle == nil {
		return nil, errors.New("analyze: no trained model bundle")
	}
	opts.normalize()
	res := &Result{RunID: uuid.NewString(), BundleID: bundle.Manifest.ID, Dataset: ds}
	log := opts.Logger.With(zap.String("run", "analyze"), zap.String("run_id", res.RunID), zap.String("dataset", ds.Name))
	m := opts.Metrics

	if err := checkpoint(ctx, StageSelect); err != nil {
		return nil, err
	}
	sel := features.NewSelector(opts.Policy, log)
	if missing := sel.Missing(ds); len(missing) > 0 {
		if opts.Policy == features.Strict {
			return nil, &domain.SchemaError{Missing: missing}
		}
		log.Warn("required columns missing, proceeding with available columns",
			zap.Strings("missing", missing), zap.String("policy", opts.Policy.String()))
	}
	done := m.StartStage(StageSelect)
	fm, err := sel.SelectColumns(ds, bundle.Columns())
	done()
	if err != nil {
		return nil, err
	}

	if err := checkpoint(ctx, StagePreprocess); err != nil {
		return nil, err
	}
	done = m.StartStage(StagePreprocess)
	scaled, err := bundle.Preprocess.Transform(fm)
	done()
	if err != nil {
		return nil, err
	}

	if err := checkpoint(ctx, StageCluster); err != nil {
		return nil, err
	}
	res.Clusters, res.Anomalies, err = label(scaled, bundle.KMeans, bundle.Forest)
	if err != nil {
		return nil, err
	}
	if err := annotate(ds, res.Clusters, res.Anomalies); err != nil {
		return nil, err
	}
	record(m, ds.Len(), res.Clusters, res.Anomalies)
	log.Info("dataset annotated",
		zap.Int("rows", ds.Len()),
		zap.Int("anomalies", domain.CountOf(res.Anomalies, domain.Outlier)))

	if err := checkpoint(ctx, StageForecast); err != nil {
		return nil, err
	}
	done = m.StartStage(StageForecast)
	err = forecastInto(res, ds, opts.Forecast)
	done()
	if err != nil {
		return nil, err
	}
	if res.Forecast != nil {
		m.ForecastPoints.Set(float64(res.Forecast.Len()))
	} else {
		log.Warn("forecast skipped", zap.String("reason", res.SkipReason))
	}
	return res, nil
}

// Forecast runs only the trend forecaster on ds. ok is false when the time
// or temperature column is absent.
func Forecast(ds *dataset.Dataset, cfg forecast.Config) (s forecast.Series, model *forecast.Model, ok bool, err error) {
	obs, ok := forecast.Aggregate(ds, domain.ColYear, domain.ColTemperature)
	if !ok {
		return forecast.Series{}, nil, false, nil
	}
	s, model, err = forecast.Forecast(obs, cfg)
	return s, model, true, err
}

func forecastInto(res *Result, ds *dataset.Dataset, cfg forecast.Config) error {
	obs, ok := forecast.Aggregate(ds, domain.ColYear, domain.ColTemperature)
	if !ok {
		res.SkipReason = fmt.Sprintf("columns %s and %s are required for forecasting", domain.ColYear, domain.ColTemperature)
		return nil
	}
	s, model, err := forecast.Forecast(obs, cfg)
	var ide *domain.InsufficientDataError
	if errors.As(err, &ide) {
		// Labels are still useful for a batch too short to fit a trend.
		res.SkipReason = ide.Error()
		return nil
	}
	if err != nil {
		return err
	}
	res.Trend = obs
	res.Forecast = &s
	res.Model = model
	return nil
}

func label(scaled domain.FeatureMatrix, km *cluster.KMeans, forest *anomaly.IsolationForest) ([]int, []int, error) {
	clusters, err := km.Predict(scaled)
	if err != nil {
		return nil, nil, fmt.Errorf("predict clusters: %w", err)
	}
	anomalies, err := forest.Predict(scaled)
	if err != nil {
		return nil, nil, fmt.Errorf("predict anomalies: %w", err)
	}
	return clusters, anomalies, nil
}

func annotate(ds *dataset.Dataset, clusters, anomalies []int) error {
	if err := ds.SetIntColumn(domain.ColCluster, clusters); err != nil {
		return err
	}
	return ds.SetIntColumn(domain.ColAnomaly, anomalies)
}

func record(m *observability.Metrics, rows int, clusters, anomalies []int) {
	m.RowsProcessed.Add(float64(rows))
	m.RecordClusters(clusters)
	m.AnomaliesFlagged.Set(float64(domain.CountOf(anomalies, domain.Outlier)))
}

func checkpoint(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run cancelled before %s: %w", stage, err)
	}
	return nil
}

// WriteMatrixCSV writes fm with a header row. Missing cells are left empty.
func WriteMatrixCSV(w io.Writer, fm domain.FeatureMatrix) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fm.Columns); err != nil {
		return err
	}
	rec := make([]string, fm.NumCols())
	for _, r := range fm.Rows {
		for j, v := range r {
			if math.IsNaN(v) {
				rec[j] = ""
				continue
			}
			rec[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
