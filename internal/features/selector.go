// Package features extracts the numeric feature matrix shared by training and inference.
package features

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/climascope/internal/dataset"
	"github.com/KaramelBytes/climascope/internal/domain"
	"go.uber.org/zap"
)

// Policy decides what happens when nominal required columns are absent.
type Policy int

const (
	// Permissive proceeds with whatever numeric columns remain.
	Permissive Policy = iota
	// Strict fails fast with a SchemaError.
	Strict
)

func (p Policy) String() string {
	switch p {
	case Strict:
		return "strict"
	default:
		return "permissive"
	}
}

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "permissive":
		return Permissive, nil
	case "strict":
		return Strict, nil
	default:
		return Permissive, fmt.Errorf("invalid schema policy: %s (use permissive or strict)", s)
	}
}

// Selector builds feature matrices from datasets.
type Selector struct {
	Policy   Policy
	Required []string
	TimeCol  string
	Logger   *zap.Logger
}

// NewSelector returns a Selector for the climate schema.
func NewSelector(policy Policy, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		Policy:   policy,
		Required: domain.RequiredColumns(),
		TimeCol:  domain.ColYear,
		Logger:   logger,
	}
}

// Missing returns the required columns absent from ds, sorted.
func (s *Selector) Missing(ds *dataset.Dataset) []string {
	var missing []string
	for _, c := range s.Required {
		if !ds.Has(c) {
			missing = append(missing, c)
		}
	}
	sort.Strings(missing)
	return missing
}

// Select returns every numeric column except the time column and derived
// labels, in dataset order.
func (s *Selector) Select(ds *dataset.Dataset) (domain.FeatureMatrix, error) {
	if missing := s.Missing(ds); len(missing) > 0 {
		if s.Policy == Strict {
			return domain.FeatureMatrix{}, &domain.SchemaError{Missing: missing}
		}
		s.Logger.Warn("required columns missing, proceeding with available columns",
			zap.Strings("missing", missing), zap.String("policy", s.Policy.String()))
	}

	var cols []string
	for _, c := range ds.Columns {
		if c.Kind != dataset.KindNumeric || c.Name == s.TimeCol || domain.IsDerived(c.Name) {
			continue
		}
		cols = append(cols, c.Name)
	}
	if len(cols) == 0 {
		return domain.FeatureMatrix{}, &domain.SchemaError{Reason: "no numeric feature columns"}
	}
	fm, err := s.SelectColumns(ds, cols)
	if err != nil {
		return domain.FeatureMatrix{}, err
	}
	s.Logger.Debug("selected features", zap.Strings("columns", cols), zap.Int("rows", fm.NumRows()))
	return fm, nil
}

// SelectColumns extracts exactly cols, in that order. It is used at
// inference time with the column list recorded during training.
func (s *Selector) SelectColumns(ds *dataset.Dataset, cols []string) (domain.FeatureMatrix, error) {
	vals := make([][]float64, len(cols))
	for j, name := range cols {
		v, ok := ds.NumericValues(name)
		if !ok {
			v, ok = allMissing(ds, name)
		}
		if !ok {
			return domain.FeatureMatrix{}, &domain.ConfigurationError{
				Component: "feature selector",
				Reason:    fmt.Sprintf("trained feature column %q is absent or not numeric", name),
			}
		}
		vals[j] = v
	}
	fm := domain.FeatureMatrix{Columns: append([]string(nil), cols...), Rows: make([][]float64, ds.Len())}
	for i := range fm.Rows {
		row := make([]float64, len(cols))
		for j := range cols {
			row[j] = vals[j][i]
		}
		fm.Rows[i] = row
	}
	return fm, nil
}

// allMissing returns an all-NaN slice when name is present but has no
// values at all, so a trained column left empty in a small batch can still
// be imputed downstream.
func allMissing(ds *dataset.Dataset, name string) ([]float64, bool) {
	c, ok := ds.Column(name)
	if !ok || c.Missing() != ds.Len() {
		return nil, false
	}
	v := make([]float64, ds.Len())
	for i := range v {
		v[i] = math.NaN()
	}
	return v, true
}
