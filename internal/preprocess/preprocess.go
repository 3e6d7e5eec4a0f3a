// Package preprocess imputes missing feature values with column means and
// standardizes each column to zero mean and unit variance.
package preprocess

import (
	"errors"
	"math"

	"github.com/KaramelBytes/climascope/internal/domain"
	"gonum.org/v1/gonum/stat"
)

const component = "preprocessor"

// Params are the fitted imputation and scaling statistics. They are
// persisted with the trained models and reapplied verbatim at inference.
type Params struct {
	Columns []string  `json:"columns"`
	Means   []float64 `json:"means"`
	Scales  []float64 `json:"scales"`
}

// Fit computes Params over fm and returns the transformed matrix.
// Means ignore missing cells; a column with no values gets mean 0.
// Scales are population standard deviations of the imputed column, with
// zero replaced by 1 so constant columns map to 0.
func Fit(fm domain.FeatureMatrix) (domain.FeatureMatrix, Params, error) {
	if fm.NumRows() == 0 {
		return domain.FeatureMatrix{}, Params{}, errors.New("preprocess: empty feature matrix")
	}
	if err := fm.CheckWidth(component, fm.NumCols()); err != nil {
		return domain.FeatureMatrix{}, Params{}, err
	}
	p := Params{
		Columns: append([]string(nil), fm.Columns...),
		Means:   make([]float64, fm.NumCols()),
		Scales:  make([]float64, fm.NumCols()),
	}
	for j := range fm.Columns {
		col := fm.Column(j)
		present := col[:0:0]
		for _, v := range col {
			if !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		if len(present) > 0 {
			p.Means[j] = stat.Mean(present, nil)
		}
		for i, v := range col {
			if math.IsNaN(v) {
				col[i] = p.Means[j]
			}
		}
		p.Scales[j] = popStdDev(col)
		if p.Scales[j] == 0 {
			p.Scales[j] = 1
		}
	}
	out, err := p.Transform(fm)
	if err != nil {
		return domain.FeatureMatrix{}, Params{}, err
	}
	return out, p, nil
}

// Transform imputes and scales fm with the fitted statistics. fm must carry
// exactly the fitted columns in the fitted order. The input is not modified.
func (p Params) Transform(fm domain.FeatureMatrix) (domain.FeatureMatrix, error) {
	if err := fm.CheckColumns(component, p.Columns); err != nil {
		return domain.FeatureMatrix{}, err
	}
	if err := fm.CheckWidth(component, len(p.Columns)); err != nil {
		return domain.FeatureMatrix{}, err
	}
	out := domain.FeatureMatrix{Columns: append([]string(nil), p.Columns...), Rows: make([][]float64, fm.NumRows())}
	for i, r := range fm.Rows {
		row := make([]float64, len(r))
		for j, v := range r {
			if math.IsNaN(v) {
				v = p.Means[j]
			}
			row[j] = (v - p.Means[j]) / p.Scales[j]
		}
		out.Rows[i] = row
	}
	return out, nil
}

// Impute fills missing cells with the fitted means without scaling.
func (p Params) Impute(fm domain.FeatureMatrix) (domain.FeatureMatrix, error) {
	if err := fm.CheckColumns(component, p.Columns); err != nil {
		return domain.FeatureMatrix{}, err
	}
	out := fm.Clone()
	for _, r := range out.Rows {
		for j, v := range r {
			if math.IsNaN(v) {
				r[j] = p.Means[j]
			}
		}
	}
	return out, nil
}

// Validate checks that Params are internally consistent.
func (p Params) Validate() error {
	if len(p.Columns) == 0 {
		return errors.New("no columns")
	}
	if len(p.Means) != len(p.Columns) || len(p.Scales) != len(p.Columns) {
		return errors.New("means/scales length does not match columns")
	}
	for _, s := range p.Scales {
		if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return errors.New("invalid scale")
		}
	}
	return nil
}

func popStdDev(x []float64) float64 {
	n := float64(len(x))
	if n < 2 {
		return 0
	}
	_, v := stat.MeanVariance(x, nil)
	return math.Sqrt(v * (n - 1) / n)
}
