package preprocess

import (
	"math"
	"math/rand"
	"testing"

	"github.com/KaramelBytes/climascope/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func randomMatrix(rows int, missingRate float64) domain.FeatureMatrix {
	rng := rand.New(rand.NewSource(7))
	fm := domain.FeatureMatrix{Columns: []string{"temp", "co2", "rain"}}
	for i := 0; i < rows; i++ {
		r := []float64{15 + 8*rng.NormFloat64(), 4 + rng.ExpFloat64(), 1000 + 300*rng.NormFloat64()}
		for j := range r {
			if rng.Float64() < missingRate {
				r[j] = math.NaN()
			}
		}
		fm.Rows = append(fm.Rows, r)
	}
	return fm
}

func TestFit_ZeroMeanUnitVariance(t *testing.T) {
	fm := randomMatrix(500, 0.1)
	out, p, err := Fit(fm)
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	assert.False(t, out.HasMissing())
	for j := range out.Columns {
		col := out.Column(j)
		mean, v := stat.MeanVariance(col, nil)
		n := float64(len(col))
		assert.InDelta(t, 0, mean, 1e-9, "column %s mean", out.Columns[j])
		assert.InDelta(t, 1, math.Sqrt(v*(n-1)/n), 1e-9, "column %s std", out.Columns[j])
	}
	assert.True(t, fm.HasMissing(), "input must not be modified")
}

func TestTransform_Idempotent(t *testing.T) {
	fm := randomMatrix(50, 0.2)
	_, p, err := Fit(fm)
	require.NoError(t, err)

	a, err := p.Transform(fm)
	require.NoError(t, err)
	b, err := p.Transform(fm)
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("transform not deterministic (-first +second):\n%s", diff)
	}
}

func TestTransform_UsesFittedStatistics(t *testing.T) {
	train := domain.FeatureMatrix{Columns: []string{"x"}, Rows: [][]float64{{0}, {10}}}
	_, p, err := Fit(train)
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, p.Means)
	assert.Equal(t, []float64{5}, p.Scales)

	batch := domain.FeatureMatrix{Columns: []string{"x"}, Rows: [][]float64{{20}, {math.NaN()}}}
	out, err := p.Transform(batch)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{3}, {0}}, out.Rows)
}

func TestFit_ConstantAndEmptyColumns(t *testing.T) {
	fm := domain.FeatureMatrix{
		Columns: []string{"const", "empty"},
		Rows:    [][]float64{{2, math.NaN()}, {2, math.NaN()}, {2, math.NaN()}},
	}
	out, p, err := Fit(fm)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0}, p.Means)
	assert.Equal(t, []float64{1, 1}, p.Scales)
	for _, r := range out.Rows {
		assert.Equal(t, []float64{0, 0}, r)
	}
}

func TestTransform_ColumnMismatch(t *testing.T) {
	_, p, err := Fit(domain.FeatureMatrix{Columns: []string{"a", "b"}, Rows: [][]float64{{1, 2}, {3, 4}}})
	require.NoError(t, err)

	_, err = p.Transform(domain.FeatureMatrix{Columns: []string{"b", "a"}, Rows: [][]float64{{1, 2}}})
	var ce *domain.ConfigurationError
	require.ErrorAs(t, err, &ce)
}

func TestFit_Empty(t *testing.T) {
	_, _, err := Fit(domain.FeatureMatrix{Columns: []string{"a"}})
	require.Error(t, err)
}

func TestImpute_FillsMeansWithoutScaling(t *testing.T) {
	train := domain.FeatureMatrix{Columns: []string{"x", "y"}, Rows: [][]float64{{0, 1}, {10, math.NaN()}, {math.NaN(), 3}}}
	_, p, err := Fit(train)
	require.NoError(t, err)

	out, err := p.Impute(train)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 1}, {10, 2}, {5, 3}}, out.Rows)
	assert.True(t, math.IsNaN(train.Rows[1][1]), "input must not be modified")
}
