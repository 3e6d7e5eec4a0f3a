package anomaly

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/KaramelBytes/climascope/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contaminated returns 950 standard-normal rows followed by 50 far outliers.
func contaminated(seed int64) domain.FeatureMatrix {
	rng := rand.New(rand.NewSource(seed))
	fm := domain.FeatureMatrix{Columns: []string{"a", "b", "c", "d"}}
	for i := 0; i < 950; i++ {
		fm.Rows = append(fm.Rows, []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()})
	}
	for i := 0; i < 50; i++ {
		r := make([]float64, 4)
		for j := range r {
			sign := 1.0
			if rng.Intn(2) == 0 {
				sign = -1
			}
			r[j] = sign * (8 + 4*rng.Float64())
		}
		fm.Rows = append(fm.Rows, r)
	}
	return fm
}

func TestPredict_FlagsSyntheticOutliers(t *testing.T) {
	fm := contaminated(11)
	f, err := Fit(fm, DefaultConfig())
	require.NoError(t, err)

	labels, err := f.Predict(fm)
	require.NoError(t, err)

	var flagged int
	for _, l := range labels[950:] {
		if l == domain.Outlier {
			flagged++
		}
	}
	assert.GreaterOrEqual(t, flagged, 45, "expected >=90%% of synthetic outliers flagged")

	var total int
	for _, l := range labels {
		assert.Contains(t, []int{domain.Inlier, domain.Outlier}, l)
		if l == domain.Outlier {
			total++
		}
	}
	assert.InDelta(t, 50, total, 10)
}

func TestPredict_Monotonicity(t *testing.T) {
	fm := contaminated(12)
	f, err := Fit(fm, DefaultConfig())
	require.NoError(t, err)

	probe := domain.FeatureMatrix{Columns: fm.Columns, Rows: [][]float64{{0, 0, 0, 0}, {40, -40, 40, -40}}}
	labels, err := f.Predict(probe)
	require.NoError(t, err)
	assert.Equal(t, []int{domain.Inlier, domain.Outlier}, labels)

	scores := f.Scores(probe)
	assert.Less(t, scores[0], scores[1])
}

func TestFit_Deterministic(t *testing.T) {
	fm := contaminated(13)
	a, err := Fit(fm, DefaultConfig())
	require.NoError(t, err)
	b, err := Fit(fm, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, a.Threshold, b.Threshold)
	assert.Equal(t, a.Scores(fm), b.Scores(fm))
}

func TestFit_InvalidContamination(t *testing.T) {
	fm := contaminated(14)
	for _, c := range []float64{0, -0.1, 0.6} {
		cfg := DefaultConfig()
		cfg.Contamination = c
		_, err := Fit(fm, cfg)
		var ce *domain.ConfigurationError
		require.ErrorAs(t, err, &ce, "contamination %g", c)
	}
}

func TestPredict_ColumnMismatch(t *testing.T) {
	f, err := Fit(contaminated(15), DefaultConfig())
	require.NoError(t, err)
	_, err = f.Predict(domain.FeatureMatrix{Columns: []string{"a"}, Rows: [][]float64{{1}}})
	var ce *domain.ConfigurationError
	require.ErrorAs(t, err, &ce)
}

func TestJSONRoundTripKeepsPredictions(t *testing.T) {
	fm := contaminated(16)
	cfg := DefaultConfig()
	cfg.NEstimators = 20
	f, err := Fit(fm, cfg)
	require.NoError(t, err)

	b, err := json.Marshal(f)
	require.NoError(t, err)
	var g IsolationForest
	require.NoError(t, json.Unmarshal(b, &g))
	require.NoError(t, g.Validate())

	want, err := f.Predict(fm)
	require.NoError(t, err)
	got, err := g.Predict(fm)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFit_ConstantData(t *testing.T) {
	fm := domain.FeatureMatrix{Columns: []string{"x"}}
	for i := 0; i < 20; i++ {
		fm.Rows = append(fm.Rows, []float64{3})
	}
	f, err := Fit(fm, DefaultConfig())
	require.NoError(t, err)
	labels, err := f.Predict(fm)
	require.NoError(t, err)
	for _, l := range labels {
		assert.Equal(t, domain.Inlier, l)
	}
}

func TestAveragePathLength(t *testing.T) {
	assert.Equal(t, 0.0, averagePathLength(1))
	assert.Equal(t, 1.0, averagePathLength(2))
	assert.InDelta(t, 10.24, averagePathLength(256), 0.01)
}

func TestValidate_RejectsBackwardChild(t *testing.T) {
	leaf := node{Left: -1, Right: -1, Size: 1}
	ok := &IsolationForest{Columns: []string{"x"}, NumFeatures: 1, Trees: []tree{
		{Nodes: []node{{Feature: 0, Split: 0.5, Left: 1, Right: 2, Size: 2}, leaf, leaf}},
	}}
	require.NoError(t, ok.Validate())

	for name, parent := range map[string]node{
		"self loop":    {Feature: 0, Split: 0.5, Left: 0, Right: 1, Size: 2},
		"right loop":   {Feature: 0, Split: 0.5, Left: 1, Right: 0, Size: 2},
		"out of range": {Feature: 0, Split: 0.5, Left: 1, Right: 3, Size: 2},
	} {
		f := &IsolationForest{Columns: []string{"x"}, NumFeatures: 1, Trees: []tree{
			{Nodes: []node{parent, leaf, leaf}},
		}}
		assert.Error(t, f.Validate(), name)
	}
}
