package cluster

import (
	"math/rand"
	"testing"

	"github.com/KaramelBytes/climascope/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs returns n points around each center.
func blobs(centers [][]float64, n int, seed int64) domain.FeatureMatrix {
	rng := rand.New(rand.NewSource(seed))
	fm := domain.FeatureMatrix{Columns: []string{"x", "y"}}
	for _, c := range centers {
		for i := 0; i < n; i++ {
			fm.Rows = append(fm.Rows, []float64{c[0] + 0.3*rng.NormFloat64(), c[1] + 0.3*rng.NormFloat64()})
		}
	}
	return fm
}

func TestFit_SeparatesBlobs(t *testing.T) {
	centers := [][]float64{{0, 0}, {10, 10}, {-10, 10}}
	fm := blobs(centers, 40, 1)

	m, err := Fit(fm, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 3, m.K())

	labels, err := m.Predict(fm)
	require.NoError(t, err)
	// Every blob must map to a single label, and the three labels must differ.
	seen := map[int]bool{}
	for b := range centers {
		first := labels[b*40]
		for i := b * 40; i < (b+1)*40; i++ {
			assert.Equal(t, first, labels[i], "blob %d row %d", b, i)
		}
		assert.False(t, seen[first], "blobs share label %d", first)
		seen[first] = true
	}
}

func TestPredict_IdenticalRowsSameLabel(t *testing.T) {
	fm := blobs([][]float64{{0, 0}, {5, 5}}, 30, 2)
	m, err := Fit(fm, Config{K: 4, MaxIter: 100, NInit: 3, Seed: 9})
	require.NoError(t, err)

	probe := domain.FeatureMatrix{Columns: fm.Columns, Rows: [][]float64{{2.5, 2.5}, {2.5, 2.5}, {-1, 7}, {-1, 7}}}
	labels, err := m.Predict(probe)
	require.NoError(t, err)
	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[2], labels[3])

	all, err := m.Predict(fm)
	require.NoError(t, err)
	distinct := map[int]struct{}{}
	for _, l := range all {
		assert.GreaterOrEqual(t, l, 0)
		assert.Less(t, l, 4)
		distinct[l] = struct{}{}
	}
	assert.LessOrEqual(t, len(distinct), 4)
}

func TestFit_Deterministic(t *testing.T) {
	fm := blobs([][]float64{{0, 0}, {3, 3}, {6, 0}}, 20, 3)
	a, err := Fit(fm, DefaultConfig())
	require.NoError(t, err)
	b, err := Fit(fm, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, a.Centroids, b.Centroids)
}

func TestPredict_ColumnMismatch(t *testing.T) {
	fm := blobs([][]float64{{0, 0}}, 10, 4)
	m, err := Fit(fm, Config{K: 2, Seed: 1})
	require.NoError(t, err)

	_, err = m.Predict(domain.FeatureMatrix{Columns: []string{"x"}, Rows: [][]float64{{1}}})
	var ce *domain.ConfigurationError
	require.ErrorAs(t, err, &ce)
}

func TestFit_Errors(t *testing.T) {
	fm := blobs([][]float64{{0, 0}}, 2, 5)
	_, err := Fit(fm, Config{K: 3})
	require.Error(t, err)

	_, err = Fit(fm, Config{K: 0})
	var ce *domain.ConfigurationError
	require.ErrorAs(t, err, &ce)

	_, err = (&KMeans{}).Predict(fm)
	require.Error(t, err)
}

func TestFit_DuplicatePoints(t *testing.T) {
	fm := domain.FeatureMatrix{Columns: []string{"x"}, Rows: [][]float64{{1}, {1}, {1}, {1}}}
	m, err := Fit(fm, Config{K: 2, Seed: 1})
	require.NoError(t, err)
	labels, err := m.Predict(fm)
	require.NoError(t, err)
	for _, l := range labels {
		assert.Equal(t, labels[0], l)
	}
}

func TestLloyd_ReseedsEmptyClustersToDistinctPoints(t *testing.T) {
	rows := [][]float64{{0}, {0}, {10}, {20}}
	// Both far centroids start empty in the same pass.
	m := lloyd(rows, [][]float64{{0}, {1000}, {1000}}, 100)

	seen := map[float64]bool{}
	for _, c := range m.Centroids {
		assert.False(t, seen[c[0]], "centroid %v reused", c)
		seen[c[0]] = true
	}
	assert.Equal(t, map[float64]bool{0: true, 10: true, 20: true}, seen)
	assert.Zero(t, m.Inertia)
}
