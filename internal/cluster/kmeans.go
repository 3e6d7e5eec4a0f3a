// Package cluster partitions feature rows into k groups with k-means.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/KaramelBytes/climascope/internal/domain"
	"gonum.org/v1/gonum/floats"
)

const component = "cluster model"

// Config controls fitting.
type Config struct {
	K       int
	MaxIter int
	NInit   int
	Seed    int64
}

// DefaultConfig mirrors the defaults of the exploratory run.
func DefaultConfig() Config {
	return Config{K: 3, MaxIter: 300, NInit: 10, Seed: 42}
}

// KMeans holds fitted centroids. The zero value is unfitted.
type KMeans struct {
	Columns   []string    `json:"columns"`
	Centroids [][]float64 `json:"centroids"`
	Inertia   float64     `json:"inertia"`
	Iters     int         `json:"iterations"`
}

// Fit partitions the rows of fm into cfg.K clusters. fm must not contain NaN.
func Fit(fm domain.FeatureMatrix, cfg Config) (*KMeans, error) {
	if cfg.K <= 0 {
		return nil, &domain.ConfigurationError{Component: component, Reason: fmt.Sprintf("k must be positive, got %d", cfg.K)}
	}
	if fm.NumRows() < cfg.K {
		return nil, fmt.Errorf("kmeans: need at least %d rows, got %d", cfg.K, fm.NumRows())
	}
	if fm.HasMissing() {
		return nil, errors.New("kmeans: feature matrix contains missing values")
	}
	if err := fm.CheckWidth(component, fm.NumCols()); err != nil {
		return nil, err
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = 300
	}
	if cfg.NInit <= 0 {
		cfg.NInit = 1
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	var best *KMeans
	for run := 0; run < cfg.NInit; run++ {
		m := lloyd(fm.Rows, seedPlusPlus(fm.Rows, cfg.K, rng), cfg.MaxIter)
		if best == nil || m.Inertia < best.Inertia {
			best = m
		}
	}
	best.Columns = append([]string(nil), fm.Columns...)
	return best, nil
}

// Predict assigns each row to its nearest centroid. Ties go to the lowest index.
func (m *KMeans) Predict(fm domain.FeatureMatrix) ([]int, error) {
	if len(m.Centroids) == 0 {
		return nil, errors.New("kmeans: model is not fitted")
	}
	if err := fm.CheckWidth(component, len(m.Centroids[0])); err != nil {
		return nil, err
	}
	labels := make([]int, fm.NumRows())
	for i, r := range fm.Rows {
		labels[i], _ = nearest(r, m.Centroids)
	}
	return labels, nil
}

// K returns the number of fitted clusters.
func (m *KMeans) K() int { return len(m.Centroids) }

// seedPlusPlus picks k initial centroids with k-means++ weighting.
func seedPlusPlus(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), rows[rng.Intn(len(rows))]...))
	d2 := make([]float64, len(rows))
	for len(centroids) < k {
		var total float64
		for i, r := range rows {
			_, d := nearest(r, centroids)
			d2[i] = d
			total += d
		}
		next := 0
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range d2 {
				target -= d
				if target <= 0 {
					next = i
					break
				}
				next = i
			}
		} else {
			next = rng.Intn(len(rows))
		}
		centroids = append(centroids, append([]float64(nil), rows[next]...))
	}
	return centroids
}

func lloyd(rows [][]float64, centroids [][]float64, maxIter int) *KMeans {
	dim := len(rows[0])
	k := len(centroids)
	labels := make([]int, len(rows))
	for i := range labels {
		labels[i] = -1
	}
	iter := 0
	for ; iter < maxIter; iter++ {
		changed := false
		for i, r := range rows {
			c, _ := nearest(r, centroids)
			if c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, r := range rows {
			floats.Add(sums[labels[i]], r)
			counts[labels[i]]++
		}
		taken := make(map[int]bool)
		for c := range centroids {
			if counts[c] == 0 {
				// Re-seed an empty cluster at the point farthest from its
				// centroid, skipping points already used in this pass.
				far, farD := -1, -1.0
				for i, r := range rows {
					if taken[i] {
						continue
					}
					if d := sqDist(r, centroids[labels[i]]); d > farD {
						far, farD = i, d
					}
				}
				if far >= 0 {
					taken[far] = true
					copy(centroids[c], rows[far])
				}
				continue
			}
			floats.ScaleTo(centroids[c], 1/float64(counts[c]), sums[c])
		}
	}
	var inertia float64
	for i, r := range rows {
		c, d := nearest(r, centroids)
		labels[i] = c
		inertia += d
	}
	return &KMeans{Centroids: centroids, Inertia: inertia, Iters: iter}
}

// nearest returns the index of the closest centroid and the squared distance to it.
func nearest(x []float64, centroids [][]float64) (int, float64) {
	best, bestD := 0, math.Inf(1)
	for c, cen := range centroids {
		if d := sqDist(x, cen); d < bestD {
			best, bestD = c, d
		}
	}
	return best, bestD
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
