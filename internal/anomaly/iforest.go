// Package anomaly scores rows with an isolation forest: points that random
// axis-aligned splits isolate quickly are the anomalous ones.
package anomaly

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/KaramelBytes/climascope/internal/domain"
	"gonum.org/v1/gonum/stat"
)

const component = "anomaly model"

// Config controls fitting.
type Config struct {
	Contamination float64
	NEstimators   int
	MaxSamples    int
	Seed          int64
}

// DefaultConfig returns the defaults of the offline training run.
func DefaultConfig() Config {
	return Config{Contamination: 0.05, NEstimators: 100, MaxSamples: 256, Seed: 42}
}

// node is one tree node in a flat array. Leaf nodes have Left == -1.
type node struct {
	Feature int     `json:"f"`
	Split   float64 `json:"s"`
	Left    int     `json:"l"`
	Right   int     `json:"r"`
	Size    int     `json:"n"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

// IsolationForest is a fitted ensemble of isolation trees.
type IsolationForest struct {
	Columns       []string `json:"columns"`
	NumFeatures   int      `json:"num_features"`
	SampleSize    int      `json:"sample_size"`
	Contamination float64  `json:"contamination"`
	Threshold     float64  `json:"threshold"`
	Trees         []tree   `json:"trees"`
}

// Fit grows the ensemble on fm and sets the decision threshold so that
// roughly a contamination fraction of the training rows score as outliers.
func Fit(fm domain.FeatureMatrix, cfg Config) (*IsolationForest, error) {
	if cfg.Contamination <= 0 || cfg.Contamination > 0.5 {
		return nil, &domain.ConfigurationError{
			Component: component,
			Reason:    fmt.Sprintf("contamination must be in (0, 0.5], got %g", cfg.Contamination),
		}
	}
	if fm.NumRows() < 2 {
		return nil, fmt.Errorf("isolation forest: need at least 2 rows, got %d", fm.NumRows())
	}
	if fm.HasMissing() {
		return nil, errors.New("isolation forest: feature matrix contains missing values")
	}
	if err := fm.CheckWidth(component, fm.NumCols()); err != nil {
		return nil, err
	}
	if cfg.NEstimators <= 0 {
		cfg.NEstimators = 100
	}
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = 256
	}
	psi := min(cfg.MaxSamples, fm.NumRows())
	limit := int(math.Ceil(math.Log2(float64(psi))))

	f := &IsolationForest{
		Columns:       append([]string(nil), fm.Columns...),
		NumFeatures:   fm.NumCols(),
		SampleSize:    psi,
		Contamination: cfg.Contamination,
		Trees:         make([]tree, cfg.NEstimators),
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	for t := range f.Trees {
		idx := rng.Perm(fm.NumRows())[:psi]
		b := &builder{rows: fm.Rows, rng: rng, limit: limit}
		b.grow(idx, 0)
		f.Trees[t] = tree{Nodes: b.nodes}
	}

	scores := f.Scores(fm)
	sort.Float64s(scores)
	f.Threshold = stat.Quantile(1-cfg.Contamination, stat.Empirical, scores, nil)
	return f, nil
}

// Scores returns the anomaly score in (0, 1] for each row; higher is more anomalous.
func (f *IsolationForest) Scores(fm domain.FeatureMatrix) []float64 {
	norm := averagePathLength(f.SampleSize)
	out := make([]float64, fm.NumRows())
	for i, r := range fm.Rows {
		var total float64
		for _, t := range f.Trees {
			total += t.pathLength(r)
		}
		mean := total / float64(len(f.Trees))
		if norm == 0 {
			out[i] = 0.5
			continue
		}
		out[i] = math.Pow(2, -mean/norm)
	}
	return out
}

// Predict labels each row domain.Outlier (-1) or domain.Inlier (+1).
func (f *IsolationForest) Predict(fm domain.FeatureMatrix) ([]int, error) {
	if len(f.Trees) == 0 {
		return nil, errors.New("isolation forest: model is not fitted")
	}
	if err := fm.CheckWidth(component, f.NumFeatures); err != nil {
		return nil, err
	}
	scores := f.Scores(fm)
	labels := make([]int, len(scores))
	for i, s := range scores {
		if s > f.Threshold {
			labels[i] = domain.Outlier
		} else {
			labels[i] = domain.Inlier
		}
	}
	return labels, nil
}

type builder struct {
	rows  [][]float64
	rng   *rand.Rand
	limit int
	nodes []node
}

// grow appends the subtree for idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int {
	at := len(b.nodes)
	b.nodes = append(b.nodes, node{Left: -1, Right: -1, Size: len(idx)})
	if depth >= b.limit || len(idx) <= 1 {
		return at
	}
	// Only features that still vary within this node can split it.
	dim := len(b.rows[idx[0]])
	var candidates []int
	lo := make([]float64, dim)
	hi := make([]float64, dim)
	for j := 0; j < dim; j++ {
		lo[j], hi[j] = math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			v := b.rows[i][j]
			lo[j] = math.Min(lo[j], v)
			hi[j] = math.Max(hi[j], v)
		}
		if hi[j] > lo[j] {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return at
	}
	feat := candidates[b.rng.Intn(len(candidates))]
	split := lo[feat] + b.rng.Float64()*(hi[feat]-lo[feat])

	var left, right []int
	for _, i := range idx {
		if b.rows[i][feat] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[at].Feature = feat
	b.nodes[at].Split = split
	b.nodes[at].Left = l
	b.nodes[at].Right = r
	return at
}

func (t tree) pathLength(x []float64) float64 {
	depth := 0.0
	n := 0
	for {
		nd := t.Nodes[n]
		if nd.Left < 0 {
			return depth + averagePathLength(nd.Size)
		}
		if x[nd.Feature] < nd.Split {
			n = nd.Left
		} else {
			n = nd.Right
		}
		depth++
	}
}

// averagePathLength is c(n), the mean path length of an unsuccessful BST search.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	const eulerGamma = 0.5772156649015329
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

// Validate checks structural consistency of a loaded forest.
func (f *IsolationForest) Validate() error {
	if len(f.Trees) == 0 {
		return errors.New("no trees")
	}
	if f.NumFeatures != len(f.Columns) {
		return fmt.Errorf("num_features %d does not match %d columns", f.NumFeatures, len(f.Columns))
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for i, nd := range t.Nodes {
			if nd.Left < 0 {
				continue
			}
			// Children always follow their parent, which also rules out cycles.
			if nd.Feature < 0 || nd.Feature >= f.NumFeatures ||
				nd.Left <= i || nd.Left >= len(t.Nodes) || nd.Right <= i || nd.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d has an invalid node", ti)
			}
		}
	}
	return nil
}
