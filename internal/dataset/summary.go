package dataset

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// SummaryOptions controls Summarize.
type SummaryOptions struct {
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// GroupBy computes per-group means for the named column (e.g. Country).
	GroupBy string
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// OutlierThreshold is the robust |z| cutoff (MAD based); 0 disables outlier counts.
	OutlierThreshold float64
}

// DefaultSummaryOptions returns reasonable defaults for dataset summaries.
func DefaultSummaryOptions() SummaryOptions {
	return SummaryOptions{SampleRows: 5, OutlierThreshold: 3.5}
}

// Summary is a markdown-friendly description of a Dataset.
type Summary struct {
	Name     string
	Rows     int
	Cols     []ColumnSummary
	Samples  [][]string
	Groups   []GroupSummary
	Corr     []PairCorr
	Warnings []string
}

// ColumnSummary captures inferred type and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    Kind
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min, Max, Mean, Std float64
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
	TopValues        []CategoryCount
}

type CategoryCount struct {
	Value string
	Count int
}

// GroupSummary holds per-group means of numeric columns.
type GroupSummary struct {
	Key   string
	Size  int
	Means map[string]float64
}

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A, B string
	R    float64
}

// Summarize computes per-column statistics for ds.
func Summarize(ds *Dataset, opt SummaryOptions) *Summary {
	s := &Summary{Name: ds.Name, Rows: ds.Len()}
	var numeric []*Column
	for _, c := range ds.Columns {
		miss := c.Missing()
		cs := ColumnSummary{Name: c.Name, Kind: c.Kind, NonNull: ds.Len() - miss, Missing: miss}
		switch c.Kind {
		case KindNumeric:
			numeric = append(numeric, c)
			vals := present(c.Values)
			if len(vals) > 0 {
				cs.Min, cs.Max = vals[0], vals[0]
				for _, v := range vals {
					cs.Min = math.Min(cs.Min, v)
					cs.Max = math.Max(cs.Max, v)
				}
				cs.Mean = stat.Mean(vals, nil)
				if len(vals) > 1 {
					cs.Std = stat.StdDev(vals, nil)
				}
			}
			if opt.OutlierThreshold > 0 && len(vals) >= 8 {
				cs.OutlierThreshold = opt.OutlierThreshold
				cs.OutliersCount, cs.OutliersMaxAbsZ = robustOutliers(vals, opt.OutlierThreshold)
			}
		case KindCategorical:
			cs.TopValues, cs.Unique = topValues(c.Raw, 8)
		}
		s.Cols = append(s.Cols, cs)
	}

	n := opt.SampleRows
	if n > ds.Len() {
		n = ds.Len()
	}
	for i := 0; i < n; i++ {
		row := make([]string, len(ds.Columns))
		for j, c := range ds.Columns {
			row[j] = c.Raw[i]
		}
		s.Samples = append(s.Samples, row)
	}

	if opt.GroupBy != "" {
		if g, ok := ds.Column(opt.GroupBy); ok {
			s.Groups = groupMeans(g, numeric)
		} else {
			s.Warnings = append(s.Warnings, fmt.Sprintf("group-by column %q not found", opt.GroupBy))
		}
	}
	if opt.Correlations && len(numeric) >= 2 {
		s.Corr = correlations(numeric)
	}
	return s
}

func present(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func topValues(raw []string, limit int) ([]CategoryCount, int) {
	counts := map[string]int{}
	for _, v := range raw {
		if isMissingToken(v) {
			continue
		}
		counts[v]++
	}
	tops := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > limit {
		tops = tops[:limit]
	}
	return tops, len(counts)
}

func groupMeans(key *Column, numeric []*Column) []GroupSummary {
	type acc struct {
		size int
		sum  map[string]float64
		cnt  map[string]int
	}
	groups := map[string]*acc{}
	for i, k := range key.Raw {
		if isMissingToken(k) {
			continue
		}
		a := groups[k]
		if a == nil {
			a = &acc{sum: map[string]float64{}, cnt: map[string]int{}}
			groups[k] = a
		}
		a.size++
		for _, c := range numeric {
			if c == key || math.IsNaN(c.Values[i]) {
				continue
			}
			a.sum[c.Name] += c.Values[i]
			a.cnt[c.Name]++
		}
	}
	out := make([]GroupSummary, 0, len(groups))
	for k, a := range groups {
		g := GroupSummary{Key: k, Size: a.size, Means: map[string]float64{}}
		for name, sum := range a.sum {
			g.Means[name] = sum / float64(a.cnt[name])
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size == out[j].Size {
			return out[i].Key < out[j].Key
		}
		return out[i].Size > out[j].Size
	})
	if len(out) > 20 {
		out = out[:20]
	}
	return out
}

// correlations computes pairwise Pearson r over rows where both values are present.
func correlations(numeric []*Column) []PairCorr {
	var pairs []PairCorr
	for a := 0; a < len(numeric); a++ {
		for b := a + 1; b < len(numeric); b++ {
			var xs, ys []float64
			for i := range numeric[a].Values {
				x, y := numeric[a].Values[i], numeric[b].Values[i]
				if math.IsNaN(x) || math.IsNaN(y) {
					continue
				}
				xs = append(xs, x)
				ys = append(ys, y)
			}
			if len(xs) < 2 {
				continue
			}
			r := stat.Correlation(xs, ys, nil)
			if math.IsNaN(r) || math.IsInf(r, 0) {
				continue
			}
			pairs = append(pairs, PairCorr{A: numeric[a].Name, B: numeric[b].Name, R: r})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if len(pairs) > 10 {
		pairs = pairs[:10]
	}
	return pairs
}

// robustOutliers counts values whose modified z-score exceeds thr.
func robustOutliers(vals []float64, thr float64) (int, float64) {
	median, mad := medianMAD(vals)
	if mad == 0 {
		return 0, 0
	}
	var cnt int
	var maxAbsZ float64
	for _, v := range vals {
		az := math.Abs(0.6745 * (v - median) / mad)
		if az > thr {
			cnt++
		}
		maxAbsZ = math.Max(maxAbsZ, az)
	}
	return cnt, maxAbsZ
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	median = stat.Quantile(0.5, stat.LinInterp, cp, nil)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = stat.Quantile(0.5, stat.LinInterp, dev, nil)
	return median, mad
}

// Markdown renders a compact report suitable for standalone docs.
func (s *Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if s.Name != "" {
		fmt.Fprintf(&b, "File: %s\n", s.Name)
	}
	fmt.Fprintf(&b, "Rows: %d\n", s.Rows)
	fmt.Fprintf(&b, "Columns: %d\n\n", len(s.Cols))

	b.WriteString("[SCHEMA]\n")
	for _, c := range s.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		fmt.Fprintf(&b, "- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.Kind, c.NonNull, missPct)
		switch c.Kind {
		case KindNumeric:
			fmt.Fprintf(&b, " - min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std)
			if c.OutlierThreshold > 0 {
				fmt.Fprintf(&b, "; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold)
			}
		case KindCategorical:
			if len(c.TopValues) > 0 {
				b.WriteString(" - top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					fmt.Fprintf(&b, "%s(%d)", safeVal(kv.Value), kv.Count)
				}
				if c.Unique > len(c.TopValues) {
					fmt.Fprintf(&b, "; unique=%d", c.Unique)
				}
			}
		}
		b.WriteString("\n")
	}
	if len(s.Groups) > 0 {
		b.WriteString("\n[GROUP-BY SUMMARY]\n")
		for _, g := range s.Groups {
			fmt.Fprintf(&b, "- %s (n=%d)\n", safeVal(g.Key), g.Size)
			keys := make([]string, 0, len(g.Means))
			for k := range g.Means {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if len(keys) > 6 {
				keys = keys[:6]
			}
			for _, k := range keys {
				fmt.Fprintf(&b, "  • %s: mean %.4g\n", k, g.Means[k])
			}
		}
	}
	if len(s.Corr) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, p := range s.Corr {
			fmt.Fprintf(&b, "- %s ~ %s: r=%.3f\n", p.A, p.B, p.R)
		}
	}
	if len(s.Samples) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n| ")
		for i, c := range s.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c.Name))
		}
		b.WriteString(" |\n|")
		for range s.Cols {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, row := range s.Samples {
			b.WriteString("| ")
			for i, val := range row {
				if i > 0 {
					b.WriteString(" | ")
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	if len(s.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range s.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
