package domain

import "sort"

// LabelCount is one row of a value count table.
type LabelCount struct {
	Label int
	Count int
}

// ValueCounts tallies labels, most frequent first; ties order by label.
func ValueCounts(labels []int) []LabelCount {
	counts := make(map[int]int)
	for _, l := range labels {
		counts[l]++
	}
	out := make([]LabelCount, 0, len(counts))
	for l, c := range counts {
		out = append(out, LabelCount{Label: l, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// CountOf returns how many labels equal v.
func CountOf(labels []int, v int) int {
	n := 0
	for _, l := range labels {
		if l == v {
			n++
		}
	}
	return n
}
