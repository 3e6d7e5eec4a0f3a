package domain

import (
	"fmt"
	"math"
	"slices"
)

// FeatureMatrix is a row-major numeric matrix with named columns.
// Missing cells are NaN.
type FeatureMatrix struct {
	Columns []string
	Rows    [][]float64
}

// NumRows returns the number of rows.
func (m FeatureMatrix) NumRows() int { return len(m.Rows) }

// NumCols returns the number of columns.
func (m FeatureMatrix) NumCols() int { return len(m.Columns) }

// Column copies column j out of the matrix.
func (m FeatureMatrix) Column(j int) []float64 {
	out := make([]float64, len(m.Rows))
	for i, r := range m.Rows {
		out[i] = r[j]
	}
	return out
}

// HasMissing reports whether any cell is NaN.
func (m FeatureMatrix) HasMissing() bool {
	for _, r := range m.Rows {
		for _, v := range r {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (m FeatureMatrix) Clone() FeatureMatrix {
	out := FeatureMatrix{Columns: slices.Clone(m.Columns), Rows: make([][]float64, len(m.Rows))}
	for i, r := range m.Rows {
		out.Rows[i] = slices.Clone(r)
	}
	return out
}

// CheckColumns returns a ConfigurationError when m's columns differ from want
// in either set or order.
func (m FeatureMatrix) CheckColumns(component string, want []string) error {
	if slices.Equal(m.Columns, want) {
		return nil
	}
	return &ConfigurationError{
		Component: component,
		Reason:    fmt.Sprintf("feature columns %v do not match trained columns %v", m.Columns, want),
	}
}

// CheckWidth returns a ConfigurationError when m has a different column count than want.
func (m FeatureMatrix) CheckWidth(component string, want int) error {
	if m.NumCols() == want {
		for i, r := range m.Rows {
			if len(r) != want {
				return &ConfigurationError{
					Component: component,
					Reason:    fmt.Sprintf("row %d has %d values, expected %d", i, len(r), want),
				}
			}
		}
		return nil
	}
	return &ConfigurationError{
		Component: component,
		Reason:    fmt.Sprintf("got %d feature columns, model was fitted on %d", m.NumCols(), want),
	}
}
