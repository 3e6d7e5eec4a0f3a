// Package dataset loads delimited and XLSX climate tables into an ordered,
// column-typed Dataset and writes annotated copies back out.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Kind is the inferred type of a column.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindDatetime    Kind = "datetime"
	KindCategorical Kind = "categorical"
	KindText        Kind = "text"
	KindUnknown     Kind = "unknown"
)

// Column is one named column. Raw keeps the original cells so export
// round-trips the input; Values is populated only for numeric columns,
// with NaN for missing cells.
type Column struct {
	Name   string
	Kind   Kind
	Raw    []string
	Values []float64
}

// Missing counts empty cells (NaN for numeric columns).
func (c *Column) Missing() int {
	n := 0
	if c.Kind == KindNumeric {
		for _, v := range c.Values {
			if math.IsNaN(v) {
				n++
			}
		}
		return n
	}
	for _, s := range c.Raw {
		if isMissingToken(s) {
			n++
		}
	}
	return n
}

// Dataset is an ordered collection of records with typed columns.
type Dataset struct {
	Name    string
	Columns []*Column
	rows    int
	index   map[string]int
}

// New builds a Dataset from a header and string records, inferring each column's kind.
// Short records are padded with empty cells.
func New(name string, header []string, records [][]string, opt Options) *Dataset {
	ds := &Dataset{Name: name, rows: len(records), index: make(map[string]int, len(header))}
	for j, h := range header {
		col := &Column{Name: strings.TrimSpace(h), Raw: make([]string, len(records))}
		for i, rec := range records {
			if j < len(rec) {
				col.Raw[i] = strings.TrimSpace(rec[j])
			}
		}
		inferKind(col, opt)
		ds.index[col.Name] = j
		ds.Columns = append(ds.Columns, col)
	}
	return ds
}

// Len returns the number of records.
func (d *Dataset) Len() int { return d.rows }

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// Column looks a column up by exact name.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.Columns[i], true
}

// Has reports whether the named column exists.
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// NumericValues returns the values of a numeric column.
func (d *Dataset) NumericValues(name string) ([]float64, bool) {
	c, ok := d.Column(name)
	if !ok || c.Kind != KindNumeric {
		return nil, false
	}
	return c.Values, true
}

// SetIntColumn adds or replaces a numeric column holding integer labels.
func (d *Dataset) SetIntColumn(name string, vals []int) error {
	if len(vals) != d.rows {
		return fmt.Errorf("column %s: got %d values for %d rows", name, len(vals), d.rows)
	}
	col := &Column{Name: name, Kind: KindNumeric, Raw: make([]string, len(vals)), Values: make([]float64, len(vals))}
	for i, v := range vals {
		col.Raw[i] = strconv.Itoa(v)
		col.Values[i] = float64(v)
	}
	if i, ok := d.index[name]; ok {
		d.Columns[i] = col
		return nil
	}
	d.index[name] = len(d.Columns)
	d.Columns = append(d.Columns, col)
	return nil
}

// WriteCSV writes the dataset with a header row using the raw cell text.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(d.Columns))
	for i := 0; i < d.rows; i++ {
		for j, c := range d.Columns {
			rec[j] = c.Raw[i]
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// inferKind decides a column's kind. A column is numeric only when every
// non-missing cell parses as a number.
func inferKind(c *Column, opt Options) {
	var nonNil, numCnt, dtCnt, txtCnt int
	vals := make([]float64, len(c.Raw))
	for i, v := range c.Raw {
		if isMissingToken(v) {
			vals[i] = math.NaN()
			continue
		}
		nonNil++
		if x, ok := parseNumeric(v, opt); ok {
			numCnt++
			vals[i] = x
			continue
		}
		vals[i] = math.NaN()
		if _, ok := parseTimeMaybe(v); ok {
			dtCnt++
			continue
		}
		txtCnt++
	}
	switch {
	case numCnt > 0 && numCnt == nonNil:
		c.Kind = KindNumeric
		c.Values = vals
	case dtCnt > 0 && dtCnt >= txtCnt:
		c.Kind = KindDatetime
	case txtCnt > 0 && isCategorical(c.Raw):
		c.Kind = KindCategorical
	case txtCnt > 0 || numCnt > 0:
		c.Kind = KindText
	default:
		c.Kind = KindUnknown
	}
}

// isCategorical treats a column of short tokens as categorical.
func isCategorical(raw []string) bool {
	for _, v := range raw {
		if len(v) > 64 {
			return false
		}
	}
	return true
}

func isMissingToken(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "NA", "N/A", "NaN", "nan", "null", "NULL", "<NA>":
		return true
	}
	return false
}
