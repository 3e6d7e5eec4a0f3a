// Package forecast fits an additive trend model to a yearly aggregated
// series and projects it forward with uncertainty bounds.
package forecast

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/climascope/internal/dataset"
	"github.com/KaramelBytes/climascope/internal/domain"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Unit is the step between consecutive forecast points.
type Unit int

const (
	Years Unit = iota
	Days
)

func (u Unit) String() string {
	if u == Days {
		return "days"
	}
	return "years"
}

// ParseUnit maps a config value to a Unit. There is no default: an empty
// value is an error so the horizon is never guessed.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "years", "year", "y":
		return Years, nil
	case "days", "day", "d":
		return Days, nil
	default:
		return Years, fmt.Errorf("invalid forecast unit: %q (use years or days)", s)
	}
}

// Step advances t by n units.
func (u Unit) Step(t time.Time, n int) time.Time {
	if u == Days {
		return t.AddDate(0, 0, n)
	}
	return t.AddDate(n, 0, 0)
}

// Observation is one aggregated point of the input series.
type Observation struct {
	Time  time.Time
	Value float64
}

// Config controls Forecast.
type Config struct {
	Periods       int
	Unit          Unit
	IntervalWidth float64
}

// DefaultConfig projects 30 yearly points with an 80% interval.
func DefaultConfig() Config {
	return Config{Periods: 30, Unit: Years, IntervalWidth: 0.8}
}

// Aggregate averages valueCol per distinct value of timeCol, skipping rows
// where either is missing. ok is false when either column is absent or not
// numeric, in which case forecasting should be skipped.
func Aggregate(ds *dataset.Dataset, timeCol, valueCol string) (obs []Observation, ok bool) {
	years, ok1 := ds.NumericValues(timeCol)
	vals, ok2 := ds.NumericValues(valueCol)
	if !ok1 || !ok2 {
		return nil, false
	}
	sum := map[int]float64{}
	cnt := map[int]int{}
	for i := range years {
		if math.IsNaN(years[i]) || math.IsNaN(vals[i]) {
			continue
		}
		y := int(math.Round(years[i]))
		sum[y] += vals[i]
		cnt[y]++
	}
	keys := make([]int, 0, len(sum))
	for y := range sum {
		keys = append(keys, y)
	}
	sort.Ints(keys)
	obs = make([]Observation, len(keys))
	for i, y := range keys {
		obs[i] = Observation{Time: time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC), Value: sum[y] / float64(cnt[y])}
	}
	return obs, true
}

// Model is a fitted linear trend with residual statistics for intervals.
type Model struct {
	Start         time.Time
	Observed      []time.Time
	Intercept     float64
	Slope         float64 // per year
	Sigma         float64 // residual standard error
	N             int
	MeanT         float64
	Sxx           float64
	IntervalWidth float64
}

// Fit fits y(t) = intercept + slope*t on t in fractional years since the
// first observation. Observations must be sorted by time and distinct.
func Fit(obs []Observation, intervalWidth float64) (*Model, error) {
	if len(obs) < 2 {
		return nil, &domain.InsufficientDataError{Have: len(obs), Need: 2}
	}
	if intervalWidth <= 0 || intervalWidth >= 1 {
		return nil, &domain.ConfigurationError{Component: "trend forecaster", Reason: fmt.Sprintf("interval width must be in (0, 1), got %g", intervalWidth)}
	}
	start := obs[0].Time
	x := make([]float64, len(obs))
	y := make([]float64, len(obs))
	m := &Model{Start: start, N: len(obs), IntervalWidth: intervalWidth, Observed: make([]time.Time, len(obs))}
	for i, o := range obs {
		x[i] = yearsSince(start, o.Time)
		y[i] = o.Value
		m.Observed[i] = o.Time
	}
	m.Intercept, m.Slope = stat.LinearRegression(x, y, nil, false)
	m.MeanT = stat.Mean(x, nil)
	for _, xi := range x {
		m.Sxx += (xi - m.MeanT) * (xi - m.MeanT)
	}
	if m.Sxx == 0 {
		return nil, &domain.InsufficientDataError{Have: 1, Need: 2}
	}
	if m.N > 2 {
		var sse float64
		for i := range x {
			r := y[i] - m.at(x[i])
			sse += r * r
		}
		m.Sigma = math.Sqrt(sse / float64(m.N-2))
	}
	return m, nil
}

func (m *Model) at(t float64) float64 { return m.Intercept + m.Slope*t }

// Predict returns one point per observed time plus periods future points,
// stepping one unit at a time from the last observation.
func (m *Model) Predict(periods int, unit Unit) Series {
	if periods < 0 {
		periods = 0
	}
	times := append([]time.Time(nil), m.Observed...)
	last := m.Observed[len(m.Observed)-1]
	for k := 1; k <= periods; k++ {
		times = append(times, unit.Step(last, k))
	}
	var tq float64
	if m.N > 2 && m.Sigma > 0 {
		tq = distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(m.N - 2)}.Quantile(0.5 + m.IntervalWidth/2)
	}
	pts := make([]Point, len(times))
	for i, ts := range times {
		t := yearsSince(m.Start, ts)
		yhat := m.at(t)
		half := tq * m.Sigma * math.Sqrt(1+1/float64(m.N)+(t-m.MeanT)*(t-m.MeanT)/m.Sxx)
		pts[i] = Point{Time: ts, Yhat: yhat, YhatLower: yhat - half, YhatUpper: yhat + half, Future: i >= len(m.Observed)}
	}
	return Series{Points: pts}
}

// Forecast fits obs and predicts cfg.Periods points past the last observation.
func Forecast(obs []Observation, cfg Config) (Series, *Model, error) {
	m, err := Fit(obs, cfg.IntervalWidth)
	if err != nil {
		return Series{}, nil, err
	}
	return m.Predict(cfg.Periods, cfg.Unit), m, nil
}

func yearsSince(start, t time.Time) float64 {
	return t.Sub(start).Hours() / 24 / 365.25
}

// Point is one row of a forecast.
type Point struct {
	Time      time.Time
	Yhat      float64
	YhatLower float64
	YhatUpper float64
	Future    bool
}

// Series is an ordered forecast covering observed and future times.
type Series struct {
	Points []Point
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Points) }

// Head returns up to n leading points.
func (s Series) Head(n int) []Point {
	if n > len(s.Points) {
		n = len(s.Points)
	}
	return s.Points[:n]
}

// WriteCSV writes ds,yhat,yhat_lower,yhat_upper rows.
func (s Series) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ds", "yhat", "yhat_lower", "yhat_upper"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, p := range s.Points {
		rec := []string{
			p.Time.Format("2006-01-02"),
			strconv.FormatFloat(p.Yhat, 'f', -1, 64),
			strconv.FormatFloat(p.YhatLower, 'f', -1, 64),
			strconv.FormatFloat(p.YhatUpper, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write forecast row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// String renders the points as a fixed-width table.
func (s Series) String() string {
	return FormatPoints(s.Points)
}

// FormatPoints renders points as a fixed-width table for reports.
func FormatPoints(pts []Point) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s  %9s  %10s  %10s\n", "ds", "yhat", "yhat_lower", "yhat_upper")
	for _, p := range pts {
		fmt.Fprintf(&b, "%-10s  %9.4f  %10.4f  %10.4f\n", p.Time.Format("2006-01-02"), p.Yhat, p.YhatLower, p.YhatUpper)
	}
	return b.String()
}
