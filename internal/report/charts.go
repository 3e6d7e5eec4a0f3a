package report

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"time"

	"github.com/KaramelBytes/climascope/internal/domain"
	"github.com/KaramelBytes/climascope/internal/forecast"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	colorBar      = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	colorInlier   = color.RGBA{B: 255, A: 255}
	colorOutlier  = color.RGBA{R: 255, A: 255}
	colorTrend    = color.RGBA{R: 0, G: 100, B: 0, A: 255}
	colorForecast = color.RGBA{R: 0, G: 114, B: 178, A: 255}
	colorBand     = color.RGBA{R: 0, G: 114, B: 178, A: 60}
)

// clusterChart draws a count bar per cluster label.
func clusterChart(path string, clusters []int) error {
	counts := make(map[int]int)
	for _, c := range clusters {
		counts[c]++
	}
	keys := make([]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	values := make(plotter.Values, len(keys))
	labels := make([]string, len(keys))
	for i, k := range keys {
		values[i] = float64(counts[k])
		labels[i] = fmt.Sprint(k)
	}

	p := plot.New()
	p.Title.Text = "K-Means Cluster Distribution"
	p.X.Label.Text = "Cluster"
	p.Y.Label.Text = "count"

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return fmt.Errorf("cluster bars: %w", err)
	}
	bars.Color = colorBar
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)
	p.Y.Min = 0

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// anomalyChart scatters temperature against CO2, outliers in red.
func anomalyChart(path string, temp, co2 []float64, anomalies []int) error {
	var in, out plotter.XYs
	for i := range anomalies {
		if math.IsNaN(temp[i]) || math.IsNaN(co2[i]) {
			continue
		}
		pt := plotter.XY{X: temp[i], Y: co2[i]}
		if anomalies[i] == domain.Outlier {
			out = append(out, pt)
		} else {
			in = append(in, pt)
		}
	}

	p := plot.New()
	p.Title.Text = "Anomaly Detection (Red = Outliers)"
	p.X.Label.Text = domain.ColTemperature
	p.Y.Label.Text = domain.ColCO2
	p.Add(plotter.NewGrid())

	for _, grp := range []struct {
		name string
		xys  plotter.XYs
		c    color.Color
	}{
		{"1", in, colorInlier},
		{"-1", out, colorOutlier},
	} {
		if len(grp.xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(grp.xys)
		if err != nil {
			return fmt.Errorf("anomaly scatter: %w", err)
		}
		s.GlyphStyle.Color = grp.c
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(3)
		p.Add(s)
		p.Legend.Add(grp.name, s)
	}
	p.Legend.Top = true

	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

// trendChart draws the yearly mean temperature with point markers.
func trendChart(path string, obs []forecast.Observation) error {
	pts := make(plotter.XYs, len(obs))
	for i, o := range obs {
		pts[i] = plotter.XY{X: decimalYear(o.Time), Y: o.Value}
	}

	p := plot.New()
	p.Title.Text = "Average Temperature Over Years"
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Temperature (degC)"
	p.Add(plotter.NewGrid())

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return fmt.Errorf("trend line: %w", err)
	}
	line.Color = colorTrend
	line.Width = vg.Points(2)
	points.GlyphStyle.Color = colorTrend
	points.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(line, points)

	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}

// forecastChart draws observations, the fitted trend and the uncertainty band.
func forecastChart(path string, obs []forecast.Observation, s forecast.Series) error {
	n := s.Len()
	yhat := make(plotter.XYs, n)
	band := make(plotter.XYs, 0, 2*n)
	for i, pt := range s.Points {
		x := decimalYear(pt.Time)
		yhat[i] = plotter.XY{X: x, Y: pt.Yhat}
		band = append(band, plotter.XY{X: x, Y: pt.YhatUpper})
	}
	for i := n - 1; i >= 0; i-- {
		pt := s.Points[i]
		band = append(band, plotter.XY{X: decimalYear(pt.Time), Y: pt.YhatLower})
	}

	p := plot.New()
	p.Title.Text = "Temperature Forecast"
	p.X.Label.Text = "ds"
	p.Y.Label.Text = "y"
	p.Add(plotter.NewGrid())

	poly, err := plotter.NewPolygon(band)
	if err != nil {
		return fmt.Errorf("forecast band: %w", err)
	}
	poly.Color = colorBand
	poly.LineStyle.Width = vg.Length(0)
	p.Add(poly)

	line, err := plotter.NewLine(yhat)
	if err != nil {
		return fmt.Errorf("forecast line: %w", err)
	}
	line.Color = colorForecast
	line.Width = vg.Points(2)
	p.Add(line)
	p.Legend.Add("yhat", line)

	if len(obs) > 0 {
		pts := make(plotter.XYs, len(obs))
		for i, o := range obs {
			pts[i] = plotter.XY{X: decimalYear(o.Time), Y: o.Value}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("forecast observations: %w", err)
		}
		sc.GlyphStyle.Color = color.Black
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add("observed", sc)
	}
	p.Legend.Top = true
	p.Legend.Left = true

	return p.Save(10*vg.Inch, 6*vg.Inch, path)
}

// decimalYear maps t to a fractional year so yearly and daily horizons share an axis.
func decimalYear(t time.Time) float64 {
	start := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	return float64(t.Year()) + t.Sub(start).Seconds()/end.Sub(start).Seconds()
}
