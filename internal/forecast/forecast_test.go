package forecast

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/climascope/internal/dataset"
	"github.com/KaramelBytes/climascope/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jan1(y int) time.Time { return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC) }

// linearObs returns yearly points on 14 + 0.02*(year-2000) plus small noise.
func linearObs(from, to int, seed int64) []Observation {
	rng := rand.New(rand.NewSource(seed))
	var obs []Observation
	for y := from; y <= to; y++ {
		obs = append(obs, Observation{Time: jan1(y), Value: 14 + 0.02*float64(y-2000) + 0.03*rng.NormFloat64()})
	}
	return obs
}

func TestForecast_ContinuesLinearTrend(t *testing.T) {
	obs := linearObs(2000, 2020, 1)
	s, m, err := Forecast(obs, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 21+30, s.Len())
	assert.InDelta(t, 0.02, m.Slope, 0.005)

	for _, p := range s.Points[21:] {
		require.True(t, p.Future)
		y := p.Time.Year()
		want := 14 + 0.02*float64(y-2000)
		assert.InDelta(t, want, p.Yhat, 0.15, "year %d", y)
		assert.LessOrEqual(t, p.YhatLower, p.Yhat)
		assert.GreaterOrEqual(t, p.YhatUpper, p.Yhat)
	}
	assert.Equal(t, jan1(2021), s.Points[21].Time)
	assert.Equal(t, jan1(2050), s.Points[s.Len()-1].Time)

	// Intervals widen with distance from the observed range.
	first := s.Points[21]
	last := s.Points[s.Len()-1]
	assert.Greater(t, last.YhatUpper-last.YhatLower, first.YhatUpper-first.YhatLower)
}

func TestForecast_LengthHistoricalPlusPeriods(t *testing.T) {
	obs := linearObs(2000, 2019, 2)
	s, _, err := Forecast(obs, Config{Periods: 30, Unit: Years, IntervalWidth: 0.8})
	require.NoError(t, err)
	assert.Equal(t, 50, s.Len())
	assert.Equal(t, jan1(2049), s.Points[49].Time)
}

func TestForecast_DailyUnit(t *testing.T) {
	obs := linearObs(2000, 2009, 3)
	s, _, err := Forecast(obs, Config{Periods: 365, Unit: Days, IntervalWidth: 0.8})
	require.NoError(t, err)
	assert.Equal(t, 10+365, s.Len())
	assert.Equal(t, jan1(2009).AddDate(0, 0, 1), s.Points[10].Time)
	assert.Equal(t, jan1(2009).AddDate(0, 0, 365), s.Points[s.Len()-1].Time)
}

func TestForecast_InsufficientData(t *testing.T) {
	_, _, err := Forecast([]Observation{{Time: jan1(2000), Value: 14}}, DefaultConfig())
	var ie *domain.InsufficientDataError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 1, ie.Have)

	_, _, err = Forecast(nil, DefaultConfig())
	require.ErrorAs(t, err, &ie)
}

func TestAggregate_SingleYearDatasetIsInsufficient(t *testing.T) {
	in := "Year,Country,Avg_Temperature_degC\n2010,Chile,12\n2010,Peru,18\n2010,Spain,16\n"
	ds, err := dataset.ReadCSV(strings.NewReader(in), "one-year.csv", dataset.DefaultOptions())
	require.NoError(t, err)

	obs, ok := Aggregate(ds, domain.ColYear, domain.ColTemperature)
	require.True(t, ok)
	require.Len(t, obs, 1)
	assert.InDelta(t, 15.333333, obs[0].Value, 1e-5)

	_, _, err = Forecast(obs, DefaultConfig())
	var ie *domain.InsufficientDataError
	require.ErrorAs(t, err, &ie)
}

func TestAggregate_MeansPerYearAndSkipsMissing(t *testing.T) {
	in := "Year,Avg_Temperature_degC\n2001,10\n2000,4\n2000,6\n2001,\n,99\n"
	ds, err := dataset.ReadCSV(strings.NewReader(in), "agg.csv", dataset.DefaultOptions())
	require.NoError(t, err)

	obs, ok := Aggregate(ds, domain.ColYear, domain.ColTemperature)
	require.True(t, ok)
	assert.Equal(t, []Observation{{Time: jan1(2000), Value: 5}, {Time: jan1(2001), Value: 10}}, obs)

	_, ok = Aggregate(ds, domain.ColYear, "Missing")
	assert.False(t, ok)
}

func TestFit_TwoPointsCollapseBounds(t *testing.T) {
	s, _, err := Forecast([]Observation{{jan1(2000), 1}, {jan1(2001), 2}}, Config{Periods: 2, Unit: Years, IntervalWidth: 0.8})
	require.NoError(t, err)
	require.Equal(t, 4, s.Len())
	for _, p := range s.Points {
		assert.Equal(t, p.Yhat, p.YhatLower)
		assert.Equal(t, p.Yhat, p.YhatUpper)
	}
	assert.InDelta(t, 4, s.Points[3].Yhat, 0.01)
}

func TestFit_InvalidIntervalWidth(t *testing.T) {
	_, err := Fit(linearObs(2000, 2005, 4), 1.5)
	var ce *domain.ConfigurationError
	require.ErrorAs(t, err, &ce)
}

func TestWriteCSV(t *testing.T) {
	s := Series{Points: []Point{{Time: jan1(2020), Yhat: 1.5, YhatLower: 1, YhatUpper: 2}}}
	var buf bytes.Buffer
	require.NoError(t, s.WriteCSV(&buf))
	assert.Equal(t, "ds,yhat,yhat_lower,yhat_upper\n2020-01-01,1.5,1,2\n", buf.String())
	assert.Contains(t, s.String(), "2020-01-01")
}

func TestParseUnit(t *testing.T) {
	for in, want := range map[string]Unit{"years": Years, "Y": Years, "days": Days, " Day ": Days} {
		got, err := ParseUnit(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseUnit("")
	require.Error(t, err)
	_, err = ParseUnit(fmt.Sprint(math.Pi))
	require.Error(t, err)
}
