package features

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/climascope/internal/dataset"
	"github.com/KaramelBytes/climascope/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const fullHeader = "Year,Country,Avg_Temperature_degC,CO2_Emissions_tons_per_capita,Sea_Level_Rise_mm,Rainfall_mm,Population,Renewable_Energy_pct,Extreme_Weather_Events,Forest_Area_pct"

func load(t *testing.T, in string) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.ReadCSV(strings.NewReader(in), "test.csv", dataset.DefaultOptions())
	require.NoError(t, err)
	return ds
}

func TestSelect_FullSchema(t *testing.T) {
	ds := load(t, fullHeader+"\n2000,Peru,18.2,1.9,3.1,1500,32000000,30.5,4,57.1\n2001,Peru,18.4,,3.3,1480,32500000,31.0,6,56.8\n")

	for _, p := range []Policy{Strict, Permissive} {
		fm, err := NewSelector(p, zaptest.NewLogger(t)).Select(ds)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"Avg_Temperature_degC", "CO2_Emissions_tons_per_capita", "Sea_Level_Rise_mm", "Rainfall_mm",
			"Population", "Renewable_Energy_pct", "Extreme_Weather_Events", "Forest_Area_pct",
		}, fm.Columns)
		require.Equal(t, 2, fm.NumRows())
		assert.True(t, math.IsNaN(fm.Rows[1][1]))
	}
}

func TestSelect_StrictMissingRainfall(t *testing.T) {
	header := strings.Replace(fullHeader, ",Rainfall_mm", "", 1)
	ds := load(t, header+"\n2000,Peru,18.2,1.9,3.1,32000000,30.5,4,57.1\n")

	_, err := NewSelector(Strict, zaptest.NewLogger(t)).Select(ds)
	var se *domain.SchemaError
	require.True(t, errors.As(err, &se), "want SchemaError, got %v", err)
	assert.Equal(t, []string{"Rainfall_mm"}, se.Missing)

	fm, err := NewSelector(Permissive, zaptest.NewLogger(t)).Select(ds)
	require.NoError(t, err)
	assert.NotContains(t, fm.Columns, "Rainfall_mm")
	assert.Len(t, fm.Columns, 7)
}

func TestSelect_SkipsDerivedAndTime(t *testing.T) {
	ds := load(t, "Year,Avg_Temperature_degC,Cluster,Anomaly\n2000,1.5,0,1\n")
	fm, err := NewSelector(Permissive, nil).Select(ds)
	require.NoError(t, err)
	assert.Equal(t, []string{"Avg_Temperature_degC"}, fm.Columns)
}

func TestSelect_NoNumericColumns(t *testing.T) {
	ds := load(t, "Year,Country\n2000,Peru\n")
	_, err := NewSelector(Permissive, nil).Select(ds)
	var se *domain.SchemaError
	require.ErrorAs(t, err, &se)
}

func TestSelectColumns_TrainedOrder(t *testing.T) {
	ds := load(t, "Year,Rainfall_mm,Avg_Temperature_degC\n2000,1200,5.5\n")
	s := NewSelector(Strict, nil)

	fm, err := s.SelectColumns(ds, []string{"Avg_Temperature_degC", "Rainfall_mm"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{5.5, 1200}}, fm.Rows)

	_, err = s.SelectColumns(ds, []string{"Population"})
	var ce *domain.ConfigurationError
	require.ErrorAs(t, err, &ce)
}

func TestSelectColumns_EmptyTrainedColumnBecomesNaN(t *testing.T) {
	ds := load(t, "Year,Rainfall_mm,Avg_Temperature_degC,Country\n2021,,14.5,Norway\n")
	s := NewSelector(Permissive, zaptest.NewLogger(t))

	fm, err := s.SelectColumns(ds, []string{"Avg_Temperature_degC", "Rainfall_mm"})
	require.NoError(t, err)
	require.Equal(t, 1, fm.NumRows())
	assert.Equal(t, 14.5, fm.Rows[0][0])
	assert.True(t, math.IsNaN(fm.Rows[0][1]))

	// Text columns with values are still rejected.
	_, err = s.SelectColumns(ds, []string{"Country"})
	var ce *domain.ConfigurationError
	require.ErrorAs(t, err, &ce)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("STRICT")
	require.NoError(t, err)
	assert.Equal(t, Strict, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Permissive, p)

	_, err = ParsePolicy("lenient")
	require.Error(t, err)
}
