package dataset

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const climateCSV = `Year,Country,Avg_Temperature_degC,CO2_Emissions_tons_per_capita,Rainfall_mm
2000,Norway,5.1,8.2,1200
2001,Norway,5.3,,1180
2000,Brazil,25.4,2.1,1750
2001,Brazil,NA,2.2,1800
`

func TestReadCSV_InfersKindsAndMissing(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(climateCSV), "climate.csv", DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 4, ds.Len())
	assert.Equal(t, []string{"Year", "Country", "Avg_Temperature_degC", "CO2_Emissions_tons_per_capita", "Rainfall_mm"}, ds.Names())

	country, ok := ds.Column("Country")
	require.True(t, ok)
	assert.Equal(t, KindCategorical, country.Kind)

	temp, ok := ds.NumericValues("Avg_Temperature_degC")
	require.True(t, ok)
	assert.InDelta(t, 5.1, temp[0], 1e-12)
	assert.True(t, math.IsNaN(temp[3]), "NA should parse as missing")

	co2, ok := ds.Column("CO2_Emissions_tons_per_capita")
	require.True(t, ok)
	assert.Equal(t, KindNumeric, co2.Kind)
	assert.Equal(t, 1, co2.Missing())
}

func TestReadCSV_MixedColumnIsNotNumeric(t *testing.T) {
	in := "a,b\n1,x\n2,3\n"
	ds, err := ReadCSV(strings.NewReader(in), "mixed.csv", DefaultOptions())
	require.NoError(t, err)

	b, _ := ds.Column("b")
	assert.NotEqual(t, KindNumeric, b.Kind)
	_, ok := ds.NumericValues("b")
	assert.False(t, ok)
}

func TestReadCSV_Empty(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(""), "empty.csv", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())
	assert.Empty(t, ds.Columns)
}

func TestLoadCSV_TSVByExtension(t *testing.T) {
	p := filepath.Join(t.TempDir(), "climate.tsv")
	require.NoError(t, os.WriteFile(p, []byte("Year\tRainfall_mm\n2000\t1200\n2001\t1100\n"), 0o644))

	ds, err := Load(p, DefaultOptions())
	require.NoError(t, err)
	vals, ok := ds.NumericValues("Rainfall_mm")
	require.True(t, ok)
	assert.Equal(t, []float64{1200, 1100}, vals)
}

func TestLoadCSV_MaxRows(t *testing.T) {
	opt := DefaultOptions()
	opt.MaxRows = 2
	ds, err := ReadCSV(strings.NewReader(climateCSV), "climate.csv", opt)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
}

func TestLoadXLSX(t *testing.T) {
	p := filepath.Join(t.TempDir(), "climate.xlsx")
	f := excelize.NewFile()
	rows := [][]any{
		{"Year", "Country", "Avg_Temperature_degC"},
		{2000, "Chile", 12.5},
		{2001, "Chile", 12.7},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	require.NoError(t, f.SaveAs(p))
	require.NoError(t, f.Close())

	ds, err := Load(p, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())
	temp, ok := ds.NumericValues("Avg_Temperature_degC")
	require.True(t, ok)
	assert.InDelta(t, 12.7, temp[1], 1e-9)

	opt := DefaultOptions()
	opt.Sheet = "missing"
	_, err = Load(p, opt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Available sheets: Sheet1")
}

func TestSetIntColumnAndWriteCSV(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader(climateCSV), "climate.csv", DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, ds.SetIntColumn("Cluster", []int{0, 1, 2, 0}))
	require.NoError(t, ds.SetIntColumn("Anomaly", []int{1, 1, -1, 1}))
	require.Error(t, ds.SetIntColumn("Cluster", []int{0}))

	var buf bytes.Buffer
	require.NoError(t, ds.WriteCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Year,Country,Avg_Temperature_degC,CO2_Emissions_tons_per_capita,Rainfall_mm,Cluster,Anomaly", lines[0])
	assert.Equal(t, "2001,Norway,5.3,,1180,1,1", lines[2])
	assert.Equal(t, "2000,Brazil,25.4,2.1,1750,2,-1", lines[3])
}

func TestParseNumericLocales(t *testing.T) {
	cases := []struct {
		in   string
		opt  Options
		want float64
	}{
		{"15.3", Options{}, 15.3},
		{"1.000,5", Options{}, 1000.5},
		{"12.5%", Options{}, 12.5},
		{"1 234", Options{DecimalSeparator: '.', ThousandsSeparator: ' '}, 1234},
		{"0,75", Options{DecimalSeparator: ','}, 0.75},
	}
	for _, tc := range cases {
		got, ok := parseNumeric(tc.in, tc.opt)
		require.True(t, ok, tc.in)
		assert.InDelta(t, tc.want, got, 1e-9, tc.in)
	}
	_, ok := parseNumeric("Norway", Options{})
	assert.False(t, ok)
}
