// Package domain holds the types shared by every stage of the climate
// pipeline: column names, the feature matrix, and the error taxonomy.
package domain

// Nominal column names of the climate dataset.
const (
	ColYear          = "Year"
	ColCountry       = "Country"
	ColTemperature   = "Avg_Temperature_degC"
	ColCO2           = "CO2_Emissions_tons_per_capita"
	ColSeaLevel      = "Sea_Level_Rise_mm"
	ColRainfall      = "Rainfall_mm"
	ColPopulation    = "Population"
	ColRenewable     = "Renewable_Energy_pct"
	ColExtremeEvents = "Extreme_Weather_Events"
	ColForestArea    = "Forest_Area_pct"

	// Derived columns attached by the analysis run.
	ColCluster = "Cluster"
	ColAnomaly = "Anomaly"
)

// Anomaly labels.
const (
	Inlier  = 1
	Outlier = -1
)

// RequiredColumns lists the columns a validated batch run expects.
func RequiredColumns() []string {
	return []string{
		ColYear, ColCountry, ColTemperature, ColCO2, ColSeaLevel, ColRainfall,
		ColPopulation, ColRenewable, ColExtremeEvents, ColForestArea,
	}
}

// IsDerived reports whether name is a column produced by the pipeline itself.
func IsDerived(name string) bool {
	return name == ColCluster || name == ColAnomaly
}
