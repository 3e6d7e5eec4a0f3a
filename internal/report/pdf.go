package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/climascope/internal/domain"
	"github.com/KaramelBytes/climascope/internal/forecast"
	"github.com/go-pdf/fpdf"
)

const conclusion = "This report provides an analysis of climate data, including K-Means clustering " +
	"to group similar regions, anomaly detection to identify unusual patterns, and trend " +
	"forecasting for temperature over time."

func writePDF(w io.Writer, in Input, files Files) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Climate Analysis Report", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(190, 10, "Climate Analysis Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(190, 10, "Clustering, Anomaly Detection, and Trend Forecasting", "", 1, "L", false, 0, "")
	if in.RunID != "" {
		pdf.SetFont("Arial", "", 9)
		meta := "Run " + in.RunID
		if !in.Generated.IsZero() {
			meta += " - " + in.Generated.UTC().Format("2006-01-02 15:04 MST")
		}
		pdf.CellFormat(190, 6, meta, "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(190, 7, "Conclusion:\n"+conclusion, "", "L", false)
	pdf.Ln(5)

	section(pdf, "Cluster Summary:", valueCounts(domain.ColCluster, in.Clusters))
	section(pdf, "Anomaly Summary:", valueCounts(domain.ColAnomaly, in.Anomalies))
	if in.Forecast != nil {
		section(pdf, "Temperature Forecast (First 5 rows):", forecast.FormatPoints(in.Forecast.Head(forecastHeadN)))
	}

	for _, img := range []string{files.ClusterChart, files.AnomalyChart, files.TrendChart, files.ForecastPlot} {
		if img == "" {
			continue
		}
		pdf.ImageOptions(img, 10, 0, 180, 0, true, fpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}, 0, "")
		pdf.Ln(5)
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func section(pdf *fpdf.Fpdf, title, body string) {
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, title, "", 1, "L", false, 0, "")
	pdf.SetFont("Courier", "", 10)
	pdf.MultiCell(190, 5, strings.TrimRight(body, "\n"), "", "L", false)
	pdf.Ln(5)
}

// valueCounts renders labels as a two-column table, most frequent first.
func valueCounts(name string, labels []int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %s\n", name, "count")
	for _, lc := range domain.ValueCounts(labels) {
		fmt.Fprintf(&b, "%-8d %d\n", lc.Label, lc.Count)
	}
	return b.String()
}
