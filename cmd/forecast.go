package cmd

import (
	"fmt"

	"github.com/KaramelBytes/climascope/internal/domain"
	"github.com/KaramelBytes/climascope/internal/pipeline"
	"github.com/KaramelBytes/climascope/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	fcInput   inputFlags
	fcOutput  string
	fcPeriods int
	fcUnit    string
	fcWidth   float64
)

var forecastCmd = &cobra.Command{
	Use:   "forecast <file>",
	Short: "Forecast the yearly average temperature trend of a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("periods") {
			c.ForecastPeriods = fcPeriods
		}
		if cmd.Flags().Changed("unit") {
			c.ForecastUnit = fcUnit
		}
		if cmd.Flags().Changed("interval-width") {
			c.IntervalWidth = fcWidth
		}
		fc, err := forecastConfig(c)
		if err != nil {
			return err
		}
		ds, err := fcInput.load(args[0])
		if err != nil {
			return err
		}
		series, model, ok, err := pipeline.Forecast(ds, fc)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("columns %s and %s are required for forecasting", domain.ColYear, domain.ColTemperature)
		}
		logger.Debug("trend fitted", zap.Float64("slope", model.Slope), zap.Float64("sigma", model.Sigma), zap.Int("observations", model.N))
		if fcOutput == "" {
			return series.WriteCSV(cmd.OutOrStdout())
		}
		if err := utils.WriteWith(fcOutput, series.WriteCSV); err != nil {
			return fmt.Errorf("write forecast: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d forecast rows to %s (slope %.4f per year from %d observations)\n",
			series.Len(), fcOutput, model.Slope, model.N)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(forecastCmd)
	fcInput.register(forecastCmd)
	forecastCmd.Flags().StringVarP(&fcOutput, "output", "o", "", "write the forecast CSV here instead of stdout")
	forecastCmd.Flags().IntVar(&fcPeriods, "periods", 30, "forecast horizon in units (overrides config)")
	forecastCmd.Flags().StringVar(&fcUnit, "unit", "years", "forecast step: years | days (overrides config)")
	forecastCmd.Flags().Float64Var(&fcWidth, "interval-width", 0.8, "prediction interval width in (0, 1) (overrides config)")
}
