package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Steinwealth/UltimaBot/internal/analysis/indicators"
	"github.com/Steinwealth/UltimaBot/internal/confidence"
	"github.com/Steinwealth/UltimaBot/internal/forecast"
	"github.com/Steinwealth/UltimaBot/internal/models"
	"github.com/Steinwealth/UltimaBot/internal/risk"
	"github.com/Steinwealth/UltimaBot/internal/security"
)

func newForecastCmd(app *App) *cobra.Command {
	var (
		mode     string
		interval string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "forecast <symbol>",
		Short: "Forecast take profit and stop loss for a symbol",
		Long: `Load recent candles for the symbol, run the forecast model and show the
risk gate decision against the current account. No trade is opened.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol, err := security.ParseSymbol(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			settings := app.Modes.Active()
			if mode != "" {
				s, err := app.Modes.Settings(mode)
				if err != nil {
					return err
				}
				settings = s
			}
			if interval == "" {
				interval = app.Config.Engine.CandleInterval
			}
			if limit <= 0 {
				limit = app.Config.Engine.CandleLimit
			}

			b, err := app.Broker()
			if err != nil {
				return err
			}
			candles, err := b.GetCandles(ctx, symbol, interval, limit)
			if err != nil {
				return err
			}
			account, err := b.GetAccountInfo(ctx)
			if err != nil {
				return err
			}

			closes := make([]float64, len(candles))
			for i, c := range candles {
				closes[i] = c.Close
			}
			md := models.MarketDataFromCandles(candles, indicators.Velocity(closes, 3))
			fc := forecast.NewModel(settings.Name, app.Config.Engine.TrailToMoon).ForecastMarket(md)
			if account.ModelID == "" {
				account.ModelID = app.Config.Broker.ModelID
			}
			if model, err := app.Models.Get(account.ModelID); err == nil {
				fc.Confidence = model.Predict(confidence.ForecastFeatures(md, fc))
			}

			positions, err := b.GetOpenTrades(ctx)
			if err != nil {
				return err
			}
			var exposure float64
			for _, p := range positions {
				exposure += p.Size
			}

			d := risk.NewGate(app.riskConfig()).Evaluate(risk.Request{
				Account:      account,
				Forecast:     fc,
				Price:        md.Price,
				OpenExposure: exposure,
			})

			verdict := "approved"
			if err := risk.Rejection(symbol, d); err != nil {
				verdict = err.Error()
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":      symbol,
					"mode":        settings.Name,
					"price":       md.Price,
					"take_profit": md.Price + fc.TP,
					"stop_loss":   md.Price - fc.SL,
					"confidence":  fc.Confidence,
					"atr":         fc.ATR,
					"trend":       fc.TrendStrength,
					"exposure":    exposure,
					"decision":    d,
					"verdict":     verdict,
				})
			}

			output.Bold("%s  (%s mode, %d x %s candles)", symbol, settings.Name, len(candles), interval)
			table := NewTable(output, "Field", "Value")
			table.AddRow("Price", FormatPrice(md.Price))
			table.AddRow("Take Profit", FormatPrice(md.Price+fc.TP))
			table.AddRow("Stop Loss", FormatPrice(md.Price-fc.SL))
			table.AddRow("Confidence", FormatConfidence(fc.Confidence))
			table.AddRow("ATR", FormatPrice(fc.ATR))
			table.AddRow("Trend", fmt.Sprintf("%.2f", fc.TrendStrength))
			table.AddRow("Power Tier", fmt.Sprintf("%d", d.Tier))
			table.AddRow("Available", FormatUSD(d.AvailableCapital))
			table.AddRow("Position Size", FormatUSD(d.PositionSize))
			table.AddRow("Open Exposure", FormatUSD(exposure))
			table.Render()

			if d.Approved() {
				output.Success("Risk gate: %s", verdict)
			} else {
				output.Warning("Risk gate: %s", verdict)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "trading mode (default: active mode)")
	cmd.Flags().StringVar(&interval, "interval", "", "candle interval (default: engine.candle_interval)")
	cmd.Flags().IntVar(&limit, "limit", 0, "candles to load (default: engine.candle_limit)")
	return cmd
}
