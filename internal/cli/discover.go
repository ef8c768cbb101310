package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Steinwealth/UltimaBot/internal/discovery"
	"github.com/Steinwealth/UltimaBot/internal/models"
	"github.com/Steinwealth/UltimaBot/internal/trading"
)

func newDiscoverCmd(app *App) *cobra.Command {
	var (
		strategies []string
		failures   bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Run one discovery scan",
		Long:  "Run the configured discovery strategies once and list the candidates without trading.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if len(strategies) > 0 {
				if app.AssetClass() == models.AssetStock {
					app.Config.Discovery.StockStrategies = strategies
				} else {
					app.Config.Discovery.CryptoStrategies = strategies
				}
			}

			b, err := app.Broker()
			if err != nil {
				return err
			}
			engine, err := app.DiscoveryEngine(b, nil)
			if err != nil {
				return err
			}

			report, err := engine.Scan(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(discoverJSON(report))
			}
			if report.Skipped {
				output.Warning("Market closed, stock scan skipped")
				return nil
			}
			printCandidates(output, report.Candidates)
			if failures {
				printFailures(output, report.Failures)
			} else if n := len(report.Failures); n > 0 {
				output.Dim("%d symbols failed evaluation (use --failures to list)", n)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&strategies, "strategy", nil, "strategies to run (default: configured)")
	cmd.Flags().BoolVar(&failures, "failures", false, "list per-symbol failures")
	cmd.AddCommand(newStrategiesCmd(app))
	return cmd
}

func newStrategiesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the built-in strategies of the configured asset class",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			builtin := discovery.Strategies(app.AssetClass())
			ids := discovery.StrategyIDs(app.AssetClass())

			if output.IsJSON() {
				out := make([]map[string]interface{}, 0, len(ids))
				for _, id := range ids {
					out = append(out, map[string]interface{}{
						"id":    id,
						"name":  builtin[id].Name(),
						"quota": quotaFor(app, id),
					})
				}
				return output.JSON(out)
			}

			table := NewTable(output, "ID", "Name", "Quota")
			for _, id := range ids {
				table.AddRow(id, builtin[id].Name(), fmt.Sprintf("%d", quotaFor(app, id)))
			}
			table.Render()
			return nil
		},
	}
}

func quotaFor(app *App, id string) int {
	if q, ok := app.Config.Discovery.Quotas[strings.ToLower(id)]; ok && q >= 0 {
		return q
	}
	return discovery.DefaultQuota
}

type failureJSON struct {
	Symbol   string `json:"symbol,omitempty"`
	Strategy string `json:"strategy"`
	Error    string `json:"error"`
}

func discoverJSON(r discovery.Report) map[string]interface{} {
	cands := make([]map[string]string, len(r.Candidates))
	for i, c := range r.Candidates {
		cands[i] = map[string]string{"symbol": c.Symbol, "strategy": c.StrategyID}
	}
	fails := make([]failureJSON, len(r.Failures))
	for i, f := range r.Failures {
		fails[i] = failureJSON{Symbol: f.Symbol, Strategy: f.StrategyID, Error: f.Err.Error()}
	}
	return map[string]interface{}{
		"skipped":    r.Skipped,
		"candidates": cands,
		"failures":   fails,
	}
}

func printCandidates(output *Output, cands []discovery.Candidate) {
	if len(cands) == 0 {
		output.Info("No candidates")
		return
	}
	table := NewTable(output, "#", "Symbol", "Strategy")
	for i, c := range cands {
		table.AddRow(fmt.Sprintf("%d", i+1), c.Symbol, c.StrategyID)
	}
	table.Render()
}

func printFailures(output *Output, fails []discovery.ItemError) {
	if len(fails) == 0 {
		return
	}
	output.Println()
	output.Bold("Failures")
	table := NewTable(output, "Symbol", "Strategy", "Error")
	for _, f := range fails {
		table.AddRow(f.Symbol, f.StrategyID, TruncateString(f.Err.Error(), 80))
	}
	table.Render()
}

func printOutcomes(output *Output, outs []trading.Outcome) error {
	if output.IsJSON() {
		rows := make([]map[string]interface{}, len(outs))
		for i, o := range outs {
			row := map[string]interface{}{
				"symbol":     o.Symbol,
				"outcome":    string(o.Code),
				"confidence": o.Forecast.Confidence,
			}
			if o.TradeID != "" {
				row["trade_id"] = o.TradeID
			}
			if o.Err != nil {
				row["error"] = o.Err.Error()
			}
			rows[i] = row
		}
		return output.JSON(rows)
	}

	if len(outs) == 0 {
		output.Info("No candidates")
		return nil
	}
	table := NewTable(output, "Symbol", "Outcome", "Confidence", "Trade")
	for _, o := range outs {
		code := string(o.Code)
		if o.Opened() {
			code = output.ColoredString(ColorGreen, code)
		}
		table.AddRow(o.Symbol, code, FormatConfidence(o.Forecast.Confidence), o.TradeID)
	}
	table.Render()
	return nil
}
