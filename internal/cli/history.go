package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Steinwealth/UltimaBot/internal/models"
	"github.com/Steinwealth/UltimaBot/internal/security"
	"github.com/Steinwealth/UltimaBot/internal/store"
	"github.com/Steinwealth/UltimaBot/internal/tracking"
)

func newHistoryCmd(app *App) *cobra.Command {
	var (
		limit  int
		status string
	)

	cmd := &cobra.Command{
		Use:   "history [symbol]",
		Short: "Show stored trades",
		Long:  "List persisted trades, newest first, optionally for one symbol.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			s, err := app.OpenStore()
			if err != nil {
				return err
			}
			defer s.Close()

			filter := store.TradeFilter{Limit: limit, Status: strings.ToLower(status)}
			if len(args) == 1 {
				sym, err := security.ParseSymbol(args[0])
				if err != nil {
					return err
				}
				filter.Symbol = sym
			}
			rows, err := s.GetTradeHistory(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(rows)
			}
			if len(rows) == 0 {
				output.Info("No trades recorded")
				return nil
			}

			table := NewTable(output, "Opened", "Symbol", "Strategy", "Mode", "Entry", "Exit", "Reason", "Gain", "P&L")
			for _, r := range rows {
				exit, reason, gain, pnl := "-", "-", "-", "-"
				if r.Status == string(models.TradeClosed) {
					exit = FormatPrice(r.ExitPrice)
					reason = r.ExitReason
					gain = output.FormatPercent(r.GainPct)
					pnl = output.FormatGain(r.GainUSD)
				}
				table.AddRow(
					FormatDateTime(r.EntryTime),
					r.Symbol,
					r.StrategyID,
					r.Mode,
					FormatPrice(r.EntryPrice),
					exit,
					reason,
					gain,
					pnl,
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum trades to show")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (open, closed)")
	return cmd
}

func newSummaryCmd(app *App) *cobra.Command {
	var (
		symbol string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarise closed trades",
		Long:  "Aggregate win rate, gains and exit reasons over the stored closed trades.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			s, err := app.OpenStore()
			if err != nil {
				return err
			}
			defer s.Close()

			tl := tracking.NewTradeLogger(s, app.Logger)
			records, err := tl.ClosedRecords(cmd.Context(), store.TradeFilter{
				Symbol: strings.ToUpper(symbol),
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			st := tracking.Aggregate(records)

			if output.IsJSON() {
				return output.JSON(st)
			}
			printSummary(output, st)
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "only this symbol")
	cmd.Flags().IntVar(&limit, "limit", 0, "only the most recent trades (0 for all)")
	return cmd
}

func printSummary(output *Output, st tracking.Stats) {
	if st.Trades == 0 {
		output.Info("No closed trades")
		return
	}

	output.Bold("Performance")
	output.Printf("  Trades:      %d (%d wins, %d losses)\n", st.Trades, st.Wins, st.Losses)
	output.Printf("  Win Rate:    %.1f%%\n", st.WinRate*100)
	output.Printf("  Total Gain:  %s\n", output.FormatPercent(st.TotalGainPct))
	output.Printf("  Avg Gain:    %s\n", output.FormatPercent(st.AvgGainPct))
	output.Printf("  Total P&L:   %s\n", output.FormatGain(st.TotalGainUSD))
	if st.Best != nil {
		output.Printf("  Best:        %s %s\n", st.Best.Symbol, output.FormatPercent(st.Best.GainPct))
	}
	if st.Worst != nil {
		output.Printf("  Worst:       %s %s\n", st.Worst.Symbol, output.FormatPercent(st.Worst.GainPct))
	}
	output.Println()

	if len(st.ByReason) > 0 {
		output.Bold("Exit Reasons")
		reasons := make([]string, 0, len(st.ByReason))
		for r := range st.ByReason {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			output.Printf("  %-16s %d\n", r, st.ByReason[models.ExitReason(r)])
		}
		output.Println()
	}

	if len(st.ByStrategy) > 0 {
		output.Bold("Strategies")
		table := NewTable(output, "Strategy", "Trades", "Wins", "P&L")
		for _, s := range st.ByStrategy {
			table.AddRow(s.StrategyID, fmt.Sprintf("%d", s.Trades), fmt.Sprintf("%d", s.Wins), output.FormatGain(s.TotalGainUSD))
		}
		table.Render()
	}
}
