package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Steinwealth/UltimaBot/internal/resilience"
)

func newRunCmd(app *App) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading engine",
		Long: `Run discovery and execution on the configured scan schedule while the
trade monitor re-evaluates every open trade each poll interval. Stops on
SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, err := app.NewEngine(ctx)
			if err != nil {
				return err
			}
			defer engine.Close()

			output := NewOutput(cmd)
			if once {
				res, err := engine.Scheduler.RunCycle(ctx)
				if err != nil {
					return err
				}
				return printOutcomes(output, res.Outcomes)
			}

			return runEngine(ctx, app, engine)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single scan and execution cycle, then exit")
	return cmd
}

// runEngine runs the monitor, the scan scheduler and, when enabled, the
// metrics endpoint until ctx is cancelled.
func runEngine(ctx context.Context, app *App, engine *Engine) error {
	cfg := app.Config
	logger := app.Logger

	health := resilience.NewHealthMonitor(5 * time.Second)
	health.RegisterComponent("broker", resilience.BreakerHealthCheck(engine.Broker.Breaker()))
	if engine.Store != nil {
		health.RegisterComponent("store", resilience.DatabaseHealthCheck(engine.Store.Ping))
	}

	logger.Info().
		Str("broker", engine.Broker.ID()).
		Str("mode", app.Modes.Active().Name).
		Str("asset_class", string(app.AssetClass())).
		Msg("Engine starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Monitor.Run(gctx) })
	g.Go(func() error { return engine.Scheduler.Run(gctx) })
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return app.Metrics.Serve(gctx, cfg.Metrics.Listen, health.HealthHTTPHandler(), logger)
		})
	}

	err := g.Wait()
	logger.Info().Int("open_trades", engine.Book.Len()).Msg("Engine stopped")
	return err
}
