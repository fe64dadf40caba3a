package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-pipeline/internal/api/http"
	"github.com/i474232898/weather-pipeline/internal/metrics"
	"github.com/i474232898/weather-pipeline/internal/pipeline"
	"github.com/i474232898/weather-pipeline/internal/scheduler"
	"github.com/i474232898/weather-pipeline/internal/store"
)

// reports older than this are dropped from the run history.
const historyMaxAge = 7 * 24 * time.Hour

var runOnStart bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule [--now]",
	Short: "Runs the pipeline on the configured cron schedule and serves the monitoring API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		registry := metrics.NewRegistry()
		runner, err := pipeline.FromConfig(cfg, newHTTPClient(cfg), registry)
		if err != nil {
			return err
		}

		history := store.NewRunHistory[pipeline.Report](cfg.Pipeline.HistorySize, historyMaxAge)
		sched := scheduler.New(runner, history, cfg.Pipeline.Schedule)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()

		if runOnStart {
			if err := sched.Trigger(); err != nil {
				log.Warnf("scheduler: initial run not started: %v", err)
			}
		}

		if !cfg.Monitoring.Enabled {
			log.Info("monitoring: disabled; waiting for scheduled runs")
			<-ctx.Done()
			return nil
		}

		app := httpapi.NewApp()
		httpapi.RegisterRoutes(app, sched, registry)

		go func() {
			addr := ":" + strconv.Itoa(cfg.Monitoring.Port)
			log.Infof("monitoring: listening on %s", addr)
			if err := app.Listen(addr); err != nil {
				log.Errorf("monitoring: fiber server stopped: %v", err)
			}
		}()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Errorf("monitoring: error during shutdown: %v", err)
		}
		return nil
	},
}

func init() {
	scheduleCmd.Flags().BoolVar(&runOnStart, "now", false, "Also run the pipeline immediately on startup.")
}
