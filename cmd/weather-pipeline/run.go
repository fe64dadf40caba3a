package main

import (
	"errors"
	"io"
	"net/http"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/i474232898/weather-pipeline/internal/config"
	"github.com/i474232898/weather-pipeline/internal/logging"
	"github.com/i474232898/weather-pipeline/internal/metrics"
	"github.com/i474232898/weather-pipeline/internal/pipeline"
)

var errRunFailed = errors.New("pipeline run failed")

var runOpts pipeline.Options

var runCmd = &cobra.Command{
	Use:   "run [--skip-extract] [--skip-transform] [--skip-analyze] [--skip-load]",
	Short: "Runs the pipeline once.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runner, err := pipeline.FromConfig(cfg, newHTTPClient(cfg), metrics.NewRegistry())
		if err != nil {
			return err
		}

		report := runner.Run(ctx, runOpts)
		if !report.Success {
			return errRunFailed
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOpts.SkipExtract, "skip-extract", false, "Skip the extraction phase.")
	runCmd.Flags().BoolVar(&runOpts.SkipTransform, "skip-transform", false, "Skip the transformation phase.")
	runCmd.Flags().BoolVar(&runOpts.SkipAnalyze, "skip-analyze", false, "Skip the analysis phase.")
	runCmd.Flags().BoolVar(&runOpts.SkipLoad, "skip-load", false, "Skip the loading phase.")
}

// setup loads the configuration and configures logging from it.
func setup() (*config.AppConfig, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	closer, err := logging.Setup(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("config: loaded %s with %d cities", configPath, len(cfg.Data.Cities))
	return cfg, closer, nil
}

// newHTTPClient is the shared client for outbound provider calls.
func newHTTPClient(cfg *config.AppConfig) *http.Client {
	return &http.Client{Timeout: cfg.Pipeline.Timeout}
}
