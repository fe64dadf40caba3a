package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/i474232898/weather-pipeline/internal/analyze"
	"github.com/i474232898/weather-pipeline/internal/config"
	"github.com/i474232898/weather-pipeline/internal/extract"
	"github.com/i474232898/weather-pipeline/internal/load"
	"github.com/i474232898/weather-pipeline/internal/metrics"
	"github.com/i474232898/weather-pipeline/internal/store"
	"github.com/i474232898/weather-pipeline/internal/transform"
	"github.com/i474232898/weather-pipeline/internal/weather"
	"github.com/i474232898/weather-pipeline/internal/weather/providers"
)

type Extractor interface {
	Extract(ctx context.Context) (extract.Result, error)
}

type Transformer interface {
	Transform(ctx context.Context) (transform.Result, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, table *weather.Table) (analyze.Result, error)
}

type Loader interface {
	Load(ctx context.Context, table *weather.Table) (load.Result, error)
}

// Stages are the four steps a Runner drives.
type Stages struct {
	Extractor   Extractor
	Transformer Transformer
	Analyzer    Analyzer
	Loader      Loader
}

// Options select which stages a run skips.
type Options struct {
	SkipExtract   bool
	SkipTransform bool
	SkipAnalyze   bool
	SkipLoad      bool
}

// Runner executes the stages in fixed order.
type Runner struct {
	areas         store.Areas
	stages        Stages
	stopOnFailure bool
	metrics       metrics.Sink
	newID         func() string
	now           func() time.Time
}

// NewRunner creates a Runner over explicit stages. A nil sink discards metrics.
func NewRunner(areas store.Areas, stages Stages, stopOnFailure bool, sink metrics.Sink) *Runner {
	if sink == nil {
		sink = metrics.Discard
	}
	return &Runner{
		areas:         areas,
		stages:        stages,
		stopOnFailure: stopOnFailure,
		metrics:       sink,
		newID:         uuid.NewString,
		now:           time.Now,
	}
}

// FromConfig wires the concrete stages described by cfg.
func FromConfig(cfg *config.AppConfig, client *http.Client, sink metrics.Sink) (*Runner, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	provider, err := providers.FromConfig(cfg, client)
	if err != nil {
		return nil, err
	}

	areas := store.Areas{
		Raw:       cfg.Data.RawDataPath,
		Processed: cfg.Data.ProcessedDataPath,
		Output:    cfg.Data.OutputDataPath,
	}
	stages := Stages{
		Extractor:   extract.New(provider, cfg.Data.Cities, areas.Raw, sink),
		Transformer: transform.New(areas, loc, sink),
		Analyzer:    analyze.New(areas, sink),
		Loader:      load.New(areas, cfg.Data.DatabasePath, sink),
	}
	return NewRunner(areas, stages, cfg.Pipeline.StopOnFailure, sink), nil
}

// stageFunc runs one stage and returns its status and report detail.
type stageFunc func(ctx context.Context) (weather.Status, any, error)

// Run executes one pipeline run. A failing stage does not prevent later
// stages from running unless the runner stops on failure. The transformed
// table is handed directly to the analyzer and loader; they fall back to the
// latest processed file when transform is skipped or produced nothing.
func (r *Runner) Run(ctx context.Context, opts Options) Report {
	start := r.now()
	report := Report{RunID: r.newID(), Started: start, Success: true}
	logger := log.WithField("run_id", report.RunID)

	r.metrics.Inc(metrics.PipelineRuns)
	logger.Info("pipeline: starting weather data pipeline")

	finish := func() Report {
		elapsed := r.now().Sub(start)
		report.Duration = elapsed.Seconds()
		r.metrics.Observe(metrics.PipelineDuration, elapsed)
		if !report.Success {
			r.metrics.Inc(metrics.PipelineFailures)
		}
		logger.Infof("Pipeline completed in %.2f seconds with status: %s", report.Duration, report.StatusText())
		return report
	}

	if err := r.areas.Ensure(); err != nil {
		logger.Errorf("pipeline: failed: %v", err)
		report.Success = false
		report.Error = err.Error()
		return finish()
	}

	var table *weather.Table
	steps := []struct {
		name string
		skip bool
		run  stageFunc
	}{
		{StageExtract, opts.SkipExtract, func(ctx context.Context) (weather.Status, any, error) {
			res, err := r.stages.Extractor.Extract(ctx)
			return res.Status, extractDetail{Succeeded: res.Succeeded, Failed: res.Failed, Files: len(res.Files)}, err
		}},
		{StageTransform, opts.SkipTransform, func(ctx context.Context) (weather.Status, any, error) {
			res, err := r.stages.Transformer.Transform(ctx)
			detail := transformDetail{Stats: res.Stats}
			if res.Table != nil {
				table = res.Table
				detail.Path = res.Table.Path
			}
			return res.Status, detail, err
		}},
		{StageAnalyze, opts.SkipAnalyze, func(ctx context.Context) (weather.Status, any, error) {
			res, err := r.stages.Analyzer.Analyze(ctx, table)
			return res.Status, analyzeDetail{Path: res.Path, Charts: res.Charts}, err
		}},
		{StageLoad, opts.SkipLoad, func(ctx context.Context) (weather.Status, any, error) {
			res, err := r.stages.Loader.Load(ctx, table)
			return res.Status, loadDetail(res.Outcomes), err
		}},
	}

	halted := false
	for _, step := range steps {
		if step.skip || halted {
			logger.Infof("pipeline: skipping %s phase", step.name)
			report.Stages = append(report.Stages, StageReport{Name: step.name, Status: weather.StatusSkipped})
			continue
		}

		logger.Infof("pipeline: starting %s phase", step.name)
		sr := r.runStage(ctx, step.name, step.run)
		report.Stages = append(report.Stages, sr)

		if sr.Status == weather.StatusFailed {
			report.Success = false
			logger.WithField("stage", step.name).Errorf("pipeline: %s phase failed: %s", step.name, sr.Error)
			halted = r.stopOnFailure
			continue
		}
		logger.Infof("pipeline: %s phase complete with status %s", step.name, sr.Status)
	}
	return finish()
}

// runStage calls run and converts an error or a panic into a failed report.
func (r *Runner) runStage(ctx context.Context, name string, run stageFunc) (sr StageReport) {
	start := r.now()
	sr.Name = name

	defer func() {
		if p := recover(); p != nil {
			log.WithField("stage", name).Debugf("pipeline: %s panic stack:\n%s", name, debug.Stack())
			sr.Status = weather.StatusFailed
			sr.Error = fmt.Sprintf("panic: %v", p)
		}
		sr.Duration = r.now().Sub(start).Seconds()
	}()

	status, detail, err := run(ctx)
	sr.Status = status
	sr.Detail = detail
	if err != nil {
		sr.Status = weather.StatusFailed
		sr.Error = err.Error()
	}
	if sr.Status == "" {
		sr.Status = weather.StatusSuccess
	}
	return sr
}
