package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"

	"github.com/i474232898/weather-pipeline/internal/pipeline"
	"github.com/i474232898/weather-pipeline/internal/store"
)

var (
	// ErrRunInProgress is returned by Trigger while another run is executing.
	ErrRunInProgress = errors.New("a pipeline run is already in progress")
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) pipeline.Report
}

// Scheduler runs the pipeline on a cron schedule and on demand, one run at
// a time, and keeps the resulting reports.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *gocron.Job
	runner    Runner
	history   *store.RunHistory[pipeline.Report]
	schedule  string

	ctx     context.Context
	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a new Scheduler for the cron expression schedule.
func New(runner Runner, history *store.RunHistory[pipeline.Report], schedule string) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		runner:    runner,
		history:   history,
		schedule:  schedule,
		ctx:       context.Background(),
	}
}

// Start schedules the pipeline job and starts the underlying scheduler.
// Runs started by the scheduler or by Trigger use ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx

	job, err := s.scheduler.Cron(s.schedule).SingletonMode().Do(s.scheduledRun)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.schedule, err)
	}
	s.job = job

	s.scheduler.StartAsync()
	log.Infof("scheduler: pipeline scheduled with %q, next run at %s", s.schedule, s.NextRun().Format(time.RFC3339))
	return nil
}

// NextRun reports when the scheduled job fires next. It is zero before Start.
func (s *Scheduler) NextRun() time.Time {
	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun()
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.wg.Wait()
}

// Trigger starts an immediate run in the background.
func (s *Scheduler) Trigger() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute("manual")
	}()
	return nil
}

// Running reports whether a run is executing.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Latest returns the most recent run report.
func (s *Scheduler) Latest() (pipeline.Report, error) {
	return s.history.Latest()
}

// List returns up to limit run reports, newest first.
func (s *Scheduler) List(limit int) []pipeline.Report {
	return s.history.List(limit)
}

func (s *Scheduler) scheduledRun() {
	if !s.running.CompareAndSwap(false, true) {
		log.Warn("scheduler: previous run still in progress; skipping scheduled run")
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	s.execute("scheduled")
}

// execute runs the pipeline. The caller must have set the running flag.
func (s *Scheduler) execute(trigger string) {
	defer s.running.Store(false)

	log.Infof("scheduler: running %s pipeline job", trigger)
	report := s.runner.Run(s.ctx, pipeline.Options{})
	s.history.Save(report)
	log.WithField("run_id", report.RunID).Infof("scheduler: completed %s pipeline job: %s", trigger, report.StatusText())
}
