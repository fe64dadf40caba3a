package load

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/i474232898/weather-pipeline/internal/metrics"
	"github.com/i474232898/weather-pipeline/internal/store"
	"github.com/i474232898/weather-pipeline/internal/weather"
)

// Output names reported in every Outcome.
const (
	OutputJSON   = "json"
	OutputSQLite = "sqlite"
	OutputCSV    = "csv"
)

// Outcome reports one output artifact. Outputs succeed or fail independently.
type Outcome struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Records int    `json:"records"`
	Err     error  `json:"-"`
}

// Result is the outcome of one Load call.
type Result struct {
	Status   weather.Status
	Outcomes []Outcome
}

// Loader writes a processed table to the JSON, SQLite and CSV outputs.
type Loader struct {
	areas   store.Areas
	dbPath  string
	metrics metrics.Sink
	now     func() time.Time
}

// New creates a Loader writing into areas.Output. An empty dbPath puts
// weather_data.db in the output area. A nil sink discards metrics.
func New(areas store.Areas, dbPath string, sink metrics.Sink) *Loader {
	if dbPath == "" {
		dbPath = filepath.Join(areas.Output, "weather_data.db")
	}
	if sink == nil {
		sink = metrics.Discard
	}
	return &Loader{
		areas:   areas,
		dbPath:  dbPath,
		metrics: sink,
		now:     time.Now,
	}
}

// Load writes table, or the latest processed table when table is empty,
// to every output. Without any table each output fails softly and the
// result is StatusNoData. Status is failed when any output fails; the
// returned error joins the individual failures.
func (l *Loader) Load(ctx context.Context, table *weather.Table) (Result, error) {
	outputs := []struct {
		name  string
		write func(context.Context, *weather.Table, time.Time) (string, error)
	}{
		{OutputJSON, l.loadJSON},
		{OutputSQLite, l.loadSQLite},
		{OutputCSV, l.loadCSV},
	}

	table, err := l.areas.ResolveTable(table)
	if err != nil {
		if !errors.Is(err, store.ErrNoProcessedTable) {
			return Result{Status: weather.StatusFailed}, fmt.Errorf("load processed data: %w", err)
		}
		log.Warn("load: no processed data file found to load")
		res := Result{Status: weather.StatusNoData}
		for _, out := range outputs {
			l.metrics.Inc(metrics.LoadFailures)
			res.Outcomes = append(res.Outcomes, Outcome{Name: out.name, Err: err})
		}
		return res, nil
	}
	l.metrics.Set(metrics.RecordsLoaded, float64(table.Len()))

	now := l.now()
	res := Result{Status: weather.StatusSuccess}
	var errs []error
	for _, out := range outputs {
		stop := metrics.Timer(l.metrics, metrics.LoadProcessingTime)
		path, err := out.write(ctx, table, now)
		stop()

		outcome := Outcome{Name: out.name, Path: path, Records: table.Len()}
		if err != nil {
			l.metrics.Inc(metrics.LoadFailures)
			log.WithField("output", out.name).Errorf("load: error loading data to %s: %v", out.name, err)
			outcome.Err = err
			outcome.Records = 0
			errs = append(errs, fmt.Errorf("%s: %w", out.name, err))
		} else {
			l.metrics.Inc(metrics.LoadSuccesses)
			log.WithField("output", out.name).Infof("load: successfully loaded %d records to %s", table.Len(), path)
		}
		res.Outcomes = append(res.Outcomes, outcome)
	}

	if len(errs) > 0 {
		res.Status = weather.StatusFailed
		return res, errors.Join(errs...)
	}
	return res, nil
}

func (l *Loader) loadJSON(_ context.Context, table *weather.Table, now time.Time) (string, error) {
	path := filepath.Join(l.areas.Output, store.OutputFileName("weather_data", ".json", now))
	return path, WriteJSON(path, table.Records)
}

func (l *Loader) loadSQLite(ctx context.Context, table *weather.Table, _ time.Time) (string, error) {
	return l.dbPath, WriteSQLite(ctx, l.dbPath, table.Records)
}

func (l *Loader) loadCSV(_ context.Context, table *weather.Table, now time.Time) (string, error) {
	report := filepath.Join(l.areas.Output, store.OutputFileName("weather_report", ".csv", now))
	summary := filepath.Join(l.areas.Output, store.OutputFileName("weather_summary", ".csv", now))

	if err := WriteCSV(report, table.Records); err != nil {
		return report, err
	}
	if err := WriteSummary(summary, table.Records); err != nil {
		return report, fmt.Errorf("summary: %w", err)
	}
	log.Infof("load: saved summary statistics to %s", summary)
	return report, nil
}
