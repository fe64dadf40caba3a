package analyze

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/i474232898/weather-pipeline/internal/charts"
	"github.com/i474232898/weather-pipeline/internal/common"
	"github.com/i474232898/weather-pipeline/internal/metrics"
	"github.com/i474232898/weather-pipeline/internal/store"
	"github.com/i474232898/weather-pipeline/internal/weather"
)

// Result is the outcome of one analysis.
type Result struct {
	Status   weather.Status
	Analysis *Analysis
	Path     string
	Charts   []string
}

// Analyzer computes statistics and charts over a processed table.
type Analyzer struct {
	areas   store.Areas
	charts  []charts.Chart
	metrics metrics.Sink
	now     func() time.Time
}

// New creates an Analyzer writing into areas.Output. A nil sink discards metrics.
func New(areas store.Areas, sink metrics.Sink) *Analyzer {
	if sink == nil {
		sink = metrics.Discard
	}
	return &Analyzer{
		areas:   areas,
		charts:  charts.Default,
		metrics: sink,
		now:     time.Now,
	}
}

// Analyze works on table, or on the latest processed table when table is
// empty. Without any table the result is StatusNoData.
func (a *Analyzer) Analyze(ctx context.Context, table *weather.Table) (Result, error) {
	defer metrics.Timer(a.metrics, metrics.AnalysisProcessingTime)()

	res, err := a.analyze(ctx, table)
	if err != nil {
		a.metrics.Inc(metrics.AnalysisFailures)
		log.Errorf("analyze: error analyzing data: %v", err)
		res.Status = weather.StatusFailed
		return res, err
	}
	if res.Status == weather.StatusSuccess {
		a.metrics.Inc(metrics.AnalysisSuccesses)
	}
	return res, nil
}

func (a *Analyzer) analyze(ctx context.Context, table *weather.Table) (Result, error) {
	table, err := a.areas.ResolveTable(table)
	if errors.Is(err, store.ErrNoProcessedTable) || (err == nil && table.Len() == 0) {
		log.Warn("analyze: no data available for analysis")
		return Result{Status: weather.StatusNoData}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("load processed data: %w", err)
	}
	log.Infof("analyze: analyzing %d records from %s", table.Len(), table.Path)

	analysis := Compute(table.Records)
	now := a.now()

	path := filepath.Join(a.areas.Output, store.OutputFileName("weather_analysis", ".json", now))
	if err := common.SaveJSON(path, analysis); err != nil {
		return Result{}, fmt.Errorf("save analysis results: %w", err)
	}
	log.Infof("analyze: saved analysis results to %s", path)

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	written := charts.Render(a.charts, a.areas.Figures(), common.FileStamp(now), table.Records)
	a.metrics.Add(metrics.VisualizationsCreated, float64(len(written)))

	return Result{
		Status:   weather.StatusSuccess,
		Analysis: &analysis,
		Path:     path,
		Charts:   written,
	}, nil
}
