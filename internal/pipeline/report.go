package pipeline

import (
	"time"

	"github.com/i474232898/weather-pipeline/internal/extract"
	"github.com/i474232898/weather-pipeline/internal/load"
	"github.com/i474232898/weather-pipeline/internal/transform"
	"github.com/i474232898/weather-pipeline/internal/weather"
)

// Stage names in execution order.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageAnalyze   = "analyze"
	StageLoad      = "load"
)

// StageReport describes how one stage of a run ended.
type StageReport struct {
	Name     string         `json:"name"`
	Status   weather.Status `json:"status"`
	Duration float64        `json:"duration_seconds"`
	Error    string         `json:"error,omitempty"`
	Detail   any            `json:"detail,omitempty"`
}

// Report is the record of one pipeline run.
type Report struct {
	RunID    string        `json:"run_id"`
	Started  time.Time     `json:"started_at"`
	Duration float64       `json:"duration_seconds"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Stages   []StageReport `json:"stages"`
}

// StartedAt orders reports in the run history.
func (r Report) StartedAt() time.Time {
	return r.Started
}

// Stage returns the report of the named stage.
func (r Report) Stage(name string) (StageReport, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageReport{}, false
}

// StatusText is the word logged at the end of a run.
func (r Report) StatusText() string {
	if r.Success {
		return "Success"
	}
	return "Failure"
}

type extractDetail struct {
	Succeeded []weather.Location    `json:"succeeded"`
	Failed    []extract.CityFailure `json:"failed,omitempty"`
	Files     int                   `json:"files"`
}

type transformDetail struct {
	Path string `json:"path,omitempty"`
	transform.Stats
}

type analyzeDetail struct {
	Path   string   `json:"path,omitempty"`
	Charts []string `json:"charts,omitempty"`
}

type outputDetail struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

func loadDetail(outcomes []load.Outcome) []outputDetail {
	out := make([]outputDetail, len(outcomes))
	for i, o := range outcomes {
		out[i] = outputDetail{Name: o.Name, Path: o.Path, Records: o.Records}
		if o.Err != nil {
			out[i].Error = o.Err.Error()
		}
	}
	return out
}
