package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/i474232898/weather-pipeline/internal/metrics"
	"github.com/i474232898/weather-pipeline/internal/store"
	"github.com/i474232898/weather-pipeline/internal/weather"
)

// Stats are the per-run counters of a transform.
type Stats struct {
	FilesSeen        int `json:"files_seen"`
	FilesUnreadable  int `json:"files_unreadable"`
	RecordsParsed    int `json:"records_parsed"`
	RecordsSkipped   int `json:"records_skipped"`
	OutliersDetected int `json:"outliers_detected"`
}

// Result is the outcome of one Transform call. Table is nil unless
// Status is success.
type Result struct {
	Status weather.Status
	Table  *weather.Table
	Stats  Stats
}

// Transformer turns the staged raw observations into one processed table.
type Transformer struct {
	areas    store.Areas
	location *time.Location
	metrics  metrics.Sink
	now      func() time.Time
}

// New creates a Transformer reading areas.Raw and writing areas.Processed.
// A nil loc means local time and a nil sink discards metrics.
func New(areas store.Areas, loc *time.Location, sink metrics.Sink) *Transformer {
	if loc == nil {
		loc = time.Local
	}
	if sink == nil {
		sink = metrics.Discard
	}
	return &Transformer{
		areas:    areas,
		location: loc,
		metrics:  sink,
		now:      time.Now,
	}
}

// Transform loads every staged raw file, cleans the batch and persists it.
// An empty staging area or a batch without valid records yields StatusNoData
// and writes nothing.
func (t *Transformer) Transform(ctx context.Context) (Result, error) {
	defer metrics.Timer(t.metrics, metrics.TransformProcessingTime)()

	res, err := t.transform(ctx)
	if err != nil {
		t.metrics.Inc(metrics.TransformFailures)
		log.Errorf("transform: %v", err)
		res.Status = weather.StatusFailed
		return res, err
	}
	if res.Status == weather.StatusSuccess {
		t.metrics.Inc(metrics.TransformSuccesses)
	}
	return res, nil
}

func (t *Transformer) transform(ctx context.Context) (Result, error) {
	var res Result

	files, err := t.areas.RawFiles()
	if err != nil {
		return res, fmt.Errorf("list raw files: %w", err)
	}
	res.Stats.FilesSeen = len(files)
	t.metrics.Set(metrics.FilesProcessed, float64(len(files)))

	if len(files) == 0 {
		log.Warn("transform: no raw data files found to transform")
		res.Status = weather.StatusNoData
		return res, nil
	}

	var records []weather.CleanRecord
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		obs, err := readObservation(file)
		if err != nil {
			res.Stats.FilesUnreadable++
			log.WithField("file", file).Errorf("transform: cannot load raw file: %v", err)
			continue
		}

		rec, err := ExtractFeatures(obs, t.location)
		if err != nil {
			res.Stats.RecordsSkipped++
			log.WithFields(log.Fields{
				"file": file,
				"city": obs[weather.FieldCityName],
			}).Warnf("transform: skipping record: %v", err)
			continue
		}
		records = append(records, rec)
	}
	log.Infof("transform: loaded %d of %d raw data files", len(files)-res.Stats.FilesUnreadable, len(files))

	res.Stats.RecordsParsed = len(records)
	t.metrics.Set(metrics.RecordsProcessed, float64(len(records)))
	t.metrics.Add(metrics.RecordsSkipped, float64(res.Stats.RecordsSkipped))

	if len(records) == 0 {
		log.Warn("transform: no data extracted from raw files")
		res.Status = weather.StatusNoData
		return res, nil
	}

	cleaned, outliers := Clean(records)
	Derive(cleaned)
	res.Stats.OutliersDetected = outliers
	t.metrics.Add(metrics.OutliersDetected, float64(outliers))

	table := &weather.Table{Records: cleaned}
	path := filepath.Join(t.areas.Processed, store.ProcessedFileName(t.now()))
	if err := store.WriteTable(path, table); err != nil {
		return res, fmt.Errorf("save processed data: %w", err)
	}
	log.Infof("transform: saved %d records (%d outliers handled) to %s", table.Len(), outliers, path)

	res.Status = weather.StatusSuccess
	res.Table = table
	return res, nil
}

func readObservation(path string) (weather.RawObservation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obs weather.RawObservation
	if err := dec.Decode(&obs); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if obs == nil {
		return nil, fmt.Errorf("decode: document is not an object")
	}
	return obs, nil
}
