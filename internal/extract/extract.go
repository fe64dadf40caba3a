package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/i474232898/weather-pipeline/internal/common"
	"github.com/i474232898/weather-pipeline/internal/metrics"
	"github.com/i474232898/weather-pipeline/internal/store"
	"github.com/i474232898/weather-pipeline/internal/weather"
)

// extractionLayout matches the ISO-8601 local time with microseconds written
// into every raw file.
const extractionLayout = "2006-01-02T15:04:05.000000"

var (
	// ErrAllCitiesFailed is returned when not a single city could be extracted.
	ErrAllCitiesFailed = errors.New("extraction failed for every city")
)

// CityFailure records why a city could not be extracted.
type CityFailure struct {
	Location weather.Location `json:"location"`
	Error    string           `json:"error"`
}

// Result is the outcome of one extraction run.
type Result struct {
	Status    weather.Status
	Succeeded []weather.Location
	Failed    []CityFailure
	Files     []string
}

// Extractor fetches current conditions for the configured cities and
// stages one raw file per city.
type Extractor struct {
	provider  weather.Provider
	locations []weather.Location
	rawDir    string
	metrics   metrics.Sink
	now       func() time.Time
}

// New creates an Extractor writing into rawDir. A nil sink discards metrics.
func New(provider weather.Provider, locations []weather.Location, rawDir string, sink metrics.Sink) *Extractor {
	if sink == nil {
		sink = metrics.Discard
	}
	return &Extractor{
		provider:  provider,
		locations: locations,
		rawDir:    rawDir,
		metrics:   sink,
		now:       time.Now,
	}
}

// Extract walks the cities sequentially. A failed city is recorded and the
// loop moves on; Status is success as long as one city succeeded.
func (e *Extractor) Extract(ctx context.Context) (Result, error) {
	var res Result

	for _, loc := range e.locations {
		if err := ctx.Err(); err != nil {
			res.Status = weather.StatusFailed
			return res, err
		}

		log.WithField("city", loc.Key()).Infof("extract: fetching %s from %s", loc.Query(), e.provider.Name())
		file, err := e.extractCity(ctx, loc)
		if err != nil {
			e.metrics.Inc(metrics.ExtractFailures)
			log.WithField("city", loc.Key()).Errorf("extract: failed to fetch data for %s: %v", loc.City, err)
			res.Failed = append(res.Failed, CityFailure{Location: loc, Error: err.Error()})
			continue
		}

		e.metrics.Inc(metrics.ExtractSuccesses)
		res.Succeeded = append(res.Succeeded, loc)
		res.Files = append(res.Files, file)
	}
	e.metrics.Set(metrics.DataPointsExtracted, float64(len(res.Succeeded)))
	log.Infof("extract: extracted data for %d of %d cities", len(res.Succeeded), len(e.locations))

	if len(res.Succeeded) == 0 && len(e.locations) > 0 {
		res.Status = weather.StatusFailed
		return res, ErrAllCitiesFailed
	}
	res.Status = weather.StatusSuccess
	return res, nil
}

func (e *Extractor) extractCity(ctx context.Context, loc weather.Location) (string, error) {
	stop := metrics.Timer(e.metrics, metrics.APIResponseTime)
	obs, err := e.provider.Fetch(ctx, loc)
	stop()
	if err != nil {
		return "", err
	}
	if obs == nil {
		obs = weather.RawObservation{}
	}

	now := e.now()
	obs[weather.FieldExtractionTimestamp] = now.Format(extractionLayout)
	obs[weather.FieldCityName] = loc.City
	obs[weather.FieldCountryCode] = loc.Country

	path := filepath.Join(e.rawDir, store.RawFileName(loc, now))
	if err := common.SaveJSON(path, obs); err != nil {
		return "", fmt.Errorf("save raw data: %w", err)
	}
	log.WithField("city", loc.Key()).Infof("extract: saved raw data to %s", path)
	return path, nil
}
