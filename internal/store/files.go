package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/i474232898/weather-pipeline/internal/common"
	"github.com/i474232898/weather-pipeline/internal/weather"
)

var (
	// ErrNoProcessedTable is returned when the processed area holds no table.
	ErrNoProcessedTable = errors.New("no processed table found")
)

const (
	processedPrefix = "processed_weather_data_"
	processedExt    = ".csv"
)

// Areas are the well-known directories the stages communicate through.
type Areas struct {
	Raw       string
	Processed string
	Output    string
}

// Figures is the chart directory inside the output area.
func (a Areas) Figures() string {
	return filepath.Join(a.Output, "figures")
}

// Ensure creates every area.
func (a Areas) Ensure() error {
	for _, dir := range []string{a.Raw, a.Processed, a.Output, a.Figures()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// RawFileName names the staged observation of loc extracted at ts.
func RawFileName(loc weather.Location, ts time.Time) string {
	name := fmt.Sprintf("%s_%s_%s.json", loc.City, loc.Country, common.FileStamp(ts))
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '-'
		}
		return r
	}, name)
}

// ProcessedFileName names the processed table written at ts.
func ProcessedFileName(ts time.Time) string {
	return processedPrefix + common.FileStamp(ts) + processedExt
}

// OutputFileName names an output artifact, e.g. OutputFileName("weather_data", ".json", ts).
func OutputFileName(prefix, ext string, ts time.Time) string {
	return fmt.Sprintf("%s_%s%s", prefix, common.FileStamp(ts), ext)
}

// RawFiles lists the staged observation files, sorted by name.
func (a Areas) RawFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(a.Raw, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// LatestProcessed returns the most recently modified processed table.
// Only used when no explicit table handle is available.
func (a Areas) LatestProcessed() (string, error) {
	files, err := filepath.Glob(filepath.Join(a.Processed, "*"+processedExt))
	if err != nil {
		return "", err
	}

	var (
		latest    string
		latestMod time.Time
	)
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil || info.IsDir() {
			continue
		}
		// Ties go to the lexically greater (later stamped) name.
		if latest == "" || info.ModTime().After(latestMod) ||
			(info.ModTime().Equal(latestMod) && f > latest) {
			latest = f
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return "", ErrNoProcessedTable
	}
	return latest, nil
}

// ResolveTable returns t when it already holds records, otherwise it reads
// the latest processed table from the area.
func (a Areas) ResolveTable(t *weather.Table) (*weather.Table, error) {
	if t != nil && t.Len() > 0 {
		return t, nil
	}
	path, err := a.LatestProcessed()
	if err != nil {
		return nil, err
	}
	return ReadTable(path)
}
