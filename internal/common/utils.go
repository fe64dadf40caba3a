package common

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DateLayout is the calendar date format used across the pipeline.
	DateLayout = "2006-01-02"
	// TimestampLayout is the human-readable timestamp format of the processed table.
	TimestampLayout = "2006-01-02 15:04:05"
	// FileStampLayout is appended to every file a stage writes.
	FileStampLayout = "20060102_150405"
)

// HasAny returns true if s contains any of the substrings, ignoring case.
func HasAny(s string, subs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// DateRange returns every calendar date between start and end (inclusive),
// both given and returned as YYYY-MM-DD.
func DateRange(start, end string) ([]string, error) {
	from, err := time.Parse(DateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	to, err := time.Parse(DateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", end, err)
	}

	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates, nil
}

func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// FormatTimestamp renders t as "2006-01-02 15:04:05".
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// FileStamp renders t for use in output file names.
func FileStamp(t time.Time) string {
	return t.Format(FileStampLayout)
}

var icons = map[string]string{
	"Clear":        "☀️",
	"Clouds":       "☁️",
	"Rain":         "🌧️",
	"Drizzle":      "🌦️",
	"Thunderstorm": "⛈️",
	"Snow":         "❄️",
	"Mist":         "🌫️",
	"Fog":          "🌫️",
	"Haze":         "🌫️",
	"Smoke":        "🌫️",
	"Dust":         "🌫️",
	"Sand":         "🌫️",
	"Ash":          "🌫️",
	"Squall":       "💨",
	"Tornado":      "🌪️",
}

// WeatherIcon returns a text icon for a provider condition label.
func WeatherIcon(condition string) string {
	if icon, ok := icons[condition]; ok {
		return icon
	}
	return "❓"
}

// SaveJSON writes v as indented JSON, creating parent directories.
func SaveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
