package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/i474232898/weather-pipeline/internal/weather"
)

var (
	// ErrMissingSection marks a raw observation lacking a required section.
	ErrMissingSection = errors.New("missing required section")
	// ErrBadTimestamp marks a raw observation whose time cannot be resolved.
	ErrBadTimestamp = errors.New("unresolvable timestamp")
)

var requiredSections = []string{
	"main", "wind", "weather", weather.FieldCityName, weather.FieldCountryCode,
}

// extraction timestamps are written without an offset; RFC 3339 is also accepted.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ExtractFeatures flattens one raw observation into an uncleaned record.
// Timestamps are expressed in loc.
func ExtractFeatures(obs weather.RawObservation, loc *time.Location) (weather.CleanRecord, error) {
	for _, key := range requiredSections {
		if v, ok := obs[key]; !ok || v == nil {
			return weather.CleanRecord{}, fmt.Errorf("%w: %s", ErrMissingSection, key)
		}
	}

	main, ok := obs["main"].(map[string]any)
	if !ok {
		return weather.CleanRecord{}, fmt.Errorf("%w: main is not an object", ErrMissingSection)
	}
	wind, ok := obs["wind"].(map[string]any)
	if !ok {
		return weather.CleanRecord{}, fmt.Errorf("%w: wind is not an object", ErrMissingSection)
	}
	conditions, ok := obs["weather"].([]any)
	if !ok {
		return weather.CleanRecord{}, fmt.Errorf("%w: weather is not a list", ErrMissingSection)
	}

	ts, err := resolveTimestamp(obs, loc)
	if err != nil {
		return weather.CleanRecord{}, err
	}

	rec := weather.CleanRecord{
		City:          fmt.Sprint(obs[weather.FieldCityName]),
		Country:       fmt.Sprint(obs[weather.FieldCountryCode]),
		Timestamp:     ts,
		Temperature:   number(main["temp"]),
		FeelsLike:     number(main["feels_like"]),
		TempMin:       number(main["temp_min"]),
		TempMax:       number(main["temp_max"]),
		Pressure:      number(main["pressure"]),
		Humidity:      number(main["humidity"]),
		WindSpeed:     number(wind["speed"]),
		WindDirection: number(wind["deg"]),
	}
	if len(conditions) > 0 {
		if first, ok := conditions[0].(map[string]any); ok {
			rec.WeatherCondition = text(first["main"])
			rec.WeatherDescription = text(first["description"])
		}
	}
	return rec, nil
}

// resolveTimestamp prefers the provider epoch and falls back to the
// extraction timestamp.
func resolveTimestamp(obs weather.RawObservation, loc *time.Location) (time.Time, error) {
	if dt, ok := obs["dt"]; ok && dt != nil {
		epoch := number(dt)
		if epoch == nil {
			return time.Time{}, fmt.Errorf("%w: dt %v", ErrBadTimestamp, dt)
		}
		sec, frac := math.Modf(*epoch)
		return time.Unix(int64(sec), int64(frac*1e9)).In(loc), nil
	}

	raw, ok := obs[weather.FieldExtractionTimestamp].(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: no dt and no %s", ErrBadTimestamp, weather.FieldExtractionTimestamp)
	}
	for _, layout := range isoLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, raw)
}

// number converts a decoded JSON value to a finite float, nil otherwise.
func number(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func text(v any) string {
	s, _ := v.(string)
	return s
}
