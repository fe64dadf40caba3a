package weather

import (
	"context"
)

// Provider abstracts a weather data source (e.g. OpenWeatherMap, WeatherAPI).
// Fetch returns the current conditions for a location shaped as an
// OpenWeatherMap current-weather document, so every provider feeds the same
// transformer.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (RawObservation, error)
}
