package providers

import (
	"fmt"
	"net/http"

	"github.com/i474232898/weather-pipeline/internal/config"
	"github.com/i474232898/weather-pipeline/internal/weather"
)

// FromConfig builds the provider selected by cfg.API.Provider.
func FromConfig(cfg *config.AppConfig, client *http.Client) (weather.Provider, error) {
	retry := RetryConfig{
		Attempts: cfg.Pipeline.RetryAttempts,
		Delay:    cfg.Pipeline.RetryDelay,
		Timeout:  cfg.Pipeline.Timeout,
	}

	switch cfg.API.Provider {
	case config.ProviderOpenWeather:
		return NewOpenWeatherProvider(client, cfg.API.URL, cfg.API.Key, cfg.API.Units, retry), nil
	case config.ProviderWeatherAPI:
		return NewWeatherAPIProvider(client, cfg.API.URL, cfg.API.Key, retry), nil
	default:
		return nil, fmt.Errorf("unknown weather provider %q", cfg.API.Provider)
	}
}
