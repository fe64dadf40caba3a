package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/i474232898/weather-pipeline/internal/weather"
)

const OpenWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
// The current-weather response is returned verbatim.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	units   string
	httpCfg HTTPClientConfig
	circuit *circuits
}

func NewOpenWeatherProvider(client *http.Client, baseURL, apiKey, units string, retry RetryConfig) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = OpenWeatherURL
	}
	if units == "" {
		units = "metric"
	}

	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: baseURL,
		units:   units,
		httpCfg: HTTPClientConfig{
			Client: client,
			Retry:  retry,
		},
		circuit: newCircuits("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, loc weather.Location) (weather.RawObservation, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather api key is not configured")
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("q", loc.Query())
		values.Set("appid", p.apiKey)
		values.Set("units", p.units)

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	body, err := doRequestWithRetry(ctx, p.httpCfg, p.circuit.For(loc.Key()), buildRequest)
	if err != nil {
		return nil, err
	}

	return decodeObservation(body)
}

// decodeObservation keeps numbers as json.Number so re-encoding the raw
// document does not alter them.
func decodeObservation(body []byte) (weather.RawObservation, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var obs weather.RawObservation
	if err := dec.Decode(&obs); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if obs == nil {
		return nil, fmt.Errorf("decode response: empty document")
	}
	return obs, nil
}
