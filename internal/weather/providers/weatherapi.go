package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/i474232898/weather-pipeline/internal/common"
	"github.com/i474232898/weather-pipeline/internal/weather"
)

const WeatherAPIURL = "https://api.weatherapi.com/v1/current.json"

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
// Responses are reshaped into the OpenWeatherMap current-weather layout.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *circuits
}

func NewWeatherAPIProvider(client *http.Client, baseURL, apiKey string, retry RetryConfig) *WeatherAPIProvider {
	if baseURL == "" {
		baseURL = WeatherAPIURL
	}

	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Retry:  retry,
		},
		circuit: newCircuits("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPIPayload struct {
	Location struct {
		Name           string `json:"name"`
		Country        string `json:"country"`
		LocaltimeEpoch *int64 `json:"localtime_epoch"`
	} `json:"location"`
	Current *struct {
		LastUpdatedEpoch *int64   `json:"last_updated_epoch"`
		TempC            *float64 `json:"temp_c"`
		FeelslikeC       *float64 `json:"feelslike_c"`
		Humidity         *float64 `json:"humidity"`
		WindKph          *float64 `json:"wind_kph"`
		WindDegree       *float64 `json:"wind_degree"`
		PressureMb       *float64 `json:"pressure_mb"`
		Condition        struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, loc weather.Location) (weather.RawObservation, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weatherapi api key is not configured")
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		// WeatherAPI uses "q" for location; it accepts "city,country".
		values.Set("q", loc.Query())

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	body, err := doRequestWithRetry(ctx, p.httpCfg, p.circuit.For(loc.Key()), buildRequest)
	if err != nil {
		return nil, err
	}

	var payload weatherAPIPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return toObservation(payload), nil
}

// toObservation maps a WeatherAPI payload onto the OpenWeatherMap layout.
// Values the provider does not report are left out.
func toObservation(payload weatherAPIPayload) weather.RawObservation {
	obs := weather.RawObservation{
		"name": payload.Location.Name,
	}
	if payload.Current == nil {
		return obs
	}
	cur := payload.Current

	main := map[string]any{}
	setFloat(main, "temp", cur.TempC)
	setFloat(main, "feels_like", cur.FeelslikeC)
	setFloat(main, "pressure", cur.PressureMb)
	setFloat(main, "humidity", cur.Humidity)
	obs["main"] = main

	wind := map[string]any{}
	if cur.WindKph != nil {
		// Convert wind from kph to m/s.
		wind["speed"] = *cur.WindKph / 3.6
	}
	setFloat(wind, "deg", cur.WindDegree)
	obs["wind"] = wind

	conditions := []any{}
	if cur.Condition.Text != "" {
		conditions = append(conditions, map[string]any{
			"main":        mapWeatherAPICondition(cur.Condition.Text),
			"description": cur.Condition.Text,
		})
	}
	obs["weather"] = conditions

	switch {
	case cur.LastUpdatedEpoch != nil:
		obs["dt"] = *cur.LastUpdatedEpoch
	case payload.Location.LocaltimeEpoch != nil:
		obs["dt"] = *payload.Location.LocaltimeEpoch
	}
	return obs
}

func setFloat(m map[string]any, key string, v *float64) {
	if v != nil {
		m[key] = *v
	}
}

// mapWeatherAPICondition maps WeatherAPI free text onto OpenWeatherMap's
// condition groups.
func mapWeatherAPICondition(text string) string {
	switch {
	case common.HasAny(text, "thunder", "storm"):
		return "Thunderstorm"
	case common.HasAny(text, "drizzle"):
		return "Drizzle"
	case common.HasAny(text, "rain", "shower"):
		return "Rain"
	case common.HasAny(text, "snow", "sleet", "blizzard", "ice pellets"):
		return "Snow"
	case common.HasAny(text, "fog"):
		return "Fog"
	case common.HasAny(text, "mist"):
		return "Mist"
	case common.HasAny(text, "cloud", "overcast"):
		return "Clouds"
	case common.HasAny(text, "sunny", "clear"):
		return "Clear"
	default:
		return text
	}
}
