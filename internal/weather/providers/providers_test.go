package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-pipeline/internal/config"
	"github.com/i474232898/weather-pipeline/internal/weather"
)

var fastRetry = RetryConfig{Attempts: 3, Delay: time.Millisecond, Timeout: time.Second}

const londonResponse = `{
  "coord": {"lon": -0.1257, "lat": 51.5085},
  "weather": [{"id": 803, "main": "Clouds", "description": "broken clouds", "icon": "04d"}],
  "main": {"temp": 14.52, "feels_like": 13.9, "temp_min": 13.1, "temp_max": 15.8, "pressure": 1012, "humidity": 72},
  "wind": {"speed": 4.63, "deg": 250},
  "dt": 1700000000,
  "name": "London"
}`

func TestOpenWeatherFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "London,GB", r.URL.Query().Get("q"))
		assert.Equal(t, "secret", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		_, _ = w.Write([]byte(londonResponse))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), srv.URL, "secret", "", fastRetry)
	obs, err := p.Fetch(context.Background(), weather.Location{City: "London", Country: "GB"})
	require.NoError(t, err)

	assert.Equal(t, "London", obs["name"])
	main, ok := obs["main"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, json.Number("14.52"), main["temp"])
	assert.Equal(t, json.Number("1012"), main["pressure"])
}

func TestOpenWeatherRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(londonResponse))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), srv.URL, "secret", "metric", fastRetry)
	_, err := p.Fetch(context.Background(), weather.Location{City: "London", Country: "GB"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenWeatherGivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), srv.URL, "secret", "metric", fastRetry)
	_, err := p.Fetch(context.Background(), weather.Location{City: "Atlantis", Country: "XX"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errUnexpected)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorsDoNotOpenCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "Atlantis,XX" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(londonResponse))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), srv.URL, "secret", "metric", fastRetry)
	for i := 0; i < 3; i++ {
		_, err := p.Fetch(context.Background(), weather.Location{City: "Atlantis", Country: "XX"})
		require.Error(t, err)
	}

	_, err := p.Fetch(context.Background(), weather.Location{City: "London", Country: "GB"})
	assert.NoError(t, err)
}

func TestServerErrorsOpenCircuitPerCity(t *testing.T) {
	var parisCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "Paris,FR" {
			parisCalls.Add(1)
			_, _ = w.Write([]byte(londonResponse))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), srv.URL, "secret", "metric", fastRetry)
	london := weather.Location{City: "London", Country: "GB"}

	_, err := p.Fetch(ctx(t), london)
	require.ErrorIs(t, err, errServerError)
	_, err = p.Fetch(ctx(t), london)
	require.Error(t, err)

	_, err = p.Fetch(ctx(t), london)
	assert.ErrorIs(t, err, errCircuitOpen)

	// London's open breaker does not affect Paris.
	_, err = p.Fetch(ctx(t), weather.Location{City: "Paris", Country: "FR"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), parisCalls.Load())
}

func TestCircuitsAreKeyedByCity(t *testing.T) {
	c := newCircuits("openweather")
	london := c.For("London:GB")

	assert.Same(t, london, c.For("London:GB"))
	assert.NotSame(t, london, c.For("Paris:FR"))
	assert.Equal(t, "openweather:London:GB", london.Name())
}

func TestOpenWeatherRequiresKey(t *testing.T) {
	p := NewOpenWeatherProvider(http.DefaultClient, "", "", "", fastRetry)
	_, err := p.Fetch(context.Background(), weather.Location{City: "London", Country: "GB"})
	assert.Error(t, err)
}

func TestFetchHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), srv.URL, "secret", "metric",
		RetryConfig{Attempts: 3, Delay: time.Hour, Timeout: time.Second})

	c, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Fetch(c, weather.Location{City: "London", Country: "GB"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWeatherAPIFetchMapsToOpenWeatherLayout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Paris,FR", r.URL.Query().Get("q"))
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{
  "location": {"name": "Paris", "country": "France", "localtime_epoch": 1700000100},
  "current": {
    "last_updated_epoch": 1700000000,
    "temp_c": 11.0, "feelslike_c": 9.5, "humidity": 81,
    "wind_kph": 36.0, "wind_degree": 200, "pressure_mb": 1008,
    "condition": {"text": "Light rain shower"}
  }
}`))
	}))
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), srv.URL, "k", fastRetry)
	obs, err := p.Fetch(context.Background(), weather.Location{City: "Paris", Country: "FR"})
	require.NoError(t, err)

	main := obs["main"].(map[string]any)
	assert.Equal(t, 11.0, main["temp"])
	assert.Equal(t, 9.5, main["feels_like"])
	assert.NotContains(t, main, "temp_min")

	wind := obs["wind"].(map[string]any)
	assert.InDelta(t, 10.0, wind["speed"], 1e-9)
	assert.Equal(t, 200.0, wind["deg"])

	conds := obs["weather"].([]any)
	require.Len(t, conds, 1)
	assert.Equal(t, "Rain", conds[0].(map[string]any)["main"])
	assert.Equal(t, int64(1700000000), obs["dt"])
}

func TestMapWeatherAPICondition(t *testing.T) {
	cases := map[string]string{
		"Sunny":                      "Clear",
		"Partly cloudy":              "Clouds",
		"Overcast":                   "Clouds",
		"Patchy light drizzle":       "Drizzle",
		"Moderate rain":              "Rain",
		"Blowing snow":               "Snow",
		"Freezing fog":               "Fog",
		"Mist":                       "Mist",
		"Moderate rain with thunder": "Thunderstorm",
		"Something new":              "Something new",
	}
	for text, want := range cases {
		assert.Equal(t, want, mapWeatherAPICondition(text), text)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.API.Provider = config.ProviderWeatherAPI
	cfg.Pipeline.RetryAttempts = 2

	p, err := FromConfig(cfg, http.DefaultClient)
	require.NoError(t, err)
	assert.Equal(t, "weatherapi", p.Name())

	cfg.API.Provider = config.ProviderOpenWeather
	p, err = FromConfig(cfg, http.DefaultClient)
	require.NoError(t, err)
	assert.Equal(t, "openweathermap", p.Name())

	cfg.API.Provider = "darksky"
	_, err = FromConfig(cfg, http.DefaultClient)
	assert.Error(t, err)
}

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}
