package transform

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-pipeline/internal/weather"
)

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	assert.Equal(t, 3.0, Quantile(sorted, 0.5))
	assert.InDelta(t, 1.2, Quantile(sorted, 0.05), 1e-9)
	assert.InDelta(t, 4.8, Quantile(sorted, 0.95), 1e-9)
	assert.Equal(t, 1.0, Quantile(sorted, 0))
	assert.Equal(t, 5.0, Quantile(sorted, 1))
	assert.Equal(t, 7.0, Quantile([]float64{7}, 0.95))
}

func TestBounds(t *testing.T) {
	lower, upper := Bounds([]float64{5, 1, 4, 2, 3})
	// q05 = 1.2, q95 = 4.8, IQR = 3.6
	assert.InDelta(t, 1.2-5.4, lower, 1e-9)
	assert.InDelta(t, 4.8+5.4, upper, 1e-9)
}

// batch returns twenty ordinary temperatures 10..29 followed by extra.
func batch(extra ...*float64) []weather.CleanRecord {
	var records []weather.CleanRecord
	for i := 0; i < 20; i++ {
		records = append(records, weather.CleanRecord{
			City:        "London",
			Temperature: weather.Float(float64(10 + i)),
			Humidity:    weather.Float(70),
		})
	}
	for _, v := range extra {
		records = append(records, weather.CleanRecord{City: "London", Temperature: v, Humidity: weather.Float(70)})
	}
	return records
}

func TestCleanReplacesOutlierWithMedian(t *testing.T) {
	records := batch(weather.Float(500))

	cleaned, outliers := Clean(records)
	assert.Equal(t, 1, outliers)
	require.Len(t, cleaned, 21)
	require.NotNil(t, cleaned[20].Temperature)
	assert.Equal(t, 19.5, *cleaned[20].Temperature)

	// input untouched
	assert.Equal(t, 500.0, *records[20].Temperature)
}

// A second pass finds no new outliers only when every imputed column stays
// within the bounds recomputed from it. That holds for this batch, not for
// arbitrary input: replacing outliers by the median narrows the quantile
// spread and may expose new outliers.
func TestCleanIsIdempotent(t *testing.T) {
	cleaned, outliers := Clean(batch(weather.Float(500), nil))
	require.Equal(t, 1, outliers)

	again, outliers := Clean(cleaned)
	assert.Zero(t, outliers)
	assert.Equal(t, cleaned, again)
}

func TestCleanImputesNulls(t *testing.T) {
	records := []weather.CleanRecord{
		{Temperature: weather.Float(10), Pressure: weather.Float(1000)},
		{Temperature: nil, Pressure: weather.Float(1010)},
		{Temperature: weather.Float(14), Pressure: weather.Float(1020)},
	}

	cleaned, outliers := Clean(records)
	assert.Zero(t, outliers)

	require.NotNil(t, cleaned[1].Temperature)
	assert.Equal(t, 12.0, *cleaned[1].Temperature)

	// columns with no values at all stay null
	for _, rec := range cleaned {
		assert.Nil(t, rec.WindSpeed)
		assert.Nil(t, rec.TempMin)
	}
}

func TestCleanFillsCategoricals(t *testing.T) {
	cleaned, _ := Clean([]weather.CleanRecord{
		{WeatherCondition: "Rain"},
		{},
	})
	assert.Equal(t, "Rain", cleaned[0].WeatherCondition)
	assert.Equal(t, weather.UnknownCategory, cleaned[0].WeatherDescription)
	assert.Equal(t, weather.UnknownCategory, cleaned[1].WeatherCondition)
	assert.Equal(t, weather.UnknownCategory, cleaned[1].WeatherDescription)
}

func TestDerive(t *testing.T) {
	records := []weather.CleanRecord{
		{
			Timestamp: time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC),
			TempMin:   weather.Float(8.5),
			TempMax:   weather.Float(13),
		},
		{
			Timestamp: time.Date(2024, 3, 11, 0, 5, 0, 0, time.UTC),
			TempMax:   weather.Float(13),
		},
	}
	Derive(records)

	assert.Equal(t, "2024-03-09", records[0].Date)
	assert.Equal(t, 14, records[0].Hour)
	assert.Equal(t, "Saturday", records[0].DayOfWeek)
	require.NotNil(t, records[0].TempRange)
	assert.Equal(t, 4.5, *records[0].TempRange)

	assert.Equal(t, "Monday", records[1].DayOfWeek)
	assert.Equal(t, 0, records[1].Hour)
	assert.Nil(t, records[1].TempRange)
}

func TestExtractFeatures(t *testing.T) {
	obs := weather.RawObservation{
		"main":                           map[string]any{"temp": json.Number("14.52"), "humidity": json.Number("72")},
		"wind":                           map[string]any{"speed": json.Number("4.6")},
		"weather":                        []any{},
		weather.FieldCityName:            "London",
		weather.FieldCountryCode:         "GB",
		weather.FieldExtractionTimestamp: "2024-03-09T14:30:00.123456",
	}

	rec, err := ExtractFeatures(obs, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "London", rec.City)
	assert.Equal(t, "GB", rec.Country)
	require.NotNil(t, rec.Temperature)
	assert.Equal(t, 14.52, *rec.Temperature)
	assert.Nil(t, rec.FeelsLike)
	assert.Nil(t, rec.WindDirection)
	assert.Empty(t, rec.WeatherCondition)
	assert.Equal(t, time.Date(2024, 3, 9, 14, 30, 0, 123456000, time.UTC), rec.Timestamp)
}

func TestExtractFeaturesPrefersProviderEpoch(t *testing.T) {
	obs := weather.RawObservation{
		"main":                           map[string]any{},
		"wind":                           map[string]any{},
		"weather":                        []any{map[string]any{"main": "Rain", "description": "light rain"}},
		"dt":                             json.Number("1700000000"),
		weather.FieldCityName:            "London",
		weather.FieldCountryCode:         "GB",
		weather.FieldExtractionTimestamp: "garbage",
	}

	rec, err := ExtractFeatures(obs, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), rec.Timestamp)
	assert.Equal(t, "Rain", rec.WeatherCondition)
	assert.Equal(t, "light rain", rec.WeatherDescription)
}

func TestExtractFeaturesErrors(t *testing.T) {
	base := func() weather.RawObservation {
		return weather.RawObservation{
			"main":                           map[string]any{},
			"wind":                           map[string]any{},
			"weather":                        []any{},
			weather.FieldCityName:            "London",
			weather.FieldCountryCode:         "GB",
			weather.FieldExtractionTimestamp: "2024-03-09T14:30:00",
		}
	}

	for _, key := range []string{"main", "wind", "weather", weather.FieldCityName, weather.FieldCountryCode} {
		obs := base()
		delete(obs, key)
		_, err := ExtractFeatures(obs, time.UTC)
		assert.ErrorIs(t, err, ErrMissingSection, key)
	}

	obs := base()
	obs["wind"] = "calm"
	_, err := ExtractFeatures(obs, time.UTC)
	assert.ErrorIs(t, err, ErrMissingSection)

	obs = base()
	obs[weather.FieldExtractionTimestamp] = "yesterday"
	_, err = ExtractFeatures(obs, time.UTC)
	assert.ErrorIs(t, err, ErrBadTimestamp)

	obs = base()
	delete(obs, weather.FieldExtractionTimestamp)
	_, err = ExtractFeatures(obs, time.UTC)
	assert.ErrorIs(t, err, ErrBadTimestamp)
}

func TestNumber(t *testing.T) {
	assert.Equal(t, 3.5, *number(json.Number("3.5")))
	assert.Equal(t, 2.0, *number(int64(2)))
	assert.Equal(t, 1.5, *number(1.5))
	assert.Nil(t, number(nil))
	assert.Nil(t, number("n/a"))
	assert.Nil(t, number(map[string]any{}))
}
