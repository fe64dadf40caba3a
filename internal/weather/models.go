package weather

import (
	"time"
)

// UnknownCategory fills categorical fields the provider did not report.
const UnknownCategory = "Unknown"

// Location represents a configured city for which we fetch weather.
// City/Country must be provided.
type Location struct {
	City    string `json:"name" yaml:"name" validate:"required"`
	Country string `json:"country" yaml:"country" validate:"required"`
}

// Key returns a canonical string key for this location.
func (l Location) Key() string {
	return l.City + ":" + l.Country
}

// Query returns the "city,country" form accepted by the weather APIs.
func (l Location) Query() string {
	if l.Country == "" {
		return l.City
	}
	return l.City + "," + l.Country
}

// Metadata fields injected into every raw observation by the extractor.
const (
	FieldExtractionTimestamp = "extraction_timestamp"
	FieldCityName            = "city_name"
	FieldCountryCode         = "country_code"
)

// RawObservation is the provider document for one city at one extraction time,
// kept as decoded JSON so nothing the provider sent is lost.
type RawObservation map[string]any

// CleanRecord is one flat, analysis-ready row of the processed table.
// Numeric fields are nil when missing.
type CleanRecord struct {
	City               string    `json:"city"`
	Country            string    `json:"country"`
	Timestamp          time.Time `json:"timestamp"`
	Temperature        *float64  `json:"temperature"`
	FeelsLike          *float64  `json:"feels_like"`
	TempMin            *float64  `json:"temp_min"`
	TempMax            *float64  `json:"temp_max"`
	Pressure           *float64  `json:"pressure"`
	Humidity           *float64  `json:"humidity"`
	WindSpeed          *float64  `json:"wind_speed"`
	WindDirection      *float64  `json:"wind_direction"`
	WeatherCondition   string    `json:"weather_condition"`
	WeatherDescription string    `json:"weather_description"`
	Date               string    `json:"date"`
	Hour               int       `json:"hour"`
	DayOfWeek          string    `json:"day_of_week"`
	TempRange          *float64  `json:"temp_range"`
}

// NumericColumns lists the columns that take part in outlier cleaning, in table order.
var NumericColumns = []string{
	"temperature", "feels_like", "temp_min", "temp_max",
	"pressure", "humidity", "wind_speed", "wind_direction",
}

// Numeric returns a pointer to the field backing the named numeric column,
// or nil for an unknown column.
func (r *CleanRecord) Numeric(column string) **float64 {
	switch column {
	case "temperature":
		return &r.Temperature
	case "feels_like":
		return &r.FeelsLike
	case "temp_min":
		return &r.TempMin
	case "temp_max":
		return &r.TempMax
	case "pressure":
		return &r.Pressure
	case "humidity":
		return &r.Humidity
	case "wind_speed":
		return &r.WindSpeed
	case "wind_direction":
		return &r.WindDirection
	case "temp_range":
		return &r.TempRange
	default:
		return nil
	}
}

// Table is the batch of clean records produced by one transformer run.
// Path is empty until the table has been persisted.
type Table struct {
	Path    string
	Records []CleanRecord
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Float returns a pointer to a copy of v.
func Float(v float64) *float64 {
	return &v
}
