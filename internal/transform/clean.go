package transform

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/i474232898/weather-pipeline/internal/common"
	"github.com/i474232898/weather-pipeline/internal/weather"
)

const (
	lowerQuantile = 0.05
	upperQuantile = 0.95
	iqrFactor     = 1.5
)

// Clean clips outliers and imputes missing values column by column over the
// whole batch. The input is left untouched; the cleaned copy and the number
// of outliers removed are returned.
func Clean(records []weather.CleanRecord) ([]weather.CleanRecord, int) {
	cleaned := make([]weather.CleanRecord, len(records))
	copy(cleaned, records)

	outliers := 0
	for _, column := range weather.NumericColumns {
		outliers += cleanColumn(cleaned, column)
	}

	for i := range cleaned {
		if cleaned[i].WeatherCondition == "" {
			cleaned[i].WeatherCondition = weather.UnknownCategory
		}
		if cleaned[i].WeatherDescription == "" {
			cleaned[i].WeatherDescription = weather.UnknownCategory
		}
	}
	return cleaned, outliers
}

// cleanColumn nulls values outside the widened 5th-95th percentile band and
// fills every null with the median of what remains. A column without any
// value stays null.
func cleanColumn(records []weather.CleanRecord, column string) int {
	values := columnValues(records, column)
	if len(values) == 0 {
		return 0
	}

	lower, upper := Bounds(values)
	outliers := 0
	for i := range records {
		field := records[i].Numeric(column)
		if *field != nil && (**field < lower || **field > upper) {
			*field = nil
			outliers++
		}
	}

	remaining := columnValues(records, column)
	median, err := stats.Median(stats.Float64Data(remaining))
	if err != nil {
		return outliers
	}
	for i := range records {
		if field := records[i].Numeric(column); *field == nil {
			*field = weather.Float(median)
		}
	}
	return outliers
}

// Bounds returns [q05 - 1.5*IQR, q95 + 1.5*IQR] for values.
func Bounds(values []float64) (lower, upper float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	q1 := Quantile(sorted, lowerQuantile)
	q3 := Quantile(sorted, upperQuantile)
	iqr := q3 - q1
	return q1 - iqrFactor*iqr, q3 + iqrFactor*iqr
}

// Quantile interpolates linearly between the closest ranks of sorted.
// sorted must be ascending and non-empty.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := math.Floor(pos)
	hi := math.Ceil(pos)
	if lo == hi {
		return sorted[int(lo)]
	}
	return sorted[int(lo)] + (sorted[int(hi)]-sorted[int(lo)])*(pos-lo)
}

func columnValues(records []weather.CleanRecord, column string) []float64 {
	values := make([]float64, 0, len(records))
	for i := range records {
		if v := *records[i].Numeric(column); v != nil {
			values = append(values, *v)
		}
	}
	return values
}

// Derive fills the calendar features and temp_range from the cleaned values.
func Derive(records []weather.CleanRecord) {
	for i := range records {
		r := &records[i]
		r.Date = r.Timestamp.Format(common.DateLayout)
		r.Hour = r.Timestamp.Hour()
		r.DayOfWeek = r.Timestamp.Weekday().String()
		if r.TempMax != nil && r.TempMin != nil {
			r.TempRange = weather.Float(*r.TempMax - *r.TempMin)
		} else {
			r.TempRange = nil
		}
	}
}
