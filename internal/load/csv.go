package load

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-gota/gota/dataframe"

	"github.com/i474232898/weather-pipeline/internal/store"
	"github.com/i474232898/weather-pipeline/internal/weather"
)

// WriteCSV writes records with the processed-table columns.
func WriteCSV(path string, records []weather.CleanRecord) error {
	return store.WriteTable(path, &weather.Table{Records: records})
}

// summaryInput is the gota row shape; missing values become NaN.
type summaryInput struct {
	City        string  `dataframe:"city"`
	Temperature float64 `dataframe:"temperature"`
	Humidity    float64 `dataframe:"humidity"`
	WindSpeed   float64 `dataframe:"wind_speed"`
}

// Stat is a mean/min/max triple.
type Stat struct {
	Mean float64
	Min  float64
	Max  float64
}

// CitySummary is one row of weather_summary_{ts}.csv.
type CitySummary struct {
	City        string
	Temperature Stat
	Humidity    Stat
	WindSpeed   Stat
}

var summaryColumns = []string{"temperature", "humidity", "wind_speed"}

// Summarize groups records by city and computes mean/min/max of
// temperature, humidity and wind speed, rounded to two decimals.
func Summarize(records []weather.CleanRecord) ([]CitySummary, error) {
	if len(records) == 0 {
		return nil, nil
	}

	rows := make([]summaryInput, len(records))
	for i, r := range records {
		rows[i] = summaryInput{
			City:        r.City,
			Temperature: orNaN(r.Temperature),
			Humidity:    orNaN(r.Humidity),
			WindSpeed:   orNaN(r.WindSpeed),
		}
	}

	df := dataframe.LoadStructs(rows)
	if df.Err != nil {
		return nil, df.Err
	}

	var (
		aggs []dataframe.AggregationType
		cols []string
	)
	for _, col := range summaryColumns {
		aggs = append(aggs, dataframe.Aggregation_MEAN, dataframe.Aggregation_MIN, dataframe.Aggregation_MAX)
		cols = append(cols, col, col, col)
	}

	grouped := df.GroupBy("city").Aggregation(aggs, cols).Arrange(dataframe.Sort("city"))
	if grouped.Err != nil {
		return nil, grouped.Err
	}

	stat := func(col string) []Stat {
		mean := grouped.Col(col + "_MEAN").Float()
		min := grouped.Col(col + "_MIN").Float()
		max := grouped.Col(col + "_MAX").Float()
		out := make([]Stat, len(mean))
		for i := range mean {
			out[i] = Stat{Mean: round2(mean[i]), Min: round2(min[i]), Max: round2(max[i])}
		}
		return out
	}
	cities := grouped.Col("city").Records()
	temps, hums, winds := stat("temperature"), stat("humidity"), stat("wind_speed")

	summary := make([]CitySummary, len(cities))
	for i, city := range cities {
		summary[i] = CitySummary{City: city, Temperature: temps[i], Humidity: hums[i], WindSpeed: winds[i]}
	}
	return summary, nil
}

// WriteSummary writes the per-city summary of records as CSV.
func WriteSummary(path string, records []weather.CleanRecord) error {
	summary, err := Summarize(records)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"city"}
	for _, col := range summaryColumns {
		header = append(header, col+"_mean", col+"_min", col+"_max")
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, s := range summary {
		row := []string{s.City}
		for _, st := range []Stat{s.Temperature, s.Humidity, s.WindSpeed} {
			row = append(row, formatStat(st.Mean), formatStat(st.Min), formatStat(st.Max))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatStat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
