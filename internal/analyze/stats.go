package analyze

import (
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/i474232898/weather-pipeline/internal/common"
	"github.com/i474232898/weather-pipeline/internal/weather"
)

const (
	trendWarming = "warming"
	trendCooling = "cooling"

	isoLayout = "2006-01-02T15:04:05"
)

// Analysis is the document written to weather_analysis_{ts}.json.
type Analysis struct {
	BasicStats        BasicStats       `json:"basic_stats"`
	CityComparisons   CityComparisons  `json:"city_comparisons"`
	TemperatureTrends map[string]Trend `json:"temperature_trends"`
	WeatherConditions Conditions       `json:"weather_conditions"`
}

type BasicStats struct {
	Overall Overall `json:"overall"`
}

type Overall struct {
	Count       int       `json:"count"`
	DateRange   DateRange `json:"date_range"`
	Temperature Summary   `json:"temperature"`
	Humidity    Summary   `json:"humidity"`
	WindSpeed   Summary   `json:"wind_speed"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Summary holds the descriptive statistics of one column. Statistics that
// were not requested or have no input are omitted.
type Summary struct {
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Mean   *float64 `json:"mean,omitempty"`
	Median *float64 `json:"median,omitempty"`
}

type CityStats struct {
	Temperature Summary `json:"temperature"`
	Humidity    Summary `json:"humidity"`
	WindSpeed   Summary `json:"wind_speed"`
}

type CityComparisons struct {
	Cities      map[string]CityStats `json:"cities"`
	WarmestCity string               `json:"warmest_city,omitempty"`
	ColdestCity string               `json:"coldest_city,omitempty"`
}

type Trend struct {
	AvgDailyChange float64 `json:"avg_daily_change"`
	MaxIncrease    float64 `json:"max_increase"`
	MaxDecrease    float64 `json:"max_decrease"`
	OverallTrend   string  `json:"overall_trend"`
}

type Conditions struct {
	OverallDistribution map[string]int    `json:"overall_distribution"`
	MostCommonByCity    map[string]string `json:"most_common_by_city"`
	IconByCity          map[string]string `json:"icon_by_city"`
}

// Compute derives every statistic group from records.
func Compute(records []weather.CleanRecord) Analysis {
	return Analysis{
		BasicStats:        basicStats(records),
		CityComparisons:   compareCities(records),
		TemperatureTrends: temperatureTrends(records),
		WeatherConditions: weatherConditions(records),
	}
}

func basicStats(records []weather.CleanRecord) BasicStats {
	overall := Overall{Count: len(records)}
	if len(records) > 0 {
		first, last := records[0].Timestamp, records[0].Timestamp
		for _, r := range records[1:] {
			if r.Timestamp.Before(first) {
				first = r.Timestamp
			}
			if r.Timestamp.After(last) {
				last = r.Timestamp
			}
		}
		overall.DateRange = DateRange{Start: first.Format(isoLayout), End: last.Format(isoLayout)}
	}

	temps := column(records, "temperature")
	overall.Temperature = Summary{
		Min:    apply(stats.Min, temps),
		Max:    apply(stats.Max, temps),
		Mean:   apply(stats.Mean, temps),
		Median: apply(stats.Median, temps),
	}
	overall.Humidity = minMaxMean(column(records, "humidity"))
	overall.WindSpeed = minMaxMean(column(records, "wind_speed"))
	return BasicStats{Overall: overall}
}

func compareCities(records []weather.CleanRecord) CityComparisons {
	groups, cities := groupByCity(records)
	out := CityComparisons{Cities: make(map[string]CityStats, len(cities))}

	var warmest, coldest float64
	for _, city := range cities {
		group := groups[city]
		temps := column(group, "temperature")
		cs := CityStats{
			Temperature: minMaxMean(temps),
			Humidity:    Summary{Mean: apply(stats.Mean, column(group, "humidity"))},
			WindSpeed:   Summary{Mean: apply(stats.Mean, column(group, "wind_speed"))},
		}
		out.Cities[city] = cs

		// cities are visited in order so ties go to the first name
		if mean := cs.Temperature.Mean; mean != nil {
			if out.WarmestCity == "" || *mean > warmest {
				out.WarmestCity, warmest = city, *mean
			}
			if out.ColdestCity == "" || *mean < coldest {
				out.ColdestCity, coldest = city, *mean
			}
		}
	}
	return out
}

// temperatureTrends reports day-over-day changes of the daily mean
// temperature for every city observed on more than one date.
func temperatureTrends(records []weather.CleanRecord) map[string]Trend {
	trends := make(map[string]Trend)
	groups, cities := groupByCity(records)

	for _, city := range cities {
		daily := DailyMeans(groups[city])
		if len(daily) < 2 {
			continue
		}

		changes := make([]float64, 0, len(daily)-1)
		for i := 1; i < len(daily); i++ {
			changes = append(changes, daily[i].Mean-daily[i-1].Mean)
		}

		sum, _ := stats.Sum(changes)
		maxInc, _ := stats.Max(changes)
		maxDec, _ := stats.Min(changes)
		trend := Trend{
			AvgDailyChange: sum / float64(len(changes)),
			MaxIncrease:    maxInc,
			MaxDecrease:    maxDec,
			OverallTrend:   trendCooling,
		}
		if sum > 0 {
			trend.OverallTrend = trendWarming
		}
		trends[city] = trend
	}
	return trends
}

// DailyMean is the average temperature of one city on one date.
type DailyMean struct {
	Date string
	Mean float64
}

// DailyMeans averages the temperatures of records per date, ordered by date.
// Dates without any temperature are left out.
func DailyMeans(records []weather.CleanRecord) []DailyMean {
	byDate := make(map[string][]float64)
	for _, r := range records {
		if r.Temperature != nil {
			byDate[r.Date] = append(byDate[r.Date], *r.Temperature)
		}
	}

	out := make([]DailyMean, 0, len(byDate))
	for date, values := range byDate {
		mean, _ := stats.Mean(values)
		out = append(out, DailyMean{Date: date, Mean: mean})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func weatherConditions(records []weather.CleanRecord) Conditions {
	out := Conditions{
		OverallDistribution: make(map[string]int),
		MostCommonByCity:    make(map[string]string),
		IconByCity:          make(map[string]string),
	}
	for _, r := range records {
		out.OverallDistribution[r.WeatherCondition]++
	}

	groups, cities := groupByCity(records)
	for _, city := range cities {
		counts := make(map[string]int)
		for _, r := range groups[city] {
			counts[r.WeatherCondition]++
		}
		out.MostCommonByCity[city] = mostCommon(counts)
		out.IconByCity[city] = common.WeatherIcon(out.MostCommonByCity[city])
	}
	return out
}

// mostCommon returns the most frequent key; ties go to the alphabetically first.
func mostCommon(counts map[string]int) string {
	var (
		best  string
		count int
	)
	for key, n := range counts {
		if n > count || (n == count && key < best) {
			best, count = key, n
		}
	}
	return best
}

// groupByCity splits records per city and returns the sorted city names.
func groupByCity(records []weather.CleanRecord) (map[string][]weather.CleanRecord, []string) {
	groups := make(map[string][]weather.CleanRecord)
	for _, r := range records {
		groups[r.City] = append(groups[r.City], r)
	}
	cities := make([]string, 0, len(groups))
	for city := range groups {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	return groups, cities
}

// column collects the non-null values of a numeric column.
func column(records []weather.CleanRecord, name string) stats.Float64Data {
	values := make(stats.Float64Data, 0, len(records))
	for i := range records {
		if v := *records[i].Numeric(name); v != nil {
			values = append(values, *v)
		}
	}
	return values
}

func minMaxMean(values stats.Float64Data) Summary {
	return Summary{
		Min:  apply(stats.Min, values),
		Max:  apply(stats.Max, values),
		Mean: apply(stats.Mean, values),
	}
}

// apply runs f over values and returns nil when there is nothing to compute.
func apply(f func(stats.Float64Data) (float64, error), values stats.Float64Data) *float64 {
	v, err := f(values)
	if err != nil {
		return nil
	}
	return &v
}
