package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/i474232898/weather-pipeline/internal/common"
	"github.com/i474232898/weather-pipeline/internal/weather"
)

// Columns is the column order of the processed table.
var Columns = []string{
	"city", "country", "timestamp",
	"temperature", "feels_like", "temp_min", "temp_max",
	"pressure", "humidity", "wind_speed", "wind_direction",
	"weather_condition", "weather_description",
	"date", "hour", "day_of_week", "temp_range",
}

var decodedNumeric = append(append([]string{}, weather.NumericColumns...), "temp_range")

// WriteTable persists t.Records as CSV at path and sets t.Path.
func WriteTable(path string, t *weather.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := EncodeTable(f, t.Records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	t.Path = path
	return nil
}

// EncodeTable writes the header and one row per record.
func EncodeTable(w io.Writer, records []weather.CleanRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for i := range records {
		if err := cw.Write(EncodeRecord(&records[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeRecord renders r in Columns order. Missing numbers become empty cells.
func EncodeRecord(r *weather.CleanRecord) []string {
	return []string{
		r.City,
		r.Country,
		common.FormatTimestamp(r.Timestamp),
		formatFloat(r.Temperature),
		formatFloat(r.FeelsLike),
		formatFloat(r.TempMin),
		formatFloat(r.TempMax),
		formatFloat(r.Pressure),
		formatFloat(r.Humidity),
		formatFloat(r.WindSpeed),
		formatFloat(r.WindDirection),
		r.WeatherCondition,
		r.WeatherDescription,
		r.Date,
		strconv.Itoa(r.Hour),
		r.DayOfWeek,
		formatFloat(r.TempRange),
	}
}

// ReadTable loads a processed table written by WriteTable.
func ReadTable(path string) (*weather.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := DecodeTable(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &weather.Table{Path: path, Records: records}, nil
}

// DecodeTable parses CSV produced by EncodeTable. Columns are matched by
// header name so reordered files still load.
func DecodeTable(r io.Reader) ([]weather.CleanRecord, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty table")
		}
		return nil, err
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, name := range Columns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var records []weather.CleanRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		rec, err := decodeRow(row, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRow(row []string, index map[string]int) (weather.CleanRecord, error) {
	cell := func(name string) string { return row[index[name]] }

	ts, err := time.ParseInLocation(common.TimestampLayout, cell("timestamp"), time.Local)
	if err != nil {
		return weather.CleanRecord{}, fmt.Errorf("timestamp: %w", err)
	}
	hour, err := strconv.Atoi(cell("hour"))
	if err != nil {
		return weather.CleanRecord{}, fmt.Errorf("hour: %w", err)
	}

	rec := weather.CleanRecord{
		City:               cell("city"),
		Country:            cell("country"),
		Timestamp:          ts,
		WeatherCondition:   cell("weather_condition"),
		WeatherDescription: cell("weather_description"),
		Date:               cell("date"),
		Hour:               hour,
		DayOfWeek:          cell("day_of_week"),
	}
	for _, name := range decodedNumeric {
		v, err := parseFloat(cell(name))
		if err != nil {
			return weather.CleanRecord{}, fmt.Errorf("%s: %w", name, err)
		}
		*rec.Numeric(name) = v
	}
	return rec, nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
