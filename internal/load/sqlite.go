package load

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/i474232898/weather-pipeline/internal/common"
	"github.com/i474232898/weather-pipeline/internal/store"
	"github.com/i474232898/weather-pipeline/internal/weather"
)

// TableName is the relational copy of the processed table.
const TableName = "weather_data"

var columnTypes = map[string]string{
	"city":                "TEXT",
	"country":             "TEXT",
	"timestamp":           "TEXT",
	"weather_condition":   "TEXT",
	"weather_description": "TEXT",
	"date":                "TEXT",
	"hour":                "INTEGER",
	"day_of_week":         "TEXT",
}

func createTableSQL() string {
	defs := make([]string, len(store.Columns))
	for i, col := range store.Columns {
		typ, ok := columnTypes[col]
		if !ok {
			typ = "REAL"
		}
		defs[i] = col + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", TableName, strings.Join(defs, ", "))
}

func insertSQL() string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(store.Columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", TableName, strings.Join(store.Columns, ", "), marks)
}

// WriteSQLite replaces the weather_data table in the database at path with
// records and indexes it by city and date. The replacement is atomic.
func WriteSQLite(ctx context.Context, path string, records []weather.CleanRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DROP TABLE IF EXISTS " + TableName,
		createTableSQL(),
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("replace table: %w", err)
		}
	}

	insert, err := tx.PrepareContext(ctx, insertSQL())
	if err != nil {
		return err
	}
	defer insert.Close()

	for i := range records {
		if _, err := insert.ExecContext(ctx, rowArgs(&records[i])...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	for _, stmt := range []string{
		"CREATE INDEX IF NOT EXISTS idx_city ON " + TableName + " (city)",
		"CREATE INDEX IF NOT EXISTS idx_date ON " + TableName + " (date)",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return tx.Commit()
}

func rowArgs(r *weather.CleanRecord) []any {
	return []any{
		r.City,
		r.Country,
		common.FormatTimestamp(r.Timestamp),
		nullable(r.Temperature),
		nullable(r.FeelsLike),
		nullable(r.TempMin),
		nullable(r.TempMax),
		nullable(r.Pressure),
		nullable(r.Humidity),
		nullable(r.WindSpeed),
		nullable(r.WindDirection),
		r.WeatherCondition,
		r.WeatherDescription,
		r.Date,
		r.Hour,
		r.DayOfWeek,
		nullable(r.TempRange),
	}
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
