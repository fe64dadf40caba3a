package store

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-pipeline/internal/weather"
)

func sampleRecords() []weather.CleanRecord {
	ts := time.Date(2024, 3, 9, 14, 30, 0, 0, time.Local)
	return []weather.CleanRecord{
		{
			City: "London", Country: "GB", Timestamp: ts,
			Temperature: weather.Float(12.5), FeelsLike: weather.Float(11),
			TempMin: weather.Float(10), TempMax: weather.Float(14.25),
			Pressure: weather.Float(1012), Humidity: weather.Float(80),
			WindSpeed: weather.Float(4.1), WindDirection: weather.Float(250),
			WeatherCondition: "Clouds", WeatherDescription: "broken clouds, low",
			Date: "2024-03-09", Hour: 14, DayOfWeek: "Saturday",
			TempRange: weather.Float(4.25),
		},
		{
			City: "Paris", Country: "FR", Timestamp: ts.Add(time.Hour),
			Temperature: weather.Float(15),
			WeatherCondition: weather.UnknownCategory, WeatherDescription: weather.UnknownCategory,
			Date: "2024-03-09", Hour: 15, DayOfWeek: "Saturday",
		},
	}
}

func TestTableRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeTable(&buf, sampleRecords()))

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t, strings.Join(Columns, ","), header)

	got, err := DecodeTable(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	want := sampleRecords()
	for i := range want {
		assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp))
		got[i].Timestamp = want[i].Timestamp
	}
	assert.Equal(t, want, got)
	assert.Nil(t, got[1].Humidity)
}

func TestEncodeRecordEmptyCells(t *testing.T) {
	row := EncodeRecord(&sampleRecords()[1])
	require.Len(t, row, len(Columns))
	assert.Equal(t, "2024-03-09 15:30:00", row[2])
	assert.Equal(t, "15", row[3])
	assert.Equal(t, "", row[4])
	assert.Equal(t, "", row[16])
}

func TestDecodeTableErrors(t *testing.T) {
	_, err := DecodeTable(strings.NewReader(""))
	assert.Error(t, err)

	_, err = DecodeTable(strings.NewReader("city,country\nLondon,GB\n"))
	assert.ErrorContains(t, err, "missing column")

	var buf bytes.Buffer
	require.NoError(t, EncodeTable(&buf, sampleRecords()[:1]))
	broken := strings.Replace(buf.String(), "12.5", "warm", 1)
	_, err = DecodeTable(strings.NewReader(broken))
	assert.ErrorContains(t, err, "temperature")
}

func TestWriteAndReadTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", ProcessedFileName(time.Date(2024, 3, 9, 14, 30, 5, 0, time.UTC)))
	assert.True(t, strings.HasSuffix(path, "processed_weather_data_20240309_143005.csv"))

	table := &weather.Table{Records: sampleRecords()}
	require.NoError(t, WriteTable(path, table))
	assert.Equal(t, path, table.Path)

	read, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, path, read.Path)
	assert.Equal(t, 2, read.Len())
}

func TestLatestProcessed(t *testing.T) {
	areas := Areas{Processed: t.TempDir()}

	_, err := areas.LatestProcessed()
	assert.ErrorIs(t, err, ErrNoProcessedTable)

	older := filepath.Join(areas.Processed, "processed_weather_data_20240101_000000.csv")
	newer := filepath.Join(areas.Processed, "processed_weather_data_20230101_000000.csv")
	for _, p := range []string{older, newer} {
		require.NoError(t, WriteTable(p, &weather.Table{Records: sampleRecords()}))
	}
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	latest, err := areas.LatestProcessed()
	require.NoError(t, err)
	assert.Equal(t, newer, latest)
}

func TestResolveTable(t *testing.T) {
	areas := Areas{Processed: t.TempDir()}
	explicit := &weather.Table{Records: sampleRecords()[:1]}

	got, err := areas.ResolveTable(explicit)
	require.NoError(t, err)
	assert.Same(t, explicit, got)

	_, err = areas.ResolveTable(nil)
	assert.ErrorIs(t, err, ErrNoProcessedTable)

	path := filepath.Join(areas.Processed, "processed_weather_data_20240101_000000.csv")
	require.NoError(t, WriteTable(path, &weather.Table{Records: sampleRecords()}))
	got, err = areas.ResolveTable(&weather.Table{})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
}

func TestAreas(t *testing.T) {
	root := t.TempDir()
	areas := Areas{
		Raw:       filepath.Join(root, "raw"),
		Processed: filepath.Join(root, "processed"),
		Output:    filepath.Join(root, "output"),
	}
	require.NoError(t, areas.Ensure())
	assert.DirExists(t, areas.Figures())

	for _, name := range []string{"b.json", "a.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(areas.Raw, name), []byte("{}"), 0o644))
	}
	files, err := areas.RawFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(areas.Raw, "a.json"),
		filepath.Join(areas.Raw, "b.json"),
	}, files)
}

func TestFileNames(t *testing.T) {
	ts := time.Date(2024, 3, 9, 8, 5, 1, 0, time.UTC)
	assert.Equal(t, "London_GB_20240309_080501.json",
		RawFileName(weather.Location{City: "London", Country: "GB"}, ts))
	assert.Equal(t, "A-B_XX_20240309_080501.json",
		RawFileName(weather.Location{City: "A/B", Country: "XX"}, ts))
	assert.Equal(t, "weather_data_20240309_080501.json", OutputFileName("weather_data", ".json", ts))
}

type fakeRun struct {
	id string
	at time.Time
}

func (r fakeRun) StartedAt() time.Time { return r.at }

func TestRunHistoryRetentionByCount(t *testing.T) {
	h := NewRunHistory[fakeRun](2, 0)

	_, err := h.Latest()
	assert.ErrorIs(t, err, ErrNotFound)

	now := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		h.Save(fakeRun{id: id, at: now.Add(time.Duration(i) * time.Minute)})
	}

	assert.Equal(t, 2, h.Len())
	latest, err := h.Latest()
	require.NoError(t, err)
	assert.Equal(t, "c", latest.id)

	list := h.List(0)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].id)
	assert.Equal(t, "b", list[1].id)
	assert.Len(t, h.List(1), 1)
}

func TestRunHistoryRetentionByAge(t *testing.T) {
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	h := NewRunHistory[fakeRun](0, time.Hour)
	h.now = func() time.Time { return now }

	h.Save(fakeRun{id: "old", at: now.Add(-3 * time.Hour)})
	assert.Equal(t, 1, h.Len())

	h.Save(fakeRun{id: "recent", at: now.Add(-time.Minute)})
	h.Save(fakeRun{id: "new", at: now})

	list := h.List(10)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].id)
	assert.Equal(t, "recent", list[1].id)
}
