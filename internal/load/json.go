package load

import (
	"github.com/i474232898/weather-pipeline/internal/common"
	"github.com/i474232898/weather-pipeline/internal/weather"
)

// jsonRecord renders the timestamp the way the processed table does.
type jsonRecord struct {
	weather.CleanRecord
	Timestamp string `json:"timestamp"`
}

// WriteJSON writes records as a flat, indented JSON array.
func WriteJSON(path string, records []weather.CleanRecord) error {
	out := make([]jsonRecord, len(records))
	for i, r := range records {
		out[i] = jsonRecord{CleanRecord: r, Timestamp: common.FormatTimestamp(r.Timestamp)}
	}
	return common.SaveJSON(path, out)
}
