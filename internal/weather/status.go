package weather

// Status is the outcome of a single pipeline stage.
type Status string

const (
	StatusSuccess Status = "success"
	StatusNoData  Status = "no_data"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)
