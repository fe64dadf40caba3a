package metrics

// Metric names reported by the pipeline stages.
const (
	ExtractSuccesses    = "weather_extract_successes"
	ExtractFailures     = "weather_extract_failures"
	APIResponseTime     = "weather_api_response_time"
	DataPointsExtracted = "weather_data_points_extracted"

	TransformSuccesses      = "weather_transform_successes"
	TransformFailures       = "weather_transform_failures"
	FilesProcessed          = "weather_files_processed"
	RecordsProcessed        = "weather_records_processed"
	RecordsSkipped          = "weather_records_skipped"
	OutliersDetected        = "weather_outliers_detected"
	TransformProcessingTime = "weather_transform_processing_time"

	AnalysisSuccesses      = "weather_analysis_successes"
	AnalysisFailures       = "weather_analysis_failures"
	VisualizationsCreated  = "weather_visualizations_created"
	AnalysisProcessingTime = "weather_analysis_processing_time"

	LoadSuccesses      = "weather_load_successes"
	LoadFailures       = "weather_load_failures"
	RecordsLoaded      = "weather_records_loaded"
	LoadProcessingTime = "weather_load_processing_time"

	PipelineRuns     = "weather_pipeline_runs"
	PipelineFailures = "weather_pipeline_failures"
	PipelineDuration = "weather_pipeline_duration_seconds"
)
