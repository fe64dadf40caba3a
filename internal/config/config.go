package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-pipeline/internal/weather"
)

// DefaultPath is where the CLI looks for the configuration file.
const DefaultPath = "./config/config.yaml"

const (
	ProviderOpenWeather = "openweathermap"
	ProviderWeatherAPI  = "weatherapi"

	defaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5/weather"
	defaultWeatherAPIURL  = "https://api.weatherapi.com/v1/current.json"
)

// AppConfig is the validated pipeline configuration.
type AppConfig struct {
	API        APIConfig        `yaml:"api"`
	Data       DataConfig       `yaml:"data"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type APIConfig struct {
	Provider string `yaml:"provider" validate:"oneof=openweathermap weatherapi"`
	URL      string `yaml:"url" validate:"required,url"`
	Key      string `yaml:"key"`
	Units    string `yaml:"units" validate:"oneof=metric imperial standard"`
}

type DataConfig struct {
	// Cities to track.
	Cities []weather.Location `yaml:"cities" validate:"required,min=1,dive"`

	RawDataPath       string `yaml:"raw_data_path" validate:"required"`
	ProcessedDataPath string `yaml:"processed_data_path" validate:"required"`
	OutputDataPath    string `yaml:"output_data_path" validate:"required"`
	// DatabasePath defaults to weather_data.db inside OutputDataPath.
	DatabasePath string `yaml:"database_path"`
}

type PipelineConfig struct {
	// RetryAttempts is the total number of API attempts per city.
	RetryAttempts int           `yaml:"retry_attempts" validate:"min=1,max=10"`
	RetryDelay    time.Duration `yaml:"retry_delay" validate:"min=0"`
	Timeout       time.Duration `yaml:"timeout" validate:"min=1ms"`
	StopOnFailure bool          `yaml:"stop_on_failure"`
	// Timezone used for observation timestamps; empty means local time.
	Timezone string `yaml:"timezone"`
	// Schedule is a cron expression used by the schedule command.
	Schedule    string `yaml:"schedule" validate:"required"`
	HistorySize int    `yaml:"history_size" validate:"min=1"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"required"`
	Format string `yaml:"format" validate:"oneof=text json"`
	// File is an optional log file written alongside stderr.
	File string `yaml:"file"`
}

type MonitoringConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port" validate:"min=1,max=65535"`
}

// Location resolves Pipeline.Timezone.
func (c *AppConfig) Location() (*time.Location, error) {
	if c.Pipeline.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Pipeline.Timezone)
}

var validate = validator.New()

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debugf("config: no .env file loaded: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document into a validated AppConfig.
func Parse(data []byte) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration once at startup.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid config: %w", verrs)
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: pipeline.timezone: %w", err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("OPENWEATHERMAP_KEY"); v != "" {
		cfg.API.Key = v
	}
	if v := os.Getenv("WEATHER_API_URL"); v != "" {
		cfg.API.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	cfg.Monitoring.Port = getenvInt("MONITORING_PORT", cfg.Monitoring.Port)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.API.Provider == "" {
		cfg.API.Provider = ProviderOpenWeather
	}
	if cfg.API.URL == "" {
		cfg.API.URL = defaultOpenWeatherURL
		if cfg.API.Provider == ProviderWeatherAPI {
			cfg.API.URL = defaultWeatherAPIURL
		}
	}
	if cfg.API.Units == "" {
		cfg.API.Units = "metric"
	}

	if cfg.Data.RawDataPath == "" {
		cfg.Data.RawDataPath = "data/raw"
	}
	if cfg.Data.ProcessedDataPath == "" {
		cfg.Data.ProcessedDataPath = "data/processed"
	}
	if cfg.Data.OutputDataPath == "" {
		cfg.Data.OutputDataPath = "data/output"
	}
	if cfg.Data.DatabasePath == "" {
		cfg.Data.DatabasePath = filepath.Join(cfg.Data.OutputDataPath, "weather_data.db")
	}

	if cfg.Pipeline.RetryAttempts == 0 {
		cfg.Pipeline.RetryAttempts = 3
	}
	if cfg.Pipeline.RetryDelay == 0 {
		cfg.Pipeline.RetryDelay = 2 * time.Second
	}
	if cfg.Pipeline.Timeout == 0 {
		cfg.Pipeline.Timeout = 30 * time.Second
	}
	if cfg.Pipeline.Schedule == "" {
		// Daily at midnight.
		cfg.Pipeline.Schedule = "0 0 * * *"
	}
	if cfg.Pipeline.HistorySize == 0 {
		cfg.Pipeline.HistorySize = 50
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Monitoring.Port == 0 {
		cfg.Monitoring.Port = 8000
	}
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
		log.Warnf("config: ignoring invalid %s=%q", key, v)
	}
	return def
}
