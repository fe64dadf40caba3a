package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-pipeline/internal/config"
)

func TestSetupWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pipeline.log")

	closer, err := Setup(config.LoggingConfig{Level: "INFO", Format: "json", File: path})
	require.NoError(t, err)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	log.Debug("hidden")
	log.WithField("city", "London").Info("transform: visible")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"city":"London"`)
	assert.Contains(t, string(data), "transform: visible")
	assert.NotContains(t, string(data), "hidden")
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	_, err := Setup(config.LoggingConfig{Level: "LOUD", Format: "text"})
	assert.Error(t, err)
}

func TestSetupStderrOnly(t *testing.T) {
	closer, err := Setup(config.LoggingConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
	assert.Equal(t, log.DebugLevel, log.GetLevel())
}
