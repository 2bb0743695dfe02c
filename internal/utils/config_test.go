package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/geo-locator/pkg/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), file.NewFileService())
	require.NoError(t, err)

	assert.Equal(t, ":8080", config.Server.Addr)
	assert.Equal(t, 2, config.Map.InitialZoom)
	assert.Equal(t, 16, config.Map.MinZoom)
	assert.True(t, config.Locator.Position.EnableHighAccuracy)
	assert.Equal(t, 15*time.Second, config.Locator.Position.Timeout)
	assert.Zero(t, config.Locator.Position.MaximumAge)
	assert.Equal(t, 2*time.Second, config.Locator.BusyReset)
	assert.Equal(t, 50000.0, config.Locator.FallbackAccuracy)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
locator:
  provider: google
  position:
    timeout: 5s
  google:
    api_key: abc
    poll_interval: 30s
mqtt:
  enabled: true
  broker: tcp://localhost:1883
`)

	config, err := LoadConfig(path, file.NewFileService())
	require.NoError(t, err)

	assert.Equal(t, ":9090", config.Server.Addr)
	assert.Equal(t, ProviderGoogle, config.Locator.Provider)
	assert.Equal(t, 5*time.Second, config.Locator.Position.Timeout)
	assert.Equal(t, 30*time.Second, config.Locator.Google.PollInterval)
	assert.Equal(t, "abc", config.Locator.Google.APIKey)
	assert.True(t, config.MQTT.Enabled)
	// untouched sections keep their defaults
	assert.Equal(t, 16, config.Map.MinZoom)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("LOCATOR_PROVIDER", "google")
	t.Setenv("LOCATOR_MAPS_API_KEY", "from-env")

	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), file.NewFileService())
	require.NoError(t, err)
	assert.Equal(t, "from-env", config.Locator.Google.APIKey)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeConfig(t, `
locator:
  provider: carrier-pigeon
mqtt:
  enabled: true
`)

	_, err := LoadConfig(path, file.NewFileService())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
	assert.Contains(t, err.Error(), "mqtt.broker")
}

func TestLoadConfig_UnknownField(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 80\n")

	_, err := LoadConfig(path, file.NewFileService())
	assert.Error(t, err)
}

func TestLoadConfig_ShippedConfig(t *testing.T) {
	config, err := LoadConfig(filepath.Join("..", "..", "configs", "config.yaml"), file.NewFileService())
	require.NoError(t, err)

	assert.Equal(t, ProviderGPS, config.Locator.Provider)
	assert.Equal(t, 16, config.Map.MinZoom)
	assert.Equal(t, 2*time.Second, config.Locator.BusyReset)
	assert.Equal(t, 15*time.Second, config.Locator.Position.Timeout)
	assert.Equal(t, "data/identity.json", config.MQTT.IdentityFile)
	assert.False(t, config.MQTT.Enabled)
}
