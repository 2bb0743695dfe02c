package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/benmeehan/geo-locator/pkg/file"
	"github.com/benmeehan/geo-locator/pkg/location"
)

// Supported device provider kinds.
const (
	ProviderGPS    = "gps"
	ProviderGoogle = "google"
	ProviderNone   = "none"
)

// Config represents the structure of the configuration file.
type Config struct {
	Log struct {
		Level  string `yaml:"level"`  // zerolog level name
		Pretty bool   `yaml:"pretty"` // Human readable console output instead of JSON
	} `yaml:"log"`

	Server struct {
		Addr            string        `yaml:"addr"`             // HTTP listen address
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Graceful shutdown timeout
	} `yaml:"server"`

	Map struct {
		InitialLatitude  float64 `yaml:"initial_lat"`
		InitialLongitude float64 `yaml:"initial_lng"`
		InitialZoom      int     `yaml:"initial_zoom"`
		MinZoom          int     `yaml:"min_zoom"` // Zoom level a reading never goes below
		TileURL          string  `yaml:"tile_url"`
		Attribution      string  `yaml:"attribution"`
	} `yaml:"map"`

	Locator struct {
		Provider         string                   `yaml:"provider"` // gps, google or none
		Position         location.PositionOptions `yaml:"position"`
		BusyReset        time.Duration            `yaml:"busy_reset"`        // Delay before the locate button is re-enabled
		FallbackAccuracy float64                  `yaml:"fallback_accuracy"` // Accuracy assigned to IP readings, meters

		GPS struct {
			Port     string `yaml:"port"`      // UNIX port where the GPS sensor is mounted
			BaudRate int    `yaml:"baud_rate"` // The baud rate for the GPS sensor
		} `yaml:"gps"`

		Google struct {
			APIKey       string        `yaml:"api_key"`       // Google maps API key
			ModemIndex   int           `yaml:"modem_index"`   // ModemManager index used for cell tower lookups
			PollInterval time.Duration `yaml:"poll_interval"` // Interval between requests while tracking
		} `yaml:"google"`

		IPFallback struct {
			Endpoint string        `yaml:"endpoint"`
			Timeout  time.Duration `yaml:"timeout"`
		} `yaml:"ip_fallback"`
	} `yaml:"locator"`

	MQTT struct {
		Enabled       bool   `yaml:"enabled"`        // Publish applied readings over MQTT
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID prefix
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate, empty for plain TCP
		Topic         string `yaml:"topic"`          // Topic readings are published to
		QOS           int    `yaml:"qos"`            // MQTT QoS level for location messages
		IdentityFile  string `yaml:"identity_file"`  // Where the locator id stamped on messages is kept
	} `yaml:"mqtt"`

	Telemetry struct {
		Tracing bool `yaml:"tracing"` // Export OpenTelemetry traces to stdout
	} `yaml:"telemetry"`
}

// DefaultConfig returns the configuration used for any field the file leaves unset.
func DefaultConfig() *Config {
	var c Config
	c.Log.Level = "info"
	c.Server.Addr = ":8080"
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Map.InitialZoom = 2
	c.Map.MinZoom = 16
	c.Map.TileURL = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	c.Map.Attribution = "© OpenStreetMap"
	c.Locator.Provider = ProviderGPS
	c.Locator.Position = location.DefaultPositionOptions()
	c.Locator.BusyReset = 2 * time.Second
	c.Locator.FallbackAccuracy = 50000
	c.Locator.GPS.Port = "/dev/ttyUSB0"
	c.Locator.GPS.BaudRate = 9600
	c.Locator.Google.PollInterval = 10 * time.Second
	c.Locator.IPFallback.Endpoint = location.DefaultIPEndpoint
	c.Locator.IPFallback.Timeout = 10 * time.Second
	c.MQTT.ClientID = "geo-locator"
	c.MQTT.Topic = "locator/readings"
	c.MQTT.QOS = 1
	c.MQTT.IdentityFile = "data/identity.json"
	return &c
}

// LoadConfig loads the YAML configuration from the specified file on top of
// DefaultConfig and applies LOCATOR_* environment overrides.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	config := DefaultConfig()

	exists, err := fileClient.IsFileExists(filename)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := fileClient.ReadYamlFile(filename, config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("LOCATOR_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := os.LookupEnv("LOCATOR_PROVIDER"); ok {
		c.Locator.Provider = v
	}
	if v, ok := os.LookupEnv("LOCATOR_GPS_PORT"); ok {
		c.Locator.GPS.Port = v
	}
	if v, ok := os.LookupEnv("LOCATOR_MAPS_API_KEY"); ok {
		c.Locator.Google.APIKey = v
	}
	if v, ok := os.LookupEnv("LOCATOR_IP_ENDPOINT"); ok {
		c.Locator.IPFallback.Endpoint = v
	}
	if v, ok := os.LookupEnv("LOCATOR_MQTT_BROKER"); ok {
		c.MQTT.Broker = v
	}
	if v, ok := os.LookupEnv("LOCATOR_MQTT_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.MQTT.Enabled = b
		}
	}
}

// Validate reports configuration that cannot be started.
func (c *Config) Validate() error {
	var errs []error

	switch c.Locator.Provider {
	case ProviderGPS:
		if c.Locator.GPS.Port == "" {
			errs = append(errs, errors.New("locator.gps.port is required for the gps provider"))
		}
	case ProviderGoogle:
		if c.Locator.Google.APIKey == "" {
			errs = append(errs, errors.New("locator.google.api_key is required for the google provider"))
		}
	case ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("unknown locator.provider %q", c.Locator.Provider))
	}

	if c.Map.MinZoom < 0 || c.Map.InitialZoom < 0 {
		errs = append(errs, errors.New("map zoom levels must not be negative"))
	}
	if c.Locator.FallbackAccuracy <= 0 {
		errs = append(errs, errors.New("locator.fallback_accuracy must be positive"))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	if c.MQTT.QOS < 0 || c.MQTT.QOS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos %d out of range", c.MQTT.QOS))
	}

	return errors.Join(errs...)
}
