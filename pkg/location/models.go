package location

import "time"

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Source identifies which provider produced a reading.
type Source string

const (
	SourceDevice Source = "device"
	SourceIP     Source = "ip"
)

// Reading is a single position fix together with its best-effort accuracy
// radius in meters.
type Reading struct {
	Coordinate
	Accuracy  float64   `json:"accuracy"`
	Source    Source    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// PositionOptions controls how a device provider acquires a reading.
type PositionOptions struct {
	EnableHighAccuracy bool          `yaml:"high_accuracy"`
	Timeout            time.Duration `yaml:"timeout"`     // Maximum wait for a fix
	MaximumAge         time.Duration `yaml:"maximum_age"` // Maximum age of a cached fix; 0 disables the cache
}

// DefaultPositionOptions returns high accuracy, a 15s timeout and no cached fixes.
func DefaultPositionOptions() PositionOptions {
	return PositionOptions{
		EnableHighAccuracy: true,
		Timeout:            15 * time.Second,
		MaximumAge:         0,
	}
}
