package location

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"
)

// GoogleGeolocationProvider uses the Google Maps Geolocation API, optionally
// enriched with nearby WiFi access points and the serving cell tower.
type GoogleGeolocationProvider struct {
	client       *maps.Client // Maps API client for making geolocation requests
	modemIndex   int
	pollInterval time.Duration
	logger       zerolog.Logger
	cache        lastFix
}

// NewGoogleGeolocationProvider creates a new GoogleGeolocationProvider instance.
// Extra client options are appended after the API key.
func NewGoogleGeolocationProvider(apiKey string, modemIndex int, pollInterval time.Duration,
	logger zerolog.Logger, opts ...maps.ClientOption) (*GoogleGeolocationProvider, error) {
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}

	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}

	return &GoogleGeolocationProvider{
		client:       c,
		modemIndex:   modemIndex,
		pollInterval: pollInterval,
		logger:       logger,
	}, nil
}

func (g *GoogleGeolocationProvider) Name() string {
	return "google"
}

// GetCurrentPosition retrieves the device's location using the Geolocation API.
func (g *GoogleGeolocationProvider) GetCurrentPosition(ctx context.Context, opts PositionOptions) (Reading, error) {
	if r, ok := g.cache.get(opts.MaximumAge); ok {
		return r, nil
	}

	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	req := &maps.GeolocationRequest{ConsiderIP: true}
	if opts.EnableHighAccuracy {
		if wifiAPs, err := getWiFiAccessPoints(ctx); err != nil {
			g.logger.Debug().Err(err).Msg("WiFi scan unavailable")
		} else {
			req.WiFiAccessPoints = wifiAPs
		}
		if cellTowers, err := getCellTowers(ctx, g.modemIndex); err != nil {
			g.logger.Debug().Err(err).Msg("Cell tower scan unavailable")
		} else {
			req.CellTowers = cellTowers
		}
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		return Reading{}, classifyError(fmt.Errorf("google geolocate: %w", err))
	}

	reading := Reading{
		Coordinate: Coordinate{Latitude: resp.Location.Lat, Longitude: resp.Location.Lng},
		Accuracy:   resp.Accuracy,
		Source:     SourceDevice,
		Timestamp:  time.Now(),
	}
	g.cache.set(reading)

	g.logger.Debug().
		Float64("lat", reading.Latitude).
		Float64("lng", reading.Longitude).
		Float64("accuracy", reading.Accuracy).
		Int("wifi_aps", len(req.WiFiAccessPoints)).
		Int("cell_towers", len(req.CellTowers)).
		Msg("Geolocation resolved")
	return reading, nil
}

// WatchPosition polls the API at the configured interval.
func (g *GoogleGeolocationProvider) WatchPosition(opts PositionOptions, onReading func(Reading), onError func(error)) (Watch, error) {
	return pollWatch(g.pollInterval, opts, g.GetCurrentPosition, onReading, onError), nil
}
