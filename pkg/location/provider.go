package location

import "context"

// DeviceProvider is a precise location source such as a GPS receiver.
type DeviceProvider interface {
	Name() string
	// GetCurrentPosition blocks until a single fix is available or opts.Timeout elapses.
	GetCurrentPosition(ctx context.Context, opts PositionOptions) (Reading, error)
	// WatchPosition delivers fixes continuously until the returned Watch is cleared.
	// onError is called at most once and ends the watch.
	WatchPosition(opts PositionOptions, onReading func(Reading), onError func(error)) (Watch, error)
}

// Watch is the handle of a continuous subscription.
type Watch interface {
	Clear()
}

// FallbackProvider is a coarse location source used when the device fails.
type FallbackProvider interface {
	Name() string
	Lookup(ctx context.Context) (Coordinate, error)
}
