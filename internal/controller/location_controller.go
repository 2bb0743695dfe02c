package controller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/benmeehan/geo-locator/internal/telemetry"
	"github.com/benmeehan/geo-locator/internal/utils"
	"github.com/benmeehan/geo-locator/pkg/location"
	"github.com/rs/zerolog"
)

const (
	msgFallbackNotice  = "Geolocation not supported - using IP fallback"
	msgNotSupported    = "Geolocation not supported on your device."
	msgLocationError   = "Location error: %v"
	msgFallbackFailure = "Could not determine your location."
)

var accuracyCircleStyle = CircleStyle{Color: "blue", FillOpacity: 0.2}

// Options configures a LocationController.
type Options struct {
	Position         location.PositionOptions
	BusyReset        time.Duration // Delay before the locate button is re-enabled
	MinZoom          int           // Readings never leave the map zoomed out further than this
	FallbackAccuracy float64       // Accuracy assigned to IP readings, meters
	FallbackTimeout  time.Duration
	QueueSize        int // Event loop capacity
}

// DefaultOptions returns the options the locator ships with.
func DefaultOptions() Options {
	return Options{
		Position:         location.DefaultPositionOptions(),
		BusyReset:        2 * time.Second,
		MinZoom:          16,
		FallbackAccuracy: 50000,
		FallbackTimeout:  10 * time.Second,
		QueueSize:        64,
	}
}

// trackingSession is the single continuous subscription. watch is non-nil
// exactly while the session is active.
type trackingSession struct {
	id    uint64
	watch location.Watch
}

func (s trackingSession) active() bool {
	return s.watch != nil
}

// LocationController acquires the user's location once or continuously,
// draws it on the map and degrades to IP geolocation when the device fails.
//
// All state changes run on a single-worker event loop; provider callbacks are
// queued onto it, so session and display fields need no locking.
type LocationController struct {
	device   location.DeviceProvider // nil when the host has no geolocation capability
	fallback location.FallbackProvider
	display  MapDisplay
	controls Controls
	notifier Notifier
	sinks    []ReadingSink
	opts     Options
	logger   zerolog.Logger

	loop    *utils.WorkerPool
	ctx     context.Context
	cancel  context.CancelFunc
	stopped atomic.Bool

	// Owned by the event loop
	session     trackingSession
	lastSession uint64
	marker      LayerID
	circle      LayerID
}

// NewLocationController creates a controller and starts its event loop.
func NewLocationController(device location.DeviceProvider, fallback location.FallbackProvider,
	display MapDisplay, controls Controls, notifier Notifier, opts Options,
	logger zerolog.Logger, sinks ...ReadingSink) *LocationController {

	if opts.FallbackTimeout <= 0 {
		opts.FallbackTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &LocationController{
		device:   device,
		fallback: fallback,
		display:  display,
		controls: controls,
		notifier: notifier,
		sinks:    sinks,
		opts:     opts,
		logger:   logger,
		loop:     utils.NewWorkerPool(1, opts.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start publishes the initial button states.
func (c *LocationController) Start() error {
	if c.stopped.Load() {
		return errors.New("location controller is stopped")
	}
	c.dispatch("init", func() {
		c.controls.SetLocateButton(LocateIdle)
		c.controls.SetTrackButton(TrackIdle)
	})

	provider := "none"
	if c.device != nil {
		provider = c.device.Name()
	}
	c.logger.Info().Str("device_provider", provider).Msg("LocationController started")
	return nil
}

// Stop ends any tracking session and shuts down the event loop.
func (c *LocationController) Stop() error {
	if c.stopped.Swap(true) {
		return errors.New("location controller is not running")
	}

	done := make(chan struct{})
	if c.loop.Submit(func() {
		defer close(done)
		if c.session.active() {
			c.stopTracking()
		}
	}) {
		<-done
	}

	c.cancel()
	c.loop.Shutdown()
	c.logger.Info().Msg("LocationController stopped")
	return nil
}

// LocateOnce requests a single reading. The result shows up on the map or as an alert.
func (c *LocationController) LocateOnce() {
	c.dispatch("locate_once", c.locateOnce)
}

// ToggleTracking starts continuous tracking when idle and stops it when active.
func (c *LocationController) ToggleTracking() {
	c.dispatch("toggle_tracking", c.toggleTracking)
}

// Tracking reports whether a tracking session is active.
func (c *LocationController) Tracking() bool {
	res := make(chan bool, 1)
	if !c.loop.Submit(func() { res <- c.session.active() }) {
		return false
	}
	select {
	case active := <-res:
		return active
	case <-c.ctx.Done():
		return false
	}
}

func (c *LocationController) dispatch(op string, fn func()) {
	if !c.loop.Submit(fn) {
		c.logger.Debug().Str("op", op).Msg("LocationController is stopped, dropping event")
	}
}

func (c *LocationController) locateOnce() {
	telemetry.LocateRequests.WithLabelValues("once").Inc()

	if c.device == nil {
		c.notifier.Alert(msgFallbackNotice)
		c.applyFallback(location.ErrCapabilityUnavailable)
		return
	}

	// The button comes back after a fixed delay, whether or not the request has settled
	c.controls.SetLocateButton(LocateBusy)
	time.AfterFunc(c.opts.BusyReset, func() {
		c.dispatch("locate_button_reset", func() {
			c.controls.SetLocateButton(LocateIdle)
		})
	})

	go func() {
		reading, err := c.device.GetCurrentPosition(c.ctx, c.opts.Position)
		c.dispatch("locate_result", func() {
			if c.ctx.Err() != nil {
				return
			}
			if err != nil {
				c.applyFallback(err)
				return
			}
			c.applyReading(reading)
		})
	}()
}

func (c *LocationController) toggleTracking() {
	if c.session.active() {
		c.stopTracking()
		return
	}

	if c.device == nil {
		c.logger.Warn().Err(location.ErrCapabilityUnavailable).Msg("Tracking requested without a device provider")
		c.notifier.Alert(msgNotSupported)
		return
	}

	telemetry.LocateRequests.WithLabelValues("watch").Inc()
	c.lastSession++
	id := c.lastSession

	watch, err := c.device.WatchPosition(c.opts.Position,
		func(r location.Reading) {
			c.dispatch("watch_reading", func() {
				if c.session.id != id || !c.session.active() {
					return
				}
				c.applyReading(r)
			})
		},
		func(err error) {
			c.dispatch("watch_error", func() {
				if c.session.id != id || !c.session.active() {
					return
				}
				c.applyFallback(err)
				c.toggleTracking()
			})
		},
	)
	if err == nil && watch == nil {
		err = fmt.Errorf("%s returned no watch handle", c.device.Name())
	}
	if err != nil {
		c.applyFallback(err)
		return
	}

	c.session = trackingSession{id: id, watch: watch}
	c.controls.SetTrackButton(TrackActive)
	telemetry.TrackingActive.Set(1)
	c.logger.Info().Uint64("session", id).Msg("Tracking started")
}

func (c *LocationController) stopTracking() {
	id := c.session.id
	c.session.watch.Clear()
	c.session = trackingSession{}
	c.controls.SetTrackButton(TrackIdle)
	telemetry.TrackingActive.Set(0)
	c.logger.Info().Uint64("session", id).Msg("Tracking stopped")
}

// applyReading replaces the marker and accuracy circle and recenters the map.
func (c *LocationController) applyReading(r location.Reading) {
	if c.marker != "" {
		c.display.RemoveLayer(c.marker)
		c.marker = ""
	}
	if c.circle != "" {
		c.display.RemoveLayer(c.circle)
		c.circle = ""
	}

	radius := r.Accuracy / 2
	c.marker = c.display.AddMarker(r.Coordinate, fmt.Sprintf("You are here (accuracy: %dm)", int(math.Round(radius))))
	c.circle = c.display.AddCircle(r.Coordinate, radius, accuracyCircleStyle)

	zoom := max(c.display.Zoom(), c.opts.MinZoom)
	c.display.SetView(r.Coordinate, zoom)

	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	for _, sink := range c.sinks {
		sink.Publish(r)
	}

	telemetry.ReadingsApplied.WithLabelValues(string(r.Source)).Inc()
	c.logger.Debug().
		Str("source", string(r.Source)).
		Float64("lat", r.Latitude).
		Float64("lng", r.Longitude).
		Float64("radius", radius).
		Int("zoom", zoom).
		Msg("Reading applied")
}

// applyFallback reports err and tries a single IP lookup.
func (c *LocationController) applyFallback(cause error) {
	telemetry.ProviderErrors.WithLabelValues(errorKind(cause)).Inc()
	c.logger.Error().Err(cause).Msg("Location error")
	c.notifier.Alert(fmt.Sprintf(msgLocationError, cause))

	if c.fallback == nil {
		c.fallbackFailed(location.ErrFallbackUnavailable)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.opts.FallbackTimeout)
		defer cancel()

		coord, err := c.fallback.Lookup(ctx)
		c.dispatch("fallback_result", func() {
			if c.ctx.Err() != nil {
				return
			}
			if err != nil {
				c.fallbackFailed(err)
				return
			}
			telemetry.FallbackLookups.WithLabelValues("success").Inc()
			c.applyReading(location.Reading{
				Coordinate: coord,
				Accuracy:   c.opts.FallbackAccuracy,
				Source:     location.SourceIP,
				Timestamp:  time.Now(),
			})
		})
	}()
}

func (c *LocationController) fallbackFailed(err error) {
	telemetry.FallbackLookups.WithLabelValues("failure").Inc()
	c.logger.Error().Err(err).Msg("IP location fallback failed")
	c.notifier.Alert(msgFallbackFailure)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, location.ErrCapabilityUnavailable):
		return "unavailable"
	case errors.Is(err, location.ErrProviderDenied):
		return "denied"
	case errors.Is(err, location.ErrProviderTimeout):
		return "timeout"
	default:
		return "other"
	}
}
