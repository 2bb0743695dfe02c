package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LocateRequests counts location requests by mode (once, watch)
	LocateRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "locator",
			Name:      "locate_requests_total",
			Help:      "Total number of device location requests",
		},
		[]string{"mode"},
	)

	// ReadingsApplied counts readings drawn on the map by source (device, ip)
	ReadingsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "locator",
			Name:      "readings_applied_total",
			Help:      "Total number of readings applied to the map",
		},
		[]string{"source"},
	)

	// ProviderErrors counts device provider failures by kind
	ProviderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "locator",
			Name:      "provider_errors_total",
			Help:      "Total number of device provider failures",
		},
		[]string{"kind"},
	)

	// FallbackLookups counts IP fallback lookups by result (success, failure)
	FallbackLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "locator",
			Name:      "fallback_lookups_total",
			Help:      "Total number of IP geolocation fallback lookups",
		},
		[]string{"result"},
	)

	// TrackingActive is 1 while a tracking session is running
	TrackingActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "locator",
			Name:      "tracking_active",
			Help:      "Whether continuous tracking is active",
		},
	)

	// WebsocketClients is the number of connected map clients
	WebsocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "locator",
			Name:      "websocket_clients",
			Help:      "Number of connected map clients",
		},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// It is safe to call more than once.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.MustRegister(
			LocateRequests,
			ReadingsApplied,
			ProviderErrors,
			FallbackLookups,
			TrackingActive,
			WebsocketClients,
		)
	})
}
