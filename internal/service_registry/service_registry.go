package service_registry

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/benmeehan/geo-locator/internal/controller"
	"github.com/benmeehan/geo-locator/internal/registry"
	"github.com/benmeehan/geo-locator/internal/services"
	"github.com/benmeehan/geo-locator/internal/utils"
	"github.com/benmeehan/geo-locator/internal/web"
	"github.com/benmeehan/geo-locator/pkg/location"
	"github.com/benmeehan/geo-locator/pkg/mqtt"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ServiceRegistry manages the lifecycle of the locator's services.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration
	mqttClient  mqtt.MQTTClient             // nil when MQTT publishing is disabled
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]registry.Service),
		mqttClient: mqttClient,
		Logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Service returns a registered service by name.
func (sr *ServiceRegistry) Service(name string) (registry.Service, bool) {
	svc, ok := sr.services[name]
	return svc, ok
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices builds the locator from config and registers its services:
// the MQTT publisher when enabled, the location controller and the web server.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, identity services.IdentityProvider) error {
	device, err := sr.newDeviceProvider(config)
	if err != nil {
		sr.Logger.Error().Err(err).Str("provider", config.Locator.Provider).Msg("Failed to create device provider")
		return err
	}

	var transport http.RoundTripper = http.DefaultTransport
	if config.Telemetry.Tracing {
		transport = otelhttp.NewTransport(transport)
	}
	fallback := location.NewIPGeolocationProvider(config.Locator.IPFallback.Endpoint, &http.Client{
		Timeout:   config.Locator.IPFallback.Timeout,
		Transport: transport,
	})

	mapView := web.NewMapView(
		location.Coordinate{Latitude: config.Map.InitialLatitude, Longitude: config.Map.InitialLongitude},
		config.Map.InitialZoom,
		web.TileLayer{URL: config.Map.TileURL, Attribution: config.Map.Attribution},
		sr.Logger.With().Str("component", "map").Logger(),
	)

	var sinks []controller.ReadingSink
	if config.MQTT.Enabled && sr.mqttClient != nil {
		publisher := services.NewLocationPublisher(
			config.MQTT.Topic,
			config.MQTT.QOS,
			0,
			identity,
			sr.mqttClient,
			sr.Logger.With().Str("component", "publisher").Logger(),
		)
		sinks = append(sinks, publisher)
		sr.RegisterService("publisher", publisher)
	}

	opts := controller.DefaultOptions()
	opts.Position = config.Locator.Position
	opts.BusyReset = config.Locator.BusyReset
	opts.MinZoom = config.Map.MinZoom
	opts.FallbackAccuracy = config.Locator.FallbackAccuracy
	opts.FallbackTimeout = config.Locator.IPFallback.Timeout

	locator := controller.NewLocationController(device, fallback, mapView, mapView, mapView, opts,
		sr.Logger.With().Str("component", "controller").Logger(), sinks...)
	sr.RegisterService("controller", locator)

	server := web.NewServer(config.Server.Addr, locator, mapView, sr.Logger.With().Str("component", "web").Logger())
	server.ShutdownTimeout = config.Server.ShutdownTimeout
	server.Tracing = config.Telemetry.Tracing
	sr.RegisterService("web", server)

	sr.Logger.Info().Msgf("Registered services in order: %v", sr.serviceKeys)
	return nil
}

// newDeviceProvider returns nil without error for the "none" provider so the
// controller sees no device capability.
func (sr *ServiceRegistry) newDeviceProvider(config *utils.Config) (location.DeviceProvider, error) {
	switch config.Locator.Provider {
	case utils.ProviderGPS:
		return location.NewDeviceSensorProvider(config.Locator.GPS.Port, config.Locator.GPS.BaudRate), nil
	case utils.ProviderGoogle:
		p, err := location.NewGoogleGeolocationProvider(
			config.Locator.Google.APIKey,
			config.Locator.Google.ModemIndex,
			config.Locator.Google.PollInterval,
			sr.Logger.With().Str("component", "google").Logger(),
		)
		if err != nil {
			return nil, err
		}
		return p, nil
	case utils.ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown device provider %q", config.Locator.Provider)
	}
}
