package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/geo-locator/internal/models"
	"github.com/benmeehan/geo-locator/pkg/location"
	"github.com/benmeehan/geo-locator/pkg/mqtt"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// IdentityProvider supplies the id stamped on published readings.
type IdentityProvider interface {
	GetDeviceID() string
}

// LocationPublisher forwards every reading applied to the map to an MQTT topic.
type LocationPublisher struct {
	// Configuration fields
	topic string
	qos   int

	// Dependencies
	identity   IdentityProvider
	mqttClient mqtt.MQTTClient
	logger     zerolog.Logger

	// Internal state management
	mu       sync.Mutex
	readings chan location.Reading
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
}

// NewLocationPublisher creates a publisher that buffers up to bufferSize readings.
func NewLocationPublisher(topic string, qos int, bufferSize int, identity IdentityProvider,
	mqttClient mqtt.MQTTClient, logger zerolog.Logger) *LocationPublisher {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &LocationPublisher{
		topic:      topic,
		qos:        qos,
		identity:   identity,
		mqttClient: mqttClient,
		logger:     logger,
		readings:   make(chan location.Reading, bufferSize),
	}
}

// Start launches the publishing goroutine.
func (l *LocationPublisher) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		l.logger.Warn().Msg("LocationPublisher is already running")
		return errors.New("location publisher is already running")
	}

	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.running = true

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			select {
			case r := <-l.readings:
				if err := l.publish(r); err != nil {
					l.logger.Error().Err(err).Str("topic", l.topic).Msg("Failed to publish location message to MQTT")
				}
			case <-l.ctx.Done():
				l.logger.Info().Msg("LocationPublisher is stopping")
				return
			}
		}
	}()

	l.logger.Info().
		Str("topic", l.topic).
		Int("qos", l.qos).
		Msg("LocationPublisher started")
	return nil
}

// Stop waits for the publishing goroutine and disconnects the MQTT client.
func (l *LocationPublisher) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		l.logger.Warn().Msg("LocationPublisher is not running")
		return errors.New("location publisher is not running")
	}
	l.running = false
	l.cancel()
	l.mu.Unlock()

	l.wg.Wait()
	l.mqttClient.Disconnect(250)

	l.logger.Info().Msg("LocationPublisher stopped")
	return nil
}

// Publish queues r without blocking. Readings are dropped when the buffer is full.
func (l *LocationPublisher) Publish(r location.Reading) {
	select {
	case l.readings <- r:
	default:
		l.logger.Warn().Str("source", string(r.Source)).Msg("LocationPublisher buffer full, dropping reading")
	}
}

func (l *LocationPublisher) publish(r location.Reading) error {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	locationMessage := models.Location{
		DeviceID:  l.identity.GetDeviceID(),
		Timestamp: ts.UTC(),
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Accuracy:  r.Accuracy,
		Source:    string(r.Source),
	}

	payload, err := json.Marshal(locationMessage)
	if err != nil {
		return err
	}

	token := l.mqttClient.Publish(l.topic, byte(l.qos), false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("timed out publishing location message")
	}
	if err := token.Error(); err != nil {
		return err
	}

	l.logger.Debug().
		Interface("message", locationMessage).
		Str("topic", l.topic).
		Msg("Location published successfully")
	return nil
}
