package mocks

import (
	"context"

	"github.com/benmeehan/geo-locator/pkg/location"
	"github.com/stretchr/testify/mock"
)

// MockDeviceProvider is a mock implementation of location.DeviceProvider
type MockDeviceProvider struct {
	mock.Mock
}

func (m *MockDeviceProvider) Name() string {
	return "mock-device"
}

func (m *MockDeviceProvider) GetCurrentPosition(ctx context.Context, opts location.PositionOptions) (location.Reading, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).(location.Reading), args.Error(1)
}

func (m *MockDeviceProvider) WatchPosition(opts location.PositionOptions, onReading func(location.Reading), onError func(error)) (location.Watch, error) {
	args := m.Called(opts, onReading, onError)
	watch, _ := args.Get(0).(location.Watch)
	return watch, args.Error(1)
}

// MockWatch is a mock implementation of location.Watch
type MockWatch struct {
	mock.Mock
}

func (m *MockWatch) Clear() {
	m.Called()
}

// MockFallbackProvider is a mock implementation of location.FallbackProvider
type MockFallbackProvider struct {
	mock.Mock
}

func (m *MockFallbackProvider) Name() string {
	return "mock-ip"
}

func (m *MockFallbackProvider) Lookup(ctx context.Context) (location.Coordinate, error) {
	args := m.Called(ctx)
	return args.Get(0).(location.Coordinate), args.Error(1)
}
