package mocks

import "github.com/stretchr/testify/mock"

// MockLocator is a mock implementation of the web.Locator interface
type MockLocator struct {
	mock.Mock
}

func (m *MockLocator) LocateOnce() {
	m.Called()
}

func (m *MockLocator) ToggleTracking() {
	m.Called()
}

func (m *MockLocator) Tracking() bool {
	args := m.Called()
	return args.Bool(0)
}
