package mocks

import "github.com/stretchr/testify/mock"

// MockService is a mock implementation of the registry.Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) Start() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockService) Stop() error {
	args := m.Called()
	return args.Error(0)
}

// MockIdentity is a mock implementation of the services.IdentityProvider interface
type MockIdentity struct {
	mock.Mock
}

func (m *MockIdentity) GetDeviceID() string {
	args := m.Called()
	return args.String(0)
}
