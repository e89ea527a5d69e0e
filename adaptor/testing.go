package adaptor

import "errors"

// ErrMockInvalid is returned by MockPlugin.Validate when Invalid is set.
var ErrMockInvalid = errors.New("mock config invalid")

// MockPlugin can be used for testing registries without a real plugin.
type MockPlugin struct {
	BaseConfig
	Invalid bool `json:"invalid"`
}

// Validate satisfies the Validator interface.
func (m *MockPlugin) Validate() error {
	if m.Invalid {
		return ErrMockInvalid
	}
	return nil
}

// Description satisfies the Describable interface.
func (m *MockPlugin) Description() string { return "a mock plugin" }

// SampleConfig satisfies the Describable interface.
func (m *MockPlugin) SampleConfig() string { return "uri: mock://localhost" }
