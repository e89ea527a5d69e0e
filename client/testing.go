package client

import (
	"context"
	"errors"
)

var (
	ErrMockConnect = errors.New("connect failed")
	ErrMockWrite   = errors.New("write failed")
)

// Mock can be used for mocking tests that need no actual client or Session.
type Mock struct {
	Closed bool
}

// Connect satisfies the Client interface.
func (c *Mock) Connect(context.Context) (Session, error) {
	return &MockSession{}, nil
}

// Close satisfies the Closer interface.
func (c *Mock) Close() { c.Closed = true }

// MockErr can be used for mocking tests that need no actual client or Session.
type MockErr struct {
}

// Connect satisfies the Client interface.
func (c *MockErr) Connect(context.Context) (Session, error) {
	return nil, ErrMockConnect
}

// MockSession can be used for mocking tests the do not need to use anything in the Session.
type MockSession struct {
	Closed bool
}

// Close satisfies the Closer interface.
func (s *MockSession) Close() { s.Closed = true }
