// Package client holds the connection contracts shared by the writers that
// talk to an external service.
package client

import "context"

// Client provides a standard interface for interacting with the underlying sinks.
type Client interface {
	Connect(context.Context) (Session, error)
}

// Session represents the connection to the underlying service.
type Session interface {
}

// Closer provides a standard interface for closing a client or session
type Closer interface {
	Close()
}

// WithSession connects, runs op against the Session and closes the Session
// when it supports it.
func WithSession(ctx context.Context, c Client, op func(Session) error) error {
	sess, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	if s, ok := sess.(Closer); ok {
		defer s.Close()
	}
	return op(sess)
}
