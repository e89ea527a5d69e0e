package client_test

import (
	"context"
	"testing"

	"github.com/vocabstream/vocabstream/client"
)

func TestWithSession(t *testing.T) {
	c := &client.Mock{}
	defer c.Close()
	var sess *client.MockSession
	err := client.WithSession(context.Background(), c, func(s client.Session) error {
		sess = s.(*client.MockSession)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected WithSession error, %s", err)
	}
	if !sess.Closed {
		t.Errorf("session was not closed")
	}
}

func TestWithSessionConnectError(t *testing.T) {
	var called bool
	err := client.WithSession(context.Background(), &client.MockErr{}, func(client.Session) error {
		called = true
		return nil
	})
	if err != client.ErrMockConnect {
		t.Errorf("wrong error, expected %s, got %v", client.ErrMockConnect, err)
	}
	if called {
		t.Error("op called without a session")
	}
}

func TestWithSessionOpError(t *testing.T) {
	err := client.WithSession(context.Background(), &client.Mock{}, func(client.Session) error {
		return client.ErrMockWrite
	})
	if err != client.ErrMockWrite {
		t.Errorf("wrong error, expected %s, got %v", client.ErrMockWrite, err)
	}
}
