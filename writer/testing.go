package writer

import (
	"context"
	"errors"
	"sync"

	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/stage"
)

var (
	_ BatchWriter = &Mock{}
	_ Opener      = &Mock{}
	_ Closer      = &Mock{}

	// ErrMockWrite is returned by Mock for the entries listed in FailIDs.
	ErrMockWrite = errors.New("mock write failed")
)

// Mock can be used for mocking tests that need a writer. It records every
// entry it writes and is safe for concurrent use.
type Mock struct {
	Update  bool            `json:"update"`
	FailIDs map[string]bool `json:"fail_ids"`
	OpenErr error           `json:"-"`
	// Block, when set, holds every write until it is closed or ctx is done.
	Block chan struct{} `json:"-"`
	// Entered, when set, receives a value each time a write starts, if it can
	// without blocking.
	Entered chan struct{} `json:"-"`

	mu      sync.Mutex
	entries []*message.Entry
	batches int
	opened  bool
	closed  bool
}

func (m *Mock) Open(ctx context.Context) error {
	if m.OpenErr != nil {
		return m.OpenErr
	}
	m.mu.Lock()
	m.opened = true
	m.mu.Unlock()
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *Mock) Write(ctx context.Context, e *message.Entry) error {
	if err := m.enter(ctx); err != nil {
		return err
	}
	if m.FailIDs[e.ID] {
		return ErrMockWrite
	}
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

func (m *Mock) WriteBatch(ctx context.Context, entries []*message.Entry) error {
	if err := m.enter(ctx); err != nil {
		return err
	}
	var be BatchError
	m.mu.Lock()
	m.batches++
	for _, e := range entries {
		if m.FailIDs[e.ID] {
			be = append(be, stage.EntryError(e.ID, ErrMockWrite))
			continue
		}
		m.entries = append(m.entries, e)
	}
	m.mu.Unlock()
	if len(be) > 0 {
		return be
	}
	return nil
}

func (m *Mock) enter(ctx context.Context) error {
	if m.Entered != nil {
		select {
		case m.Entered <- struct{}{}:
		default:
		}
	}
	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Entries returns the entries written so far.
func (m *Mock) Entries() []*message.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*message.Entry(nil), m.entries...)
}

// Batches returns the number of WriteBatch calls.
func (m *Mock) Batches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches
}

// Opened reports whether Open was called.
func (m *Mock) Opened() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
