package reader

import (
	"context"
	"fmt"
	"strings"

	"github.com/vocabstream/vocabstream/message"
)

var _ Reader = &Mock{}

// Mock is a source reader producing Count entries with ids "<Prefix><i>" and
// a data.Data{"n": i} payload. Entries listed in Fail are reported as
// per-entry errors instead. With an upstream it passes entries through.
type Mock struct {
	Prefix  string       `json:"prefix"`
	Count   int          `json:"count"`
	Fail    map[int]bool `json:"-"`
	InitErr error        `json:"-"`
	Closed  bool         `json:"-"`
}

// Read satisfies the Reader interface.
func (m *Mock) Read(_ context.Context, upstream Iterator) (Iterator, error) {
	if m.InitErr != nil {
		return nil, m.InitErr
	}
	if upstream != nil {
		return upstream, nil
	}
	i := 0
	return FuncIter(func(context.Context) (*message.Entry, bool, error) {
		if i >= m.Count {
			return nil, false, nil
		}
		n := i
		i++
		id := fmt.Sprintf("%s%d", m.Prefix, n)
		if m.Fail[n] {
			return nil, true, fmt.Errorf("unable to read %s", id)
		}
		return message.New(id, map[string]interface{}{"n": n}), true, nil
	}, func() error {
		m.Closed = true
		return nil
	}), nil
}

// Description satisfies the Describable interface.
func (m *Mock) Description() string { return "a reader producing numbered entries" }

// SampleConfig satisfies the Describable interface.
func (m *Mock) SampleConfig() string { return "count: 10\n" }

// Splitter is a chained reader that splits every string entry on Sep.
type Splitter struct {
	Sep string `json:"sep"`
}

// Read satisfies the Reader interface.
func (s *Splitter) Read(ctx context.Context, upstream Iterator) (Iterator, error) {
	if upstream == nil {
		return nil, ErrNoSource
	}
	return Expand("split", upstream, func(_ context.Context, e *message.Entry) (Iterator, error) {
		str, ok := e.Data.(string)
		if !ok {
			return nil, UnsupportedDataError{ID: e.ID, Data: e.Data}
		}
		var out []*message.Entry
		for i, part := range splitNonEmpty(str, s.Sep) {
			out = append(out, message.New(fmt.Sprintf("%s/%d", e.ID, i), part))
		}
		return Slice(out...), nil
	}), nil
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
