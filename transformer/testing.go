package transformer

import (
	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/message"
)

var (
	_ Transformer = &Mock{}
)

// Mock counts the entries it is applied to. It fails the entries listed in
// FailIDs with Err, filters those in FilterIDs and passes the rest through.
type Mock struct {
	ApplyCount int
	Err        error
	FailIDs    map[string]bool
	FilterIDs  map[string]bool
}

// Apply satisfies the Transformer interface.
func (m *Mock) Apply(e *message.Entry) (*message.Entry, error) {
	m.ApplyCount++
	log.With("apply_count", m.ApplyCount).With("entry", e.ID).Debugln("applying...")
	if m.FilterIDs[e.ID] {
		return Filter(e), nil
	}
	if m.FailIDs[e.ID] {
		return nil, m.Err
	}
	return e, nil
}
