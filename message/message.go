// Package message holds the unit of work that flows through a datastream,
// the Entry, and the per-entry outcome, the Result.
package message

import (
	"github.com/vocabstream/vocabstream/message/data"
)

// Entry carries one record through the readers, transformers and writers.
// ID is a stable identifier such as an archive member name or a line number.
// Data is whatever the last stage produced: raw bytes, a string, a data.Data
// map or a slice.
type Entry struct {
	ID       string
	Data     interface{}
	Filtered bool
}

// New returns an Entry for the given id and payload.
func New(id string, d interface{}) *Entry {
	return &Entry{ID: id, Data: d}
}

// Copy returns a deep copy of e.
func (e *Entry) Copy() *Entry {
	if e == nil {
		return nil
	}
	return &Entry{
		ID:       e.ID,
		Data:     data.CopyValue(e.Data),
		Filtered: e.Filtered,
	}
}

// Map returns the Data as a data.Data when it holds a mapping.
func (e *Entry) Map() (data.Data, bool) {
	switch d := e.Data.(type) {
	case data.Data:
		return d, true
	case map[string]interface{}:
		return data.Data(d), true
	}
	return nil, false
}

// Bytes returns the Data as a byte slice when it holds raw content.
func (e *Entry) Bytes() ([]byte, bool) {
	switch d := e.Data.(type) {
	case []byte:
		return d, true
	case string:
		return []byte(d), true
	}
	return nil, false
}
