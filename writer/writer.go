// Package writer defines where transformed entries go. A Writer persists one
// entry at a time; writers that can do better with several entries at once
// also implement BatchWriter. Writers that defer their work, like the async
// writer, implement Drainer so the pipeline can wait for them and fold their
// outcome into its own.
package writer

import (
	"context"
	"errors"
	"fmt"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/stage"
)

// ErrWriterClosed is returned when writing to a writer that has been drained or closed.
var ErrWriterClosed = errors.New("writer closed")

// Writer persists entries. A returned error fails the entry; the run goes on
// unless the error is fatal (see stage.Fatal).
type Writer interface {
	Write(ctx context.Context, e *message.Entry) error
}

// BatchWriter is implemented by writers that can write several entries in
// one call. A BatchError reports which entries failed; any other error fails
// the whole batch.
type BatchWriter interface {
	Writer
	WriteBatch(ctx context.Context, entries []*message.Entry) error
}

// Opener is implemented by writers that need to connect before the first
// write. A failure to open is fatal to the run.
type Opener interface {
	Open(ctx context.Context) error
}

// Closer is implemented by writers holding resources.
type Closer interface {
	Close() error
}

// Outcome is what a deferred writer reports once drained.
type Outcome struct {
	Written int
	Errors  []error
}

// Drainer is implemented by writers that accept entries before they are
// written. Drain stops accepting entries, waits for the pending ones until
// ctx is done and reports what became of every accepted entry.
type Drainer interface {
	Drain(ctx context.Context) Outcome
}

// BatchError lists the per-entry failures of a batch.
type BatchError []error

func (e BatchError) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%d entries failed, first: %s", len(e), e[0])
}

// WriteAll writes entries through w, as one batch when w supports it, and
// reports how many were written. Errors carry the entry id.
func WriteAll(ctx context.Context, w Writer, entries []*message.Entry) Outcome {
	var out Outcome
	if len(entries) == 0 {
		return out
	}
	if bw, ok := w.(BatchWriter); ok {
		err := bw.WriteBatch(ctx, entries)
		var be BatchError
		switch {
		case err == nil:
			out.Written = len(entries)
		case errors.As(err, &be):
			out.Written = len(entries) - len(be)
			out.Errors = append(out.Errors, be...)
		default:
			for _, e := range entries {
				out.Errors = append(out.Errors, stage.Wrap("", e.ID, err))
			}
		}
		return out
	}
	for _, e := range entries {
		if err := w.Write(ctx, e); err != nil {
			out.Errors = append(out.Errors, stage.Wrap("", e.ID, err))
			continue
		}
		out.Written++
	}
	return out
}

// Registry maps writer type identifiers to constructors.
type Registry = adaptor.Registry[Writer]

// NewRegistry returns an empty writer Registry.
func NewRegistry() *Registry {
	return adaptor.NewRegistry[Writer]("writer")
}

// Default is the registry the bundled writers add themselves to.
var Default = NewRegistry()

// Add should be called in init func of a Writer.
func Add(name string, creator adaptor.Creator[Writer]) {
	Default.Add(name, creator)
}

// Spec names a writer type and its args, the way it appears in a pipeline
// configuration.
type Spec struct {
	Type string                 `json:"type" yaml:"type" validate:"required"`
	Args map[string]interface{} `json:"args,omitempty" yaml:"args,omitempty"`
}

// Base holds the args every writer accepts. With Update false existing
// records are left untouched, with Update true they are replaced.
type Base struct {
	Update bool `json:"update"`
}

// DataOf returns the mapping of e or a NotAMappingError.
func DataOf(e *message.Entry) (map[string]interface{}, error) {
	d, ok := e.Map()
	if !ok {
		return nil, NotAMappingError{ID: e.ID, Data: e.Data}
	}
	return d.AsMap(), nil
}

// NotAMappingError is returned by writers that can only store mappings.
type NotAMappingError struct {
	ID   string
	Data interface{}
}

func (e NotAMappingError) Error() string {
	return fmt.Sprintf("entry %s holds %T, expected a mapping", e.ID, e.Data)
}

// KeyError is returned when the key field of an entry is missing.
type KeyError struct {
	ID    string
	Field string
}

func (e KeyError) Error() string {
	return fmt.Sprintf("entry %s has no %s", e.ID, e.Field)
}

// Key returns the value under field, or the entry id when field is empty.
func Key(e *message.Entry, d map[string]interface{}, field string) (interface{}, error) {
	if field == "" {
		return e.ID, nil
	}
	v, ok := d[field]
	if !ok || v == nil {
		return nil, KeyError{ID: e.ID, Field: field}
	}
	return v, nil
}
