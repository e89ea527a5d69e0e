// Package reader defines how entries enter a datastream. A Reader either acts
// as the source of the stream or, given an upstream Iterator, turns every
// upstream entry into zero or more entries of its own, so that readers can be
// chained: fetch, then unpack, then parse.
package reader

import (
	"context"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/message"
)

// Iterator provides pull-based sequential access to a stream of entries.
//
// Next returns (nil, false, nil) once the stream is exhausted. A non-nil
// error reports either the failure of a single entry, in which case the
// iterator can still be advanced, or, when stage.IsFatal(err), the failure of
// the stream as a whole.
type Iterator interface {
	Next(ctx context.Context) (*message.Entry, bool, error)
	Close() error
}

// Reader produces an Iterator. upstream is nil when the reader is the first
// of its chain. An error returned by Read means the reader could not be
// initialized and is fatal to the run.
type Reader interface {
	Read(ctx context.Context, upstream Iterator) (Iterator, error)
}

// Func is an adapter to allow the use of ordinary functions as Readers.
type Func func(ctx context.Context, upstream Iterator) (Iterator, error)

// Read calls f(ctx, upstream).
func (f Func) Read(ctx context.Context, upstream Iterator) (Iterator, error) {
	return f(ctx, upstream)
}

// Registry maps reader type identifiers to constructors.
type Registry = adaptor.Registry[Reader]

// NewRegistry returns an empty reader Registry.
func NewRegistry() *Registry {
	return adaptor.NewRegistry[Reader]("reader")
}

// Default is the registry the bundled readers add themselves to.
var Default = NewRegistry()

// Add should be called in init func of a Reader.
func Add(name string, creator adaptor.Creator[Reader]) {
	Default.Add(name, creator)
}

// Collect drains it and returns every entry. Per-entry errors are returned
// alongside, a fatal error stops the collection.
func Collect(ctx context.Context, it Iterator) ([]*message.Entry, []error, error) {
	defer it.Close()
	var (
		entries []*message.Entry
		errs    []error
	)
	for {
		e, ok, err := it.Next(ctx)
		if err != nil {
			if isFatal(err) {
				return entries, errs, err
			}
			errs = append(errs, err)
			continue
		}
		if !ok {
			return entries, errs, nil
		}
		entries = append(entries, e)
	}
}
