// Package transformer defines the per-entry transformations applied between
// the readers and the writers, and the Chain that runs them in order.
package transformer

import (
	"fmt"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/message"
)

// Transformer turns one entry into another. Returning an entry marked
// Filtered, or a nil entry, drops it without error. Returning an error fails
// the entry; the run goes on unless the error is fatal (see stage.Fatal).
//
// A Transformer must not modify the entry it is given in a way that is
// visible to the caller, and must not keep state across entries.
type Transformer interface {
	Apply(*message.Entry) (*message.Entry, error)
}

// Func is an adapter to allow the use of ordinary functions as Transformers.
type Func func(*message.Entry) (*message.Entry, error)

// Apply calls f(e).
func (f Func) Apply(e *message.Entry) (*message.Entry, error) {
	return f(e)
}

// Filter marks e as filtered and returns it.
func Filter(e *message.Entry) *message.Entry {
	e.Filtered = true
	return e
}

// Registry maps transformer type identifiers to constructors.
type Registry = adaptor.Registry[Transformer]

// NewRegistry returns an empty transformer Registry.
func NewRegistry() *Registry {
	return adaptor.NewRegistry[Transformer]("transformer")
}

// Default is the registry the bundled transformers add themselves to.
var Default = NewRegistry()

// Add should be called in init func of a Transformer.
func Add(name string, creator adaptor.Creator[Transformer]) {
	Default.Add(name, creator)
}

// NotAMappingError is returned by transformers that only work on mappings.
type NotAMappingError struct {
	ID   string
	Data interface{}
}

func (e NotAMappingError) Error() string {
	return fmt.Sprintf("entry %s holds %T, expected a mapping", e.ID, e.Data)
}
