package pipeline

import (
	"github.com/vocabstream/vocabstream/reader"
	"github.com/vocabstream/vocabstream/transformer"
	"github.com/vocabstream/vocabstream/writer"
)

// Registry bundles the registries a pipeline resolves its type identifiers
// from.
type Registry struct {
	Readers      *reader.Registry
	Transformers *transformer.Registry
	Writers      *writer.Registry
}

// DefaultRegistry returns the registries the bundled plugins add themselves
// to. Import reader/all, transformer/all and writer/all to fill them.
func DefaultRegistry() Registry {
	return Registry{
		Readers:      reader.Default,
		Transformers: transformer.Default,
		Writers:      writer.Default,
	}
}
