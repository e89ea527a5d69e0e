// Package all registers every bundled transformer.
package all

import (
	// Initialize all transformers
	_ "github.com/vocabstream/vocabstream/transformer/geopoint"
	_ "github.com/vocabstream/vocabstream/transformer/gojajs"
	_ "github.com/vocabstream/vocabstream/transformer/omit"
	_ "github.com/vocabstream/vocabstream/transformer/ottojs"
	_ "github.com/vocabstream/vocabstream/transformer/pick"
	_ "github.com/vocabstream/vocabstream/transformer/rename"
	_ "github.com/vocabstream/vocabstream/transformer/skip"
	_ "github.com/vocabstream/vocabstream/transformer/xml"
)
