// Package all registers every bundled reader.
package all

import (
	// Initialize all readers
	_ "github.com/vocabstream/vocabstream/reader/csv"
	_ "github.com/vocabstream/vocabstream/reader/file"
	_ "github.com/vocabstream/vocabstream/reader/gzip"
	_ "github.com/vocabstream/vocabstream/reader/http"
	_ "github.com/vocabstream/vocabstream/reader/json"
	_ "github.com/vocabstream/vocabstream/reader/jsonl"
	_ "github.com/vocabstream/vocabstream/reader/tar"
	_ "github.com/vocabstream/vocabstream/reader/xml"
	_ "github.com/vocabstream/vocabstream/reader/yaml"
	_ "github.com/vocabstream/vocabstream/reader/zip"
)
