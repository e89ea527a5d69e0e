// Package xml normalizes raw markup entries into nested mappings.
package xml

import (
	"fmt"

	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/message/data"
	"github.com/vocabstream/vocabstream/normalize"
	"github.com/vocabstream/vocabstream/reader"
	"github.com/vocabstream/vocabstream/transformer"
)

const (
	sampleConfig = `parser: xml
# keep only the mapping under this element
root: record
`

	description = "normalizes XML or HTML markup into a nested mapping"
)

var _ transformer.Transformer = &XML{}

// RootNotFoundError is returned when the configured root element is absent.
type RootNotFoundError struct {
	Root string
}

func (e RootNotFoundError) Error() string {
	return fmt.Sprintf("%s not found in entry", e.Root)
}

// XML implements the transformer.Transformer interface with normalize.
type XML struct {
	Parser string `json:"parser" validate:"oneof=xml html"`
	Root   string `json:"root"`
}

func init() {
	transformer.Add("xml", func() transformer.Transformer {
		return &XML{Parser: string(normalize.XML)}
	})
}

// Description for xml transformer
func (x *XML) Description() string {
	return description
}

// SampleConfig for xml transformer
func (x *XML) SampleConfig() string {
	return sampleConfig
}

// Apply parses the raw content of e leniently and replaces it with its
// normalized form.
func (x *XML) Apply(e *message.Entry) (*message.Entry, error) {
	b, err := reader.ReadAll(e)
	if err != nil {
		return nil, err
	}
	d, err := normalize.Document(b, normalize.Mode(x.Parser))
	if err != nil {
		return nil, err
	}
	if x.Root == "" {
		return message.New(e.ID, d), nil
	}
	v, ok := d[x.Root]
	if !ok || v == nil {
		return nil, RootNotFoundError{x.Root}
	}
	if m, ok := v.(data.Data); ok {
		return message.New(e.ID, m), nil
	}
	return message.New(e.ID, v), nil
}
