// Package yaml decodes YAML entries. Every document of a multi-document
// stream is decoded in turn; a document holding a sequence yields one entry
// per item.
package yaml

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/message/data"
	"github.com/vocabstream/vocabstream/reader"
)

const (
	sampleConfig = `origin: app_data/vocabularies/resource_types.yaml
`

	description = "decodes YAML documents, one entry per item of a top-level sequence"
)

var _ reader.Reader = &YAML{}

// YAML implements the reader.Reader interface for YAML documents.
type YAML struct {
	Origin string `json:"origin"`
}

func init() {
	reader.Add("yaml", func() reader.Reader {
		return &YAML{}
	})
}

// Description for yaml reader
func (y *YAML) Description() string {
	return description
}

// SampleConfig for yaml reader
func (y *YAML) SampleConfig() string {
	return sampleConfig
}

// Read satisfies the reader.Reader interface.
func (y *YAML) Read(ctx context.Context, upstream reader.Iterator) (reader.Iterator, error) {
	src, err := reader.Source(ctx, upstream, y.Origin)
	if err != nil {
		return nil, err
	}
	return reader.Expand("yaml", src, documents), nil
}

func documents(_ context.Context, e *message.Entry) (reader.Iterator, error) {
	rc, err := reader.Open(e)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(rc)

	var (
		doc, item int
		pending   []interface{}
		done      bool
	)
	return reader.FuncIter(func(context.Context) (*message.Entry, bool, error) {
		for {
			if len(pending) > 0 {
				v := pending[0]
				pending = pending[1:]
				id := fmt.Sprintf("%s#%d[%d]", e.ID, doc-1, item)
				item++
				return message.New(id, Value(v)), true, nil
			}
			if done {
				return nil, false, nil
			}
			var v interface{}
			err := dec.Decode(&v)
			if err == io.EOF {
				return nil, false, nil
			}
			if err != nil {
				// the decoder cannot resume after a syntax error
				done = true
				return nil, true, fmt.Errorf("document %d: %w", doc, err)
			}
			doc++
			if list, ok := v.([]interface{}); ok {
				pending, item = list, 0
				continue
			}
			if v == nil {
				continue
			}
			return message.New(fmt.Sprintf("%s#%d", e.ID, doc-1), Value(v)), true, nil
		}
	}, rc.Close), nil
}

// Value turns decoded YAML mappings into data.Data.
func Value(v interface{}) interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return data.Data(m)
	}
	return v
}
