// Package json decodes JSON entries. A top-level array yields one entry per
// element and is decoded element by element, any other value yields a single
// entry.
package json

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/message/data"
	"github.com/vocabstream/vocabstream/reader"
)

const (
	sampleConfig = `# usually chained after a zip or http reader
origin: /data/v1.45-2024-04-11-ror-data_schema_v2.json
`

	description = "decodes a JSON document, one entry per element of a top-level array"
)

var _ reader.Reader = &JSON{}

// JSON implements the reader.Reader interface for JSON documents.
type JSON struct {
	Origin string `json:"origin"`
}

func init() {
	reader.Add("json", func() reader.Reader {
		return &JSON{}
	})
}

// Description for json reader
func (j *JSON) Description() string {
	return description
}

// SampleConfig for json reader
func (j *JSON) SampleConfig() string {
	return sampleConfig
}

// Read satisfies the reader.Reader interface.
func (j *JSON) Read(ctx context.Context, upstream reader.Iterator) (reader.Iterator, error) {
	src, err := reader.Source(ctx, upstream, j.Origin)
	if err != nil {
		return nil, err
	}
	return reader.Expand("json", src, decode), nil
}

func decode(_ context.Context, e *message.Entry) (reader.Iterator, error) {
	rc, err := reader.Open(e)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(rc)
	first, err := firstByte(br)
	if err != nil {
		rc.Close()
		return nil, err
	}
	dec := json.NewDecoder(br)
	if first != '[' {
		defer rc.Close()
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return reader.Slice(message.New(e.ID, Value(v))), nil
	}
	if _, err := dec.Token(); err != nil {
		rc.Close()
		return nil, err
	}

	var (
		i    int
		done bool
	)
	return reader.FuncIter(func(context.Context) (*message.Entry, bool, error) {
		if done || !dec.More() {
			return nil, false, nil
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			// a broken document cannot be resumed
			done = true
			return nil, true, fmt.Errorf("element %d: %w", i, err)
		}
		id := fmt.Sprintf("%s[%d]", e.ID, i)
		i++
		return message.New(id, Value(v)), true, nil
	}, rc.Close), nil
}

// firstByte returns the first non-space byte of br without consuming it.
func firstByte(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// Value turns decoded JSON objects into data.Data.
func Value(v interface{}) interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return data.Data(m)
	}
	return v
}

