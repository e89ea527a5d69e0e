// Package jsonl decodes JSON lines entries, one entry per non-empty line.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/reader"
	jsonreader "github.com/vocabstream/vocabstream/reader/json"
	"github.com/vocabstream/vocabstream/stage"
)

const (
	// DefaultMaxLineSize bounds the length of a single line.
	DefaultMaxLineSize = 16 * 1024 * 1024

	sampleConfig = `origin: /data/funders.jsonl
`

	description = "decodes JSON lines, one entry per line; a bad line only fails that line"
)

var _ reader.Reader = &JSONL{}

// JSONL implements the reader.Reader interface for JSON lines documents.
type JSONL struct {
	Origin      string `json:"origin"`
	MaxLineSize int    `json:"max_line_size" validate:"gte=0"`
}

func init() {
	reader.Add("jsonl", func() reader.Reader {
		return &JSONL{MaxLineSize: DefaultMaxLineSize}
	})
}

// Description for jsonl reader
func (j *JSONL) Description() string {
	return description
}

// SampleConfig for jsonl reader
func (j *JSONL) SampleConfig() string {
	return sampleConfig
}

// Read satisfies the reader.Reader interface.
func (j *JSONL) Read(ctx context.Context, upstream reader.Iterator) (reader.Iterator, error) {
	src, err := reader.Source(ctx, upstream, j.Origin)
	if err != nil {
		return nil, err
	}
	return reader.Expand("jsonl", src, j.lines), nil
}

func (j *JSONL) lines(_ context.Context, e *message.Entry) (reader.Iterator, error) {
	rc, err := reader.Open(e)
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(rc)
	max := j.MaxLineSize
	if max == 0 {
		max = DefaultMaxLineSize
	}
	scanner.Buffer(make([]byte, 0, 64*1024), max)

	line := 0
	return reader.FuncIter(func(context.Context) (*message.Entry, bool, error) {
		for scanner.Scan() {
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			id := fmt.Sprintf("%s:%d", e.ID, line)
			var v interface{}
			if err := json.Unmarshal([]byte(text), &v); err != nil {
				return nil, true, stage.EntryError(id, err)
			}
			return message.New(id, jsonreader.Value(v)), true, nil
		}
		if err := scanner.Err(); err != nil {
			return nil, false, stage.Fatal(err)
		}
		return nil, false, nil
	}, rc.Close), nil
}
