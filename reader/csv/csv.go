// Package csv decodes delimited text. The first record is the header and every
// following record becomes a mapping from header to value.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/message/data"
	"github.com/vocabstream/vocabstream/reader"
	"github.com/vocabstream/vocabstream/stage"
)

const (
	sampleConfig = `origin: /data/licenses.csv
delimiter: ";"
`

	description = "decodes CSV, one entry per record keyed by the header"
)

// ErrDelimiter is returned for delimiters that are not a single character.
var ErrDelimiter = errors.New("delimiter must be a single character")

var _ reader.Reader = &CSV{}

// CSV implements the reader.Reader interface for delimited text.
type CSV struct {
	Origin     string `json:"origin"`
	Delimiter  string `json:"delimiter"`
	Comment    string `json:"comment"`
	LazyQuotes bool   `json:"lazy_quotes"`
}

func init() {
	reader.Add("csv", func() reader.Reader {
		return &CSV{Delimiter: ","}
	})
}

// Description for csv reader
func (c *CSV) Description() string {
	return description
}

// SampleConfig for csv reader
func (c *CSV) SampleConfig() string {
	return sampleConfig
}

// Validate checks the delimiter and comment characters.
func (c *CSV) Validate() error {
	if utf8.RuneCountInString(c.Delimiter) != 1 {
		return ErrDelimiter
	}
	if c.Comment != "" && utf8.RuneCountInString(c.Comment) != 1 {
		return errors.New("comment must be a single character")
	}
	return nil
}

// Read satisfies the reader.Reader interface.
func (c *CSV) Read(ctx context.Context, upstream reader.Iterator) (reader.Iterator, error) {
	src, err := reader.Source(ctx, upstream, c.Origin)
	if err != nil {
		return nil, err
	}
	return reader.Expand("csv", src, c.records), nil
}

func (c *CSV) records(_ context.Context, e *message.Entry) (reader.Iterator, error) {
	rc, err := reader.Open(e)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(rc)
	r.Comma, _ = utf8.DecodeRuneInString(c.Delimiter)
	if c.Comment != "" {
		r.Comment, _ = utf8.DecodeRuneInString(c.Comment)
	}
	r.LazyQuotes = c.LazyQuotes
	r.ReuseRecord = false

	header, err := r.Read()
	if err != nil {
		rc.Close()
		if err == io.EOF {
			return reader.Slice(), nil
		}
		return nil, err
	}

	return reader.FuncIter(func(context.Context) (*message.Entry, bool, error) {
		record, err := r.Read()
		if err == io.EOF {
			return nil, false, nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, true, stage.EntryError(fmt.Sprintf("%s:%d", e.ID, perr.Line), err)
			}
			return nil, false, stage.Fatal(err)
		}
		line, _ := r.FieldPos(0)
		id := fmt.Sprintf("%s:%d", e.ID, line)
		d := make(data.Data, len(header))
		for i, h := range header {
			d[h] = record[i]
		}
		return message.New(id, d), true, nil
	}, rc.Close), nil
}
