// Package xml splits XML documents into one entry per record element. The
// raw markup of each record is passed on untouched, to be normalized by the
// xml transformer.
package xml

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/reader"
)

const (
	sampleConfig = `origin: /data/orcid_summaries.xml
root: record
`

	description = "splits an XML document into the raw markup of each root element"
)

var _ reader.Reader = &XML{}

// XML implements the reader.Reader interface for record oriented XML.
type XML struct {
	Origin string `json:"origin"`
	Root   string `json:"root" validate:"required"`
}

func init() {
	reader.Add("xml", func() reader.Reader {
		return &XML{}
	})
}

// Description for xml reader
func (x *XML) Description() string {
	return description
}

// SampleConfig for xml reader
func (x *XML) SampleConfig() string {
	return sampleConfig
}

// Read satisfies the reader.Reader interface.
func (x *XML) Read(ctx context.Context, upstream reader.Iterator) (reader.Iterator, error) {
	src, err := reader.Source(ctx, upstream, x.Origin)
	if err != nil {
		return nil, err
	}
	return reader.Expand("xml", src, x.records), nil
}

func (x *XML) records(_ context.Context, e *message.Entry) (reader.Iterator, error) {
	b, err := reader.ReadAll(e)
	if err != nil {
		return nil, err
	}
	if c, ok := e.Data.(io.Closer); ok {
		c.Close()
	}
	d := xml.NewDecoder(bytes.NewReader(b))
	d.Strict = false
	// offsets must index b, so records keep their declared encoding
	d.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }

	var (
		n    int
		done bool
	)
	return reader.FuncIter(func(context.Context) (*message.Entry, bool, error) {
		if done {
			return nil, false, nil
		}
		var (
			start int64 = -1
			depth int
		)
		for {
			offset := d.InputOffset()
			tok, err := d.RawToken()
			if err == io.EOF {
				done = true
				return nil, false, nil
			}
			if err != nil {
				done = true
				return nil, true, fmt.Errorf("record %d: %w", n, err)
			}
			switch t := tok.(type) {
			case xml.StartElement:
				if t.Name.Local != x.Root {
					continue
				}
				if depth == 0 {
					start = offset
				}
				depth++
			case xml.EndElement:
				if t.Name.Local != x.Root || depth == 0 {
					continue
				}
				depth--
				if depth > 0 {
					continue
				}
				id := fmt.Sprintf("%s#%d", e.ID, n)
				n++
				record := append([]byte(nil), b[start:d.InputOffset()]...)
				return message.New(id, record), true, nil
			}
		}
	}, nil), nil
}
