// Package gzip decompresses gzip entries.
package gzip

import (
	"compress/gzip"
	"context"
	"io"
	"strings"

	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/reader"
)

const (
	sampleConfig = `origin: /data/orcid.xml.gz
`

	description = "decompresses each gzip entry, one entry out per entry in"
)

var _ reader.Reader = &Gzip{}

// Gzip implements the reader.Reader interface for gzip streams.
type Gzip struct {
	Origin string `json:"origin"`
}

func init() {
	reader.Add("gzip", func() reader.Reader {
		return &Gzip{}
	})
}

// Description for gzip reader
func (g *Gzip) Description() string {
	return description
}

// SampleConfig for gzip reader
func (g *Gzip) SampleConfig() string {
	return sampleConfig
}

// Read satisfies the reader.Reader interface.
func (g *Gzip) Read(ctx context.Context, upstream reader.Iterator) (reader.Iterator, error) {
	src, err := reader.Source(ctx, upstream, g.Origin)
	if err != nil {
		return nil, err
	}
	return reader.Map("gzip", src, func(_ context.Context, e *message.Entry) (*message.Entry, error) {
		rc, err := reader.Open(e)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		zr, err := gzip.NewReader(rc)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		b, err := io.ReadAll(zr)
		if err != nil {
			return nil, err
		}
		return message.New(strings.TrimSuffix(e.ID, ".gz"), b), nil
	}), nil
}
