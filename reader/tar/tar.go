// Package tar streams the members of tar archives, gzip compressed or not.
package tar

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"io"
	"regexp"

	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/reader"
	"github.com/vocabstream/vocabstream/stage"
)

const (
	sampleConfig = `origin: /data/funders.tar.gz
regex: \.xml$
`

	description = "streams the members of a tar or tar.gz archive whose name matches regex"
)

var _ reader.Reader = &Tar{}

// Tar implements the reader.Reader interface for tar archives.
type Tar struct {
	Origin string `json:"origin"`
	Regex  string `json:"regex"`

	re *regexp.Regexp
}

func init() {
	reader.Add("tar", func() reader.Reader {
		return &Tar{}
	})
}

// Description for tar reader
func (t *Tar) Description() string {
	return description
}

// SampleConfig for tar reader
func (t *Tar) SampleConfig() string {
	return sampleConfig
}

// Validate compiles the member filter.
func (t *Tar) Validate() error {
	if t.Regex == "" {
		return nil
	}
	re, err := regexp.Compile(t.Regex)
	if err != nil {
		return err
	}
	t.re = re
	return nil
}

// Read satisfies the reader.Reader interface.
func (t *Tar) Read(ctx context.Context, upstream reader.Iterator) (reader.Iterator, error) {
	src, err := reader.Source(ctx, upstream, t.Origin)
	if err != nil {
		return nil, err
	}
	return reader.Expand("tar", src, t.members), nil
}

func (t *Tar) members(_ context.Context, e *message.Entry) (reader.Iterator, error) {
	rc, err := reader.Open(e)
	if err != nil {
		return nil, err
	}
	r, err := maybeGunzip(rc)
	if err != nil {
		rc.Close()
		return nil, stage.Fatal(err)
	}
	tr := tar.NewReader(r)
	return reader.FuncIter(func(context.Context) (*message.Entry, bool, error) {
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				return nil, false, nil
			}
			if err != nil {
				// the stream cannot be resynchronised after a bad header
				return nil, false, stage.Fatal(err)
			}
			if hdr.Typeflag != tar.TypeReg {
				continue
			}
			if t.re != nil && !t.re.MatchString(hdr.Name) {
				continue
			}
			b, err := io.ReadAll(tr)
			if err != nil {
				return nil, false, stage.Fatal(err)
			}
			return message.New(hdr.Name, b), true, nil
		}
	}, rc.Close), nil
}

func maybeGunzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(br)
	}
	return br, nil
}
