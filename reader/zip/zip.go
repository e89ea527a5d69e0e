// Package zip yields the members of zip archives. The archive must be fully
// addressable, so entries that are not already open files are read into
// memory first.
package zip

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"regexp"

	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/reader"
	"github.com/vocabstream/vocabstream/stage"
)

const (
	sampleConfig = `origin: /data/ror-data.zip
regex: _schema_v2\.json$
`

	description = "yields the members of a zip archive whose name matches regex"
)

var _ reader.Reader = &Zip{}

// Zip implements the reader.Reader interface for zip archives.
type Zip struct {
	Origin string `json:"origin"`
	Regex  string `json:"regex"`

	re *regexp.Regexp
}

func init() {
	reader.Add("zip", func() reader.Reader {
		return &Zip{}
	})
}

// Description for zip reader
func (z *Zip) Description() string {
	return description
}

// SampleConfig for zip reader
func (z *Zip) SampleConfig() string {
	return sampleConfig
}

// Validate compiles the member filter.
func (z *Zip) Validate() error {
	if z.Regex == "" {
		return nil
	}
	re, err := regexp.Compile(z.Regex)
	if err != nil {
		return err
	}
	z.re = re
	return nil
}

// Read satisfies the reader.Reader interface.
func (z *Zip) Read(ctx context.Context, upstream reader.Iterator) (reader.Iterator, error) {
	src, err := reader.Source(ctx, upstream, z.Origin)
	if err != nil {
		return nil, err
	}
	return reader.Expand("zip", src, z.members), nil
}

func (z *Zip) members(_ context.Context, e *message.Entry) (reader.Iterator, error) {
	ra, size, closer, err := addressable(e)
	if err != nil {
		return nil, err
	}
	archive, err := zip.NewReader(ra, size)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		// a broken archive means there is nothing left to read
		return nil, stage.Fatal(err)
	}
	var files []*zip.File
	for _, f := range archive.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if z.re != nil && !z.re.MatchString(f.Name) {
			continue
		}
		files = append(files, f)
	}
	log.With("reader", "zip").With("archive", e.ID).Infof("%d of %d members selected", len(files), len(archive.File))

	i := 0
	return reader.FuncIter(func(context.Context) (*message.Entry, bool, error) {
		if i >= len(files) {
			return nil, false, nil
		}
		f := files[i]
		i++
		b, err := readMember(f)
		if err != nil {
			return nil, true, stage.EntryError(f.Name, err)
		}
		return message.New(f.Name, b), true, nil
	}, func() error {
		if closer != nil {
			return closer.Close()
		}
		return nil
	}), nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func addressable(e *message.Entry) (io.ReaderAt, int64, io.Closer, error) {
	if f, ok := e.Data.(*os.File); ok {
		info, err := f.Stat()
		if err != nil {
			return nil, 0, nil, err
		}
		return f, info.Size(), f, nil
	}
	b, err := reader.ReadAll(e)
	if err != nil {
		return nil, 0, nil, err
	}
	return bytes.NewReader(b), int64(len(b)), nil, nil
}
