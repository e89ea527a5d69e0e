// Package file reads local files. As the source of a chain it expands the
// glob given as origin, chained it treats every upstream string entry as a
// glob of its own.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/reader"
	"github.com/vocabstream/vocabstream/stage"
)

const (
	sampleConfig = `origin: /data/ror/*.zip
`

	description = "reads every local file matching a glob, one entry per file"
)

var _ reader.Reader = &File{}

// NoMatchError is returned when a glob matches nothing.
type NoMatchError struct {
	Pattern string
}

func (e NoMatchError) Error() string {
	return fmt.Sprintf("no file matches %s", e.Pattern)
}

// File implements the reader.Reader interface for local files.
type File struct {
	Origin string `json:"origin"`
}

func init() {
	reader.Add("file", func() reader.Reader {
		return &File{}
	})
}

// Description for file reader
func (f *File) Description() string {
	return description
}

// SampleConfig for file reader
func (f *File) SampleConfig() string {
	return sampleConfig
}

// Validate checks that origin, when set, is a valid glob.
func (f *File) Validate() error {
	if f.Origin == "" {
		return nil
	}
	_, err := filepath.Match(f.Origin, "")
	return err
}

// Read satisfies the reader.Reader interface.
func (f *File) Read(ctx context.Context, upstream reader.Iterator) (reader.Iterator, error) {
	if upstream == nil {
		if f.Origin == "" {
			return nil, stage.Fatal(reader.ErrNoSource)
		}
		files, err := glob(f.Origin)
		if err != nil {
			return nil, stage.Fatal(err)
		}
		return iterate(files), nil
	}
	return reader.Expand("file", upstream, func(_ context.Context, e *message.Entry) (reader.Iterator, error) {
		pattern, ok := e.Data.(string)
		if !ok {
			return nil, reader.UnsupportedDataError{ID: e.ID, Data: e.Data}
		}
		files, err := glob(pattern)
		if err != nil {
			return nil, err
		}
		return iterate(files), nil
	}), nil
}

func glob(pattern string) ([]string, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, NoMatchError{pattern}
	}
	sort.Strings(files)
	return files, nil
}

func iterate(files []string) reader.Iterator {
	i := 0
	return reader.FuncIter(func(context.Context) (*message.Entry, bool, error) {
		for i < len(files) {
			path := files[i]
			i++
			info, err := os.Stat(path)
			if err != nil {
				return nil, true, stage.EntryError(path, err)
			}
			if info.IsDir() {
				continue
			}
			log.With("reader", "file").With("path", path).Debugln("reading file")
			b, err := os.ReadFile(path)
			if err != nil {
				return nil, true, stage.EntryError(path, err)
			}
			return message.New(path, b), true, nil
		}
		return nil, false, nil
	}, nil)
}
