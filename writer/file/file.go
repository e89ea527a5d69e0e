// Package file writes entries as JSON lines to stdout or a local file.
package file

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"os"
	"sync"

	"github.com/vocabstream/vocabstream/client"
	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/message/data"
	"github.com/vocabstream/vocabstream/writer"
)

const (
	// DefaultURI is the default file, outputs to stdout.
	DefaultURI = "stdout://"
)

var (
	_ writer.Writer = &File{}
	_ writer.Opener = &File{}
	_ writer.Closer = &File{}
)

func init() {
	writer.Add(
		"file",
		func() writer.Writer {
			return &File{URI: DefaultURI}
		},
	)
}

// File writes one JSON document per line. With Update the target file is
// truncated when opened, otherwise lines are appended.
type File struct {
	writer.Base
	URI string `json:"uri" validate:"required"`

	mu  sync.Mutex
	out io.Writer
	f   *os.File
	enc *json.Encoder
}

func (f *File) Description() string {
	return "writes entries as JSON lines to stdout or a file"
}

func (f *File) SampleConfig() string {
	return `uri: file:///tmp/affiliations.jsonl
update: true
`
}

// Validate checks the URI without touching the file system.
func (f *File) Validate() error {
	_, err := path(f.URI)
	return err
}

func path(uri string) (string, error) {
	if uri == DefaultURI {
		return "", nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", client.InvalidURIError{URI: uri, Err: err.Error()}
	}
	if u.Scheme != "file" || u.Path == "" {
		return "", client.InvalidURIError{URI: uri, Err: "expected stdout:// or file:///path"}
	}
	return u.Path, nil
}

func (f *File) Open(ctx context.Context) error {
	p, err := path(f.URI)
	if err != nil {
		return err
	}
	if p == "" {
		f.out = os.Stdout
	} else {
		flags := os.O_RDWR | os.O_CREATE | os.O_APPEND
		if f.Update {
			flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
		}
		fh, err := os.OpenFile(p, flags, 0666)
		if err != nil {
			return client.ConnectError{Reason: err.Error()}
		}
		f.f = fh
		f.out = fh
	}
	f.enc = json.NewEncoder(f.out)
	log.With("file", f.URI).Debugln("file writer opened")
	return nil
}

func (f *File) Write(ctx context.Context, e *message.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enc == nil {
		if err := f.Open(ctx); err != nil {
			return err
		}
	}
	return dumpEntry(f.enc, e)
}

func dumpEntry(enc *json.Encoder, e *message.Entry) error {
	switch d := e.Data.(type) {
	case []byte:
		return enc.Encode(string(d))
	default:
		return enc.Encode(data.Plain(d))
	}
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enc = nil
	if f.f != nil {
		err := f.f.Close()
		f.f = nil
		return err
	}
	return nil
}
