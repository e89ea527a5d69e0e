package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/stage"
)

// ErrNoSource is returned by readers that are first in their chain but were
// given no origin.
var ErrNoSource = errors.New("no upstream reader and no origin configured")

// UnsupportedDataError is returned when an entry does not hold raw content.
type UnsupportedDataError struct {
	ID   string
	Data interface{}
}

func (e UnsupportedDataError) Error() string {
	return fmt.Sprintf("entry %s holds %T, expected raw content", e.ID, e.Data)
}

// Open returns a reader over the raw content of e. Data may be a []byte, a
// string or an io.Reader; the caller closes the result.
func Open(e *message.Entry) (io.ReadCloser, error) {
	switch d := e.Data.(type) {
	case []byte:
		return io.NopCloser(bytes.NewReader(d)), nil
	case string:
		return io.NopCloser(strings.NewReader(d)), nil
	case io.ReadCloser:
		return d, nil
	case io.Reader:
		return io.NopCloser(d), nil
	}
	return nil, UnsupportedDataError{ID: e.ID, Data: e.Data}
}

// ReadAll returns the raw content of e as bytes.
func ReadAll(e *message.Entry) ([]byte, error) {
	if b, ok := e.Data.([]byte); ok {
		return b, nil
	}
	rc, err := Open(e)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Source returns upstream when set. Otherwise it opens the local file origin
// and returns a single entry holding it; a missing file is fatal.
func Source(_ context.Context, upstream Iterator, origin string) (Iterator, error) {
	if upstream != nil {
		return upstream, nil
	}
	if origin == "" {
		return nil, stage.Fatal(ErrNoSource)
	}
	f, err := os.Open(origin)
	if err != nil {
		return nil, stage.Fatal(err)
	}
	return FuncIter(func(context.Context) (*message.Entry, bool, error) {
		if f == nil {
			return nil, false, nil
		}
		e := message.New(origin, f)
		f = nil
		return e, true, nil
	}, func() error {
		if f != nil {
			return f.Close()
		}
		return nil
	}), nil
}
