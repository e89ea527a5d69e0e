package writer

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/stage"
)

// single only implements Writer.
type single struct {
	m *Mock
}

func (s single) Write(ctx context.Context, e *message.Entry) error {
	return s.m.Write(ctx, e)
}

func entries(ids ...string) []*message.Entry {
	out := make([]*message.Entry, len(ids))
	for i, id := range ids {
		out[i] = message.New(id, map[string]interface{}{"id": id})
	}
	return out
}

func ids(es []*message.Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

var writeAllTests = []struct {
	name    string
	batch   bool
	fail    map[string]bool
	written []string
	errIDs  []string
}{
	{"batch all written", true, nil, []string{"a", "b", "c"}, nil},
	{"batch partial failure", true, map[string]bool{"b": true}, []string{"a", "c"}, []string{"b"}},
	{"single all written", false, nil, []string{"a", "b", "c"}, nil},
	{"single partial failure", false, map[string]bool{"a": true, "c": true}, []string{"b"}, []string{"a", "c"}},
}

func TestWriteAll(t *testing.T) {
	for _, wt := range writeAllTests {
		m := &Mock{FailIDs: wt.fail}
		var w Writer = m
		if !wt.batch {
			w = single{m}
		}
		out := WriteAll(context.Background(), w, entries("a", "b", "c"))
		if out.Written != len(wt.written) {
			t.Errorf("[%s] wrong Written, expected %d, got %d", wt.name, len(wt.written), out.Written)
		}
		if !reflect.DeepEqual(ids(m.Entries()), wt.written) {
			t.Errorf("[%s] wrong entries written, expected %v, got %v", wt.name, wt.written, ids(m.Entries()))
		}
		var errIDs []string
		for _, err := range out.Errors {
			var se *stage.Error
			if !errors.As(err, &se) {
				t.Errorf("[%s] error without entry context, %s", wt.name, err)
				continue
			}
			errIDs = append(errIDs, se.EntryID)
		}
		if !reflect.DeepEqual(errIDs, wt.errIDs) {
			t.Errorf("[%s] wrong failed entries, expected %v, got %v", wt.name, wt.errIDs, errIDs)
		}
		if wt.batch && m.Batches() != 1 {
			t.Errorf("[%s] expected a single batch, got %d", wt.name, m.Batches())
		}
	}
}

func TestWriteAllWholeBatchFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &Mock{Block: make(chan struct{})}
	out := WriteAll(ctx, m, entries("a", "b"))
	if out.Written != 0 || len(out.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %+v", out)
	}
	for _, err := range out.Errors {
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %s", err)
		}
	}
}

func TestWriteAllEmpty(t *testing.T) {
	m := &Mock{}
	out := WriteAll(context.Background(), m, nil)
	if out.Written != 0 || out.Errors != nil || m.Batches() != 0 {
		t.Errorf("expected nothing written, got %+v", out)
	}
}

func TestKey(t *testing.T) {
	e := message.New("e1", map[string]interface{}{"id": "x"})
	d, _ := DataOf(e)
	if k, err := Key(e, d, ""); err != nil || k != "e1" {
		t.Errorf("expected the entry id, got %v %v", k, err)
	}
	if k, err := Key(e, d, "id"); err != nil || k != "x" {
		t.Errorf("expected the field value, got %v %v", k, err)
	}
	if _, err := Key(e, d, "missing"); !reflect.DeepEqual(err, KeyError{ID: "e1", Field: "missing"}) {
		t.Errorf("expected KeyError, got %v", err)
	}
	if _, err := DataOf(message.New("raw", []byte("x"))); err == nil {
		t.Error("expected NotAMappingError")
	}
}
