package csv

import (
	"context"
	"reflect"
	"testing"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/message/data"
	"github.com/vocabstream/vocabstream/reader"
)

func TestRead(t *testing.T) {
	r, err := reader.Default.Get("csv", adaptor.Config{"delimiter": ";"})
	if err != nil {
		t.Fatalf("unexpected Get() error, %s", err)
	}
	in := "id;title\ncc-by-4.0;Creative Commons Attribution 4.0\nbroken\nmit;MIT License\n"
	it, _ := r.Read(context.Background(), reader.Slice(message.New("licenses.csv", in)))
	entries, errs, err := reader.Collect(context.Background(), it)
	if err != nil {
		t.Fatalf("unexpected fatal error, %s", err)
	}
	expected := []*message.Entry{
		message.New("licenses.csv:2", data.Data{"id": "cc-by-4.0", "title": "Creative Commons Attribution 4.0"}),
		message.New("licenses.csv:4", data.Data{"id": "mit", "title": "MIT License"}),
	}
	if !reflect.DeepEqual(entries, expected) {
		t.Errorf("wrong entries, expected %+v, got %+v", expected, entries)
	}
	if len(errs) != 1 {
		t.Errorf("expected 1 error, got %v", errs)
	}
}

func TestInvalidDelimiter(t *testing.T) {
	if _, err := reader.Default.Get("csv", adaptor.Config{"delimiter": ";;"}); err == nil {
		t.Error("expected error for a two character delimiter")
	}
}
