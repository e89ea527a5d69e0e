package xml

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/reader"
)

func TestRead(t *testing.T) {
	r, err := reader.Default.Get("xml", adaptor.Config{"root": "record"})
	if err != nil {
		t.Fatalf("unexpected Get() error, %s", err)
	}
	in := `<?xml version="1.0"?>
<records>
  <record id="1"><name>A</name></record>
  <other/>
  <record id="2"><record>nested</record></record>
  <record/>
</records>`
	it, _ := r.Read(context.Background(), reader.Slice(message.New("dump.xml", in)))
	entries, errs, err := reader.Collect(context.Background(), it)
	if err != nil || len(errs) > 0 {
		t.Fatalf("unexpected errors, %v %v", err, errs)
	}
	expected := []*message.Entry{
		message.New("dump.xml#0", []byte(`<record id="1"><name>A</name></record>`)),
		message.New("dump.xml#1", []byte(`<record id="2"><record>nested</record></record>`)),
		message.New("dump.xml#2", []byte(`<record/>`)),
	}
	if !reflect.DeepEqual(entries, expected) {
		t.Errorf("wrong entries, expected %v, got %v", dump(expected), dump(entries))
	}
}

func dump(entries []*message.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = fmt.Sprintf("%s %s", e.ID, e.Data)
	}
	return out
}

func TestRootRequired(t *testing.T) {
	if _, err := reader.Default.Get("xml", adaptor.Config{}); err == nil {
		t.Error("expected error without root")
	}
}
