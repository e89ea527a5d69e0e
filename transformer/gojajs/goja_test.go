package gojajs

import (
	"reflect"
	"testing"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/message/data"
	"github.com/vocabstream/vocabstream/stage"
	"github.com/vocabstream/vocabstream/transformer"
)

func TestInit(t *testing.T) {
	for _, name := range []string{"goja", "js"} {
		a, err := transformer.Default.Get(name, adaptor.Config{"filename": "testdata/transformer.js"})
		if err != nil {
			t.Fatalf("unexpected Get() error, %s", err)
		}
		if !reflect.DeepEqual(a, &Goja{Filename: "testdata/transformer.js"}) {
			t.Errorf("misconfigured Transformer, got %+v", a)
		}
	}
	if _, err := transformer.Default.Get("goja", adaptor.Config{}); err == nil {
		t.Error("expected error without filename")
	}
}

var applyTests = []struct {
	name     string
	fn       string
	in       data.Data
	out      data.Data
	filtered bool
	err      bool
}{
	{
		"just pass through",
		"testdata/transformer.js",
		data.Data{"id": "id1", "name": "nick"},
		data.Data{"id": "id1", "name": "nick"},
		false,
		false,
	},
	{
		"delete the 'name' property",
		"testdata/delete_name.js",
		data.Data{"id": "id2", "name": "nick"},
		data.Data{"id": "id2"},
		false,
		false,
	},
	{
		"filter an entry",
		"testdata/skip.js",
		data.Data{"status": "withdrawn"},
		nil,
		true,
		false,
	},
	{
		"keep an entry",
		"testdata/skip.js",
		data.Data{"status": "active"},
		data.Data{"status": "active"},
		false,
		false,
	},
	{
		"data must stay a map",
		"testdata/bad_data.js",
		data.Data{"status": "active"},
		nil,
		false,
		true,
	},
	{
		"exceptions fail the entry",
		"testdata/throw.js",
		data.Data{"status": "active"},
		nil,
		false,
		true,
	},
}

func TestApply(t *testing.T) {
	for _, at := range applyTests {
		g := &Goja{Filename: at.fn}
		out, err := g.Apply(message.New("e1", at.in))
		if (err != nil) != at.err {
			t.Errorf("[%s] wrong error, expected error %v, got %v", at.name, at.err, err)
			continue
		}
		if at.err {
			if stage.IsFatal(err) {
				t.Errorf("[%s] per-entry error reported as fatal, %s", at.name, err)
			}
			continue
		}
		if out.Filtered != at.filtered {
			t.Errorf("[%s] expected filtered %v, got %v", at.name, at.filtered, out.Filtered)
		}
		if !at.filtered && !reflect.DeepEqual(out.Data, at.out) {
			t.Errorf("[%s] wrong data, expected %#v, got %#v", at.name, at.out, out.Data)
		}
		if out.ID != "e1" {
			t.Errorf("[%s] wrong id %s", at.name, out.ID)
		}
	}
}

func TestScriptErrorsAreFatal(t *testing.T) {
	for _, fn := range []string{"testdata/missing.js", "testdata/no_transform.js"} {
		_, err := (&Goja{Filename: fn}).Apply(message.New("e1", data.Data{}))
		if !stage.IsFatal(err) {
			t.Errorf("[%s] expected fatal error, got %v", fn, err)
		}
	}
}
