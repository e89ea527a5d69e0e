package rename

import (
	"reflect"
	"testing"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/message/data"
	"github.com/vocabstream/vocabstream/transformer"
)

func TestInit(t *testing.T) {
	a, err := transformer.Default.Get("rename", adaptor.Config{"field_map": map[string]interface{}{"#text": "name"}})
	if err != nil {
		t.Fatalf("unexpected Get() error, %s", err)
	}
	expected := &Rename{SwapMap: map[string]string{"#text": "name"}}
	if !reflect.DeepEqual(a, expected) {
		t.Errorf("misconfigured Transformer, expected %+v, got %+v", expected, a)
	}
}

var renameTests = []struct {
	name    string
	swapMap map[string]string
	in      data.Data
	out     data.Data
}{
	{
		"single field",
		map[string]string{"#text": "name"},
		data.Data{"#text": "CERN", "@lang": "en"},
		data.Data{"name": "CERN", "@lang": "en"},
	},
	{
		"missing field",
		map[string]string{"other": "name"},
		data.Data{"#text": "CERN"},
		data.Data{"#text": "CERN"},
	},
}

func TestApply(t *testing.T) {
	for _, rt := range renameTests {
		e, err := (&Rename{SwapMap: rt.swapMap}).Apply(message.New("1", rt.in))
		if err != nil {
			t.Errorf("[%s] unexpected error, %s", rt.name, err)
			continue
		}
		if !reflect.DeepEqual(e.Data, rt.out) {
			t.Errorf("[%s] wrong entry, expected %+v, got %+v", rt.name, rt.out, e.Data)
		}
	}
}
