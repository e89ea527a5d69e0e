package message

import (
	"reflect"
	"testing"

	"github.com/vocabstream/vocabstream/message/data"
)

func TestEntryCopy(t *testing.T) {
	e := New("ror.json", data.Data{"id": "https://ror.org/01ggx4157", "types": []interface{}{"facility"}})
	e.Filtered = true
	cp := e.Copy()
	if !reflect.DeepEqual(e, cp) {
		t.Fatalf("expected %+v, got %+v", e, cp)
	}
	cp.Data.(data.Data)["types"].([]interface{})[0] = "education"
	if e.Data.(data.Data)["types"].([]interface{})[0] != "facility" {
		t.Error("copy shares nested data with original")
	}
}

func TestEntryAccessors(t *testing.T) {
	entryTests := []struct {
		in        interface{}
		wantMap   bool
		wantBytes bool
	}{
		{data.Data{"a": 1}, true, false},
		{map[string]interface{}{"a": 1}, true, false},
		{[]byte("<a/>"), false, true},
		{"<a/>", false, true},
		{[]interface{}{1}, false, false},
	}
	for _, d := range entryTests {
		e := New("x", d.in)
		if _, ok := e.Map(); ok != d.wantMap {
			t.Errorf("Map() on %T, expected %v, got %v", d.in, d.wantMap, ok)
		}
		if _, ok := e.Bytes(); ok != d.wantBytes {
			t.Errorf("Bytes() on %T, expected %v, got %v", d.in, d.wantBytes, ok)
		}
	}
}

func TestStatusString(t *testing.T) {
	for s, want := range map[Status]string{Success: "success", Filtered: "filtered", Failure: "failure", Status(9): "unknown"} {
		if s.String() != want {
			t.Errorf("expected %s, got %s", want, s.String())
		}
	}
}
