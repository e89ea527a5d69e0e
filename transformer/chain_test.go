package transformer

import (
	"errors"
	"reflect"
	"testing"

	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/message/data"
	"github.com/vocabstream/vocabstream/stage"
)

var errBad = errors.New("bad record")

func upper(field string) Transformer {
	return Func(func(e *message.Entry) (*message.Entry, error) {
		d, _ := e.Map()
		d.Set(field, d.Get(field).(string)+"!")
		return e, nil
	})
}

func TestChainSuccess(t *testing.T) {
	in := message.New("1", data.Data{"name": "cern"})
	c := Chain{{"a", upper("name")}, {"b", upper("name")}}
	r := c.Apply(in)
	if r.Status != message.Success || r.Err != nil {
		t.Fatalf("expected success, got %v %v", r.Status, r.Err)
	}
	if !reflect.DeepEqual(r.Entry, message.New("1", data.Data{"name": "cern!!"})) {
		t.Errorf("wrong entry %+v", r.Entry)
	}
	if in.Data.(data.Data)["name"] != "cern" {
		t.Error("original entry was modified")
	}
}

func TestChainShortCircuit(t *testing.T) {
	first := &Mock{Err: errBad, FailIDs: map[string]bool{"bad": true}, FilterIDs: map[string]bool{"skip": true}}
	second := &Mock{}
	c := Chain{{"first", first}, {"second", second}}

	var statuses []message.Status
	for _, id := range []string{"ok", "bad", "skip", "ok2"} {
		statuses = append(statuses, c.Apply(message.New(id, data.Data{})).Status)
	}
	expected := []message.Status{message.Success, message.Failure, message.Filtered, message.Success}
	if !reflect.DeepEqual(statuses, expected) {
		t.Errorf("wrong statuses, expected %v, got %v", expected, statuses)
	}
	if first.ApplyCount != 4 || second.ApplyCount != 2 {
		t.Errorf("wrong apply counts, first %d second %d", first.ApplyCount, second.ApplyCount)
	}
}

func TestChainFailureContext(t *testing.T) {
	c := Chain{{"xml", &Mock{Err: errBad, FailIDs: map[string]bool{"rec-7": true}}}}
	r := c.Apply(message.New("rec-7", "<a>"))
	var serr *stage.Error
	if !errors.As(r.Err, &serr) {
		t.Fatalf("expected stage.Error, got %v", r.Err)
	}
	if serr.Stage != "transformer:xml" || serr.EntryID != "rec-7" || !errors.Is(r.Err, errBad) {
		t.Errorf("wrong error context, %+v", serr)
	}
	if stage.IsFatal(r.Err) {
		t.Error("transformer errors must not be fatal by default")
	}
}

func TestChainFatal(t *testing.T) {
	c := Chain{{"js", Func(func(e *message.Entry) (*message.Entry, error) {
		return nil, stage.Fatal(errors.New("vm crashed"))
	})}}
	if r := c.Apply(message.New("1", nil)); !stage.IsFatal(r.Err) {
		t.Errorf("expected fatal error, got %v", r.Err)
	}
}

func TestChainFilterWinsOverError(t *testing.T) {
	c := Chain{{"both", Func(func(e *message.Entry) (*message.Entry, error) {
		return Filter(e), errBad
	})}}
	if r := c.Apply(message.New("1", nil)); r.Status != message.Filtered || r.Err != nil {
		t.Errorf("expected filtered without error, got %v %v", r.Status, r.Err)
	}
}

func TestChainNilIsFiltered(t *testing.T) {
	c := Chain{{"skip", Func(func(*message.Entry) (*message.Entry, error) { return nil, nil })}}
	if r := c.Apply(message.New("1", nil)); r.Status != message.Filtered {
		t.Errorf("expected filtered, got %v", r.Status)
	}
}

func TestChainKeepsID(t *testing.T) {
	c := Chain{{"new", Func(func(e *message.Entry) (*message.Entry, error) {
		return &message.Entry{Data: "replaced"}, nil
	})}}
	if r := c.Apply(message.New("abc", nil)); r.Entry.ID != "abc" {
		t.Errorf("expected id abc, got %q", r.Entry.ID)
	}
}

func TestEmptyChain(t *testing.T) {
	in := message.New("1", data.Data{"a": 1})
	r := Chain{}.Apply(in)
	if r.Status != message.Success || !reflect.DeepEqual(r.Entry, in) {
		t.Errorf("expected pass through, got %+v", r)
	}
}
