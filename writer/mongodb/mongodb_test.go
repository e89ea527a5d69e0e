package mongodb

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/client"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/message/data"
	"github.com/vocabstream/vocabstream/stage"
	"github.com/vocabstream/vocabstream/writer"
)

func TestInit(t *testing.T) {
	w, err := writer.Default.Get("mongodb", adaptor.Config{"namespace": "vocabularies.affiliations", "timeout": "30s", "wc": 2})
	if err != nil {
		t.Fatalf("unexpected Get() error, %s", err)
	}
	m := w.(*MongoDB)
	if m.db != "vocabularies" || m.collection != "affiliations" {
		t.Errorf("wrong namespace, got %s.%s", m.db, m.collection)
	}
	expected := &Client{uri: DefaultURI, sessionTimeout: 30 * time.Second, safety: mgo.Safe{W: 2}}
	if !reflect.DeepEqual(m.client, expected) {
		t.Errorf("misconfigured client, expected %+v, got %+v", expected, m.client)
	}
}

var invalidTests = []struct {
	name string
	conf adaptor.Config
	err  error
}{
	{"bad namespace", adaptor.Config{"namespace": "affiliations"}, adaptor.ErrNamespaceMalformed},
	{"bad timeout", adaptor.Config{"namespace": "a.b", "timeout": "soon"}, client.InvalidTimeoutError{Timeout: "soon"}},
	{"missing cert", adaptor.Config{"namespace": "a.b", "cacerts": []string{"testdata/missing.pem"}}, nil},
}

func TestInvalidConfig(t *testing.T) {
	for _, it := range invalidTests {
		_, err := writer.Default.Get("mongodb", it.conf)
		if err == nil {
			t.Errorf("[%s] expected error", it.name)
			continue
		}
		if it.err != nil && !errors.Is(err, it.err) {
			t.Errorf("[%s] wrong error, expected %v, got %v", it.name, it.err, err)
		}
	}
}

func TestDocument(t *testing.T) {
	m := &MongoDB{Key: "id"}
	doc, id, err := m.document(message.New("e1", data.Data{"id": "01ggx4157", "name": "CERN"}))
	if err != nil {
		t.Fatalf("unexpected document() error, %s", err)
	}
	expected := bson.M{"_id": "01ggx4157", "id": "01ggx4157", "name": "CERN"}
	if id != "01ggx4157" || !reflect.DeepEqual(doc, expected) {
		t.Errorf("wrong document, expected %v, got %v (%v)", expected, doc, id)
	}

	m.Key = ""
	if _, id, _ := m.document(message.New("e1", data.Data{"name": "CERN"})); id != "e1" {
		t.Errorf("expected the entry id as _id, got %v", id)
	}
	m.Key = "id"
	if _, _, err := m.document(message.New("e1", data.Data{"name": "CERN"})); err == nil {
		t.Error("expected missing key error")
	}
}

func TestBulkErrors(t *testing.T) {
	entries := []*message.Entry{message.New("a", nil), message.New("b", nil)}
	if be := bulkErrors(nil, entries); be != nil {
		t.Errorf("expected no errors, got %v", be)
	}
	be := bulkErrors(errors.New("no reachable servers"), entries)
	if len(be) != 2 {
		t.Fatalf("expected an error per entry, got %v", be)
	}
	var se *stage.Error
	if !errors.As(be[1], &se) || se.EntryID != "b" {
		t.Errorf("expected entry context, got %v", be[1])
	}
}

func TestWriteNotOpened(t *testing.T) {
	m := &MongoDB{Key: "id"}
	var ce client.ConnectError
	if err := m.Write(context.Background(), message.New("e1", data.Data{"id": "1"})); !errors.As(err, &ce) {
		t.Errorf("expected ConnectError, got %v", err)
	}
}
