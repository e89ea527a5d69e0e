package elasticsearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/client"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/message/data"
	"github.com/vocabstream/vocabstream/stage"
	"github.com/vocabstream/vocabstream/writer"
)

const (
	awsHmacHeader = "AWS4-HMAC-SHA256 Credential=accessKeyID"
	awsAccessKey  = "accessKeyID"
	awsSecretKey  = "secretAccessKey"
)

func isAWSRequest(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), awsHmacHeader) &&
		r.Header.Get("X-Amz-Content-Sha256") != "" &&
		r.Header.Get("X-Amz-Date") != ""
}

func TestTransport(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expectAWSRequest := r.URL.Path == "/aws"
		if isAWSRequest(r) != expectAWSRequest {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "{\"ok\":1}")
	}))
	defer mockServer.Close()

	transportTests := []struct {
		path string
		c    *http.Client
	}{
		{"/aws", &http.Client{Transport: newTransport(awsAccessKey, awsSecretKey)}},
		{"/other", &http.Client{Transport: newTransport("", "")}},
	}
	for _, tt := range transportTests {
		resp, err := tt.c.Get(mockServer.URL + tt.path)
		if err != nil {
			t.Errorf("failed to send request, %s", err)
		} else if resp.StatusCode == http.StatusBadRequest {
			t.Errorf("bad request sent for %s", tt.path)
		}
	}
}

func TestInit(t *testing.T) {
	w, err := writer.Default.Get("elasticsearch", adaptor.Config{"namespace": "affiliations.affiliation"})
	if err != nil {
		t.Fatalf("unexpected Get() error, %s", err)
	}
	e := w.(*Elasticsearch)
	if e.index != "affiliations" || e.typ != "affiliation" || e.timeout != DefaultTimeout {
		t.Errorf("misconfigured writer, got %+v", e)
	}
	for _, conf := range []adaptor.Config{
		{"namespace": "affiliations"},
		{"namespace": "a.b", "uri": "localhost"},
		{"namespace": "a.b", "timeout": "soon"},
	} {
		if _, err := writer.Default.Get("elasticsearch", conf); err == nil {
			t.Errorf("expected error for %v", conf)
		}
	}
}

// cluster answers the version probe with v and every _bulk request with bulk.
func cluster(v, bulk string, got *[]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/":
			fmt.Fprintf(w, `{"name":"node","version":{"number":%q}}`, v)
		case strings.HasSuffix(r.URL.Path, "/_bulk"):
			b, _ := io.ReadAll(r.Body)
			*got = append(*got, string(b))
			fmt.Fprint(w, bulk)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func open(t *testing.T, uri string, update bool) (*Elasticsearch, error) {
	w, err := writer.Default.Get("elasticsearch", adaptor.Config{"uri": uri, "namespace": "affiliations.affiliation", "update": update})
	if err != nil {
		t.Fatalf("unexpected Get() error, %s", err)
	}
	e := w.(*Elasticsearch)
	return e, e.Open(context.Background())
}

func TestVersionCheck(t *testing.T) {
	var got []string
	for _, v := range []string{"2.4.1", "6.0.0", "not-a-version"} {
		s := cluster(v, "", &got)
		_, err := open(t, s.URL, false)
		var ve client.VersionError
		if !errors.As(err, &ve) {
			t.Errorf("[%s] expected VersionError, got %v", v, err)
		}
		s.Close()
	}
}

func TestWriteBatch(t *testing.T) {
	var got []string
	s := cluster("5.6.3", `{"took":3,"errors":true,"items":[
		{"create":{"_index":"affiliations","_type":"affiliation","_id":"1","status":201}},
		{"create":{"_index":"affiliations","_type":"affiliation","_id":"2","status":409,"error":{"type":"version_conflict_engine_exception","reason":"document already exists"}}},
		{"create":{"_index":"affiliations","_type":"affiliation","_id":"3","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse"}}}
	]}`, &got)
	defer s.Close()

	e, err := open(t, s.URL, false)
	if err != nil {
		t.Fatalf("unexpected Open() error, %s", err)
	}
	err = e.WriteBatch(context.Background(), []*message.Entry{
		message.New("e1", data.Data{"id": "1", "name": "CERN"}),
		message.New("e2", data.Data{"id": "2"}),
		message.New("e3", data.Data{"id": "3"}),
		message.New("e4", data.Data{"name": "no id"}),
	})
	var be writer.BatchError
	if !errors.As(err, &be) {
		t.Fatalf("expected BatchError, got %v", err)
	}
	var failed []string
	for _, err := range be {
		var se *stage.Error
		if errors.As(err, &se) {
			failed = append(failed, se.EntryID)
		}
	}
	if !reflect.DeepEqual(failed, []string{"e4", "e3"}) {
		t.Errorf("wrong failed entries, got %v", failed)
	}
	if len(got) != 1 || !strings.Contains(got[0], `{"create":{`) || !strings.Contains(got[0], `"_id":"1"`) {
		t.Errorf("wrong _bulk body, got %v", got)
	}
}

func TestWriteNotOpened(t *testing.T) {
	e := &Elasticsearch{}
	var ce client.ConnectError
	if err := e.Write(context.Background(), message.New("e1", data.Data{"id": "1"})); !errors.As(err, &ce) {
		t.Errorf("expected ConnectError, got %v", err)
	}
}
