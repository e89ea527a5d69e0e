package zip

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/reader"
	"github.com/vocabstream/vocabstream/stage"
)

func archive(t *testing.T, members map[string]string, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range order {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		f.Write([]byte(members[name]))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

var members = map[string]string{
	"v1.45-ror-data.json":           `[1]`,
	"v1.45-ror-data_schema_v2.json": `[2]`,
	"README.md":                     `read me`,
}

var memberOrder = []string{"v1.45-ror-data.json", "v1.45-ror-data_schema_v2.json", "README.md"}

func build(t *testing.T, args adaptor.Config) reader.Reader {
	t.Helper()
	r, err := reader.Default.Get("zip", args)
	if err != nil {
		t.Fatalf("unexpected Get() error, %s", err)
	}
	return r
}

func TestReadUpstream(t *testing.T) {
	z := build(t, adaptor.Config{"regex": `_schema_v2\.json$`})
	up := reader.Slice(message.New("ror.zip", archive(t, members, memberOrder)))
	it, err := z.Read(context.Background(), up)
	if err != nil {
		t.Fatalf("unexpected Read() error, %s", err)
	}
	entries, errs, err := reader.Collect(context.Background(), it)
	if err != nil || len(errs) > 0 {
		t.Fatalf("unexpected errors, %v %v", err, errs)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	expected := message.New("v1.45-ror-data_schema_v2.json", []byte(`[2]`))
	if !reflect.DeepEqual(entries[0], expected) {
		t.Errorf("wrong entry, expected %+v, got %+v", expected, entries[0])
	}
}

func TestReadOrigin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ror.zip")
	if err := os.WriteFile(path, archive(t, members, memberOrder), 0644); err != nil {
		t.Fatal(err)
	}
	it, err := build(t, adaptor.Config{"origin": path}).Read(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected Read() error, %s", err)
	}
	entries, _, err := reader.Collect(context.Background(), it)
	if err != nil {
		t.Fatalf("unexpected fatal error, %s", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.ID)
	}
	if !reflect.DeepEqual(names, memberOrder) {
		t.Errorf("wrong members, expected %v, got %v", memberOrder, names)
	}
}

func TestInvalidArchiveIsFatal(t *testing.T) {
	it, err := build(t, adaptor.Config{}).Read(context.Background(), reader.Slice(message.New("bad.zip", []byte("not a zip"))))
	if err != nil {
		t.Fatalf("unexpected Read() error, %s", err)
	}
	_, _, err = reader.Collect(context.Background(), it)
	if !stage.IsFatal(err) {
		t.Errorf("expected fatal error, got %v", err)
	}
}

func TestInvalidRegex(t *testing.T) {
	if _, err := reader.Default.Get("zip", adaptor.Config{"regex": "("}); err == nil {
		t.Error("expected error for invalid regex")
	}
}
