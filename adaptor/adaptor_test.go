package adaptor_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/vocabstream/vocabstream/adaptor"
)

type plugin interface{}

func newRegistry() *adaptor.Registry[plugin] {
	r := adaptor.NewRegistry[plugin]("writer")
	r.Add("mock", func() plugin { return &adaptor.MockPlugin{BaseConfig: adaptor.BaseConfig{Timeout: "10s"}} })
	r.Add("another", func() plugin { return &adaptor.MockPlugin{} })
	return r
}

func TestRegistryGet(t *testing.T) {
	r := newRegistry()
	p, err := r.Get("mock", adaptor.Config{"uri": "mock://localhost", "namespace": "db.coll"})
	if err != nil {
		t.Fatalf("unexpected Get() error, %s", err)
	}
	expected := &adaptor.MockPlugin{BaseConfig: adaptor.BaseConfig{URI: "mock://localhost", Namespace: "db.coll", Timeout: "10s"}}
	if !reflect.DeepEqual(p, expected) {
		t.Errorf("wrong plugin, expected %+v, got %+v", expected, p)
	}
}

func TestRegistryGetNotFound(t *testing.T) {
	_, err := newRegistry().Get("notfound", adaptor.Config{})
	aerr := adaptor.ErrNotFound{Kind: "writer", Name: "notfound"}
	if !reflect.DeepEqual(err, aerr) {
		t.Errorf("err mismatch, expected %+v, got %+v", aerr, err)
	}
	if aerr.Error() != "writer 'notfound' not found in registry" {
		t.Errorf("wrong Error(), got %s", aerr.Error())
	}
}

var invalidConfigTests = []struct {
	name string
	cfg  adaptor.Config
	err  error
}{
	{"missing required uri", adaptor.Config{}, nil},
	{"wrong type", adaptor.Config{"uri": 10}, nil},
	{"validate hook", adaptor.Config{"uri": "mock://", "invalid": true}, adaptor.ErrMockInvalid},
}

func TestRegistryGetInvalid(t *testing.T) {
	r := newRegistry()
	for _, it := range invalidConfigTests {
		_, err := r.Get("mock", it.cfg)
		var cerr adaptor.InvalidConfigError
		if !errors.As(err, &cerr) {
			t.Errorf("[%s] expected InvalidConfigError, got %v", it.name, err)
			continue
		}
		if it.err != nil && !errors.Is(err, it.err) {
			t.Errorf("[%s] expected %v to wrap %v", it.name, err, it.err)
		}
	}
}

func TestRegistered(t *testing.T) {
	r := newRegistry()
	expected := []string{"another", "mock"}
	if all := r.Registered(); !reflect.DeepEqual(all, expected) {
		t.Errorf("wrong registered plugins, expected %v, got %v", expected, all)
	}
	if !r.Has("mock") || r.Has("nope") {
		t.Error("Has() returned the wrong answer")
	}
	for name, p := range r.Plugins() {
		if _, ok := p.(adaptor.Describable); !ok {
			t.Errorf("%s should be Describable", name)
		}
	}
}

var configTests = []struct {
	cfg      adaptor.Config
	key      string
	expected string
}{
	{adaptor.Config{"hello": "world"}, "hello", "world"},
	{adaptor.Config{"hello": "world"}, "goodbye", ""},
	{adaptor.Config{"key": 1}, "key", ""},
}

func TestConfig(t *testing.T) {
	for _, ct := range configTests {
		val := ct.cfg.GetString(ct.key)
		if !reflect.DeepEqual(val, ct.expected) {
			t.Errorf("wrong string returned for %s, expected %s, got %s", ct.key, ct.expected, val)
		}
	}
}

func TestConfigMerge(t *testing.T) {
	base := adaptor.Config{"uri": "a", "update": false}
	merged := base.Merge(map[string]interface{}{"update": true})
	if !merged.GetBool("update") || merged.GetString("uri") != "a" {
		t.Errorf("wrong merge result, %v", merged)
	}
	if base.GetBool("update") {
		t.Error("Merge modified the receiver")
	}
}

var splitNamespaceTests = []struct {
	ns      string
	partOne string
	partTwo string
	err     error
}{
	{"a.b", "a", "b", nil},
	{"vocab.affiliations.v2", "vocab", "affiliations.v2", nil},
	{"nodot", "", "", adaptor.ErrNamespaceMalformed},
	{".b", "", "", adaptor.ErrNamespaceMalformed},
}

func TestSplitNamespace(t *testing.T) {
	for _, st := range splitNamespaceTests {
		one, two, err := adaptor.SplitNamespace(st.ns)
		if err != st.err {
			t.Errorf("[%s] wrong error, expected %v, got %v", st.ns, st.err, err)
		}
		if one != st.partOne || two != st.partTwo {
			t.Errorf("[%s] wrong parts, expected %s/%s, got %s/%s", st.ns, st.partOne, st.partTwo, one, two)
		}
	}
}
