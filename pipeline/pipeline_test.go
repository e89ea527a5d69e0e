package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/reader"
	"github.com/vocabstream/vocabstream/stage"
	"github.com/vocabstream/vocabstream/transformer"
	"github.com/vocabstream/vocabstream/writer"
	"github.com/vocabstream/vocabstream/writer/async"
)

var errBad = errors.New("bad entry")

// fixture holds the plugin instances handed out by its registry, so that the
// tests can look at them once the run is over.
type fixture struct {
	src *reader.Mock
	fn  *transformer.Mock
	out *writer.Mock
	reg Registry
}

func newFixture(count int) *fixture {
	f := &fixture{
		src: &reader.Mock{Prefix: "e", Count: count},
		fn:  &transformer.Mock{Err: errBad},
		out: &writer.Mock{},
		reg: Registry{
			Readers:      reader.NewRegistry(),
			Transformers: transformer.NewRegistry(),
			Writers:      writer.NewRegistry(),
		},
	}
	f.reg.Readers.Add("mock", func() reader.Reader { return f.src })
	f.reg.Transformers.Add("mock", func() transformer.Transformer { return f.fn })
	f.reg.Writers.Add("mock", func() writer.Writer { return f.out })
	async.Register(f.reg.Writers)
	return f
}

func (f *fixture) config() Config {
	return Config{
		Readers:      []Spec{{Type: "mock"}},
		Transformers: []Spec{{Type: "mock"}},
		Writers:      []Spec{{Type: "mock"}},
	}
}

func (f *fixture) run(t *testing.T, cfg Config) (*Result, error) {
	t.Helper()
	p, err := New(cfg, WithRegistry(f.reg), WithID("test-run"))
	if err != nil {
		t.Fatalf("unexpected New() error, %s", err)
	}
	return p.Run(context.Background())
}

func ids(entries []*message.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestRunIsolatesFailures(t *testing.T) {
	f := newFixture(6)
	f.src.Fail = map[int]bool{2: true}
	f.fn.FilterIDs = map[string]bool{"e1": true}
	f.fn.FailIDs = map[string]bool{"e3": true}
	f.out.FailIDs = map[string]bool{"e4": true}

	res, err := f.run(t, f.config())
	if err != nil {
		t.Fatalf("unexpected Run() error, %s", err)
	}
	counts := []int{res.Read, res.Transformed, res.Filtered, res.Written, res.Errored}
	if expected := []int{5, 3, 1, 2, 3}; !reflect.DeepEqual(counts, expected) {
		t.Errorf("wrong counts (read, transformed, filtered, written, errored), expected %v, got %v", expected, counts)
	}
	if res.State != Completed || res.RunID != "test-run" {
		t.Errorf("wrong result, %+v", res)
	}
	if got := ids(f.out.Entries()); !reflect.DeepEqual(got, []string{"e0", "e5"}) {
		t.Errorf("wrong entries written, got %v", got)
	}
	if !f.out.Opened() || !f.out.Closed() {
		t.Error("writer should have been opened and closed")
	}
	if !f.src.Closed {
		t.Error("reader should have been closed")
	}

	var se *stage.Error
	if len(res.Errors) != 3 || !errors.As(res.Errors[1], &se) || se.Stage != "transformer:mock" || se.EntryID != "e3" {
		t.Fatalf("wrong errors, got %v", res.Errors)
	}
	if !errors.As(res.Errors[2], &se) || se.Stage != "writer:mock" || se.EntryID != "e4" || !errors.Is(se, writer.ErrMockWrite) {
		t.Errorf("wrong writer error, got %v", res.Errors[2])
	}
}

func TestErrorCap(t *testing.T) {
	var capTests = []struct {
		max     int
		kept    int
		dropped int
	}{
		{1, 1, 3},
		{-1, 4, 0},
		{0, 4, 0},
	}
	for _, ct := range capTests {
		f := newFixture(4)
		f.fn.FailIDs = map[string]bool{"e0": true, "e1": true, "e2": true, "e3": true}
		cfg := f.config()
		cfg.MaxErrors = ct.max
		res, err := f.run(t, cfg)
		if err != nil {
			t.Fatalf("[%d] unexpected Run() error, %s", ct.max, err)
		}
		if res.Errored != 4 || len(res.Errors) != ct.kept || res.Dropped != ct.dropped {
			t.Errorf("[%d] wrong errors, errored %d kept %d dropped %d", ct.max, res.Errored, len(res.Errors), res.Dropped)
		}
	}
}

func TestFailFast(t *testing.T) {
	f := newFixture(5)
	f.out.FailIDs = map[string]bool{"e1": true}
	cfg := f.config()
	cfg.FailFast = true

	res, err := f.run(t, cfg)
	if err == nil || !stage.IsFatal(err) {
		t.Fatalf("expected a fatal error, got %v", err)
	}
	if res.State != Aborted || res.Err != err {
		t.Errorf("wrong result state, %+v", res)
	}
	if res.Read != 2 || res.Written != 1 {
		t.Errorf("run should stop at the first failure, read %d written %d", res.Read, res.Written)
	}
	if !f.out.Closed() {
		t.Error("writer should be closed after an abort")
	}
}

func TestFatalTransformerAborts(t *testing.T) {
	f := newFixture(5)
	f.fn.FailIDs = map[string]bool{"e2": true}
	f.fn.Err = stage.Fatal(errBad)

	res, err := f.run(t, f.config())
	if !stage.IsFatal(err) || !errors.Is(err, errBad) {
		t.Fatalf("expected the fatal transformer error, got %v", err)
	}
	if res.State != Aborted || res.Read != 3 || res.Written != 2 {
		t.Errorf("wrong result, %+v", res)
	}
}

func TestReaderInitFailure(t *testing.T) {
	f := newFixture(5)
	f.src.InitErr = errBad

	res, err := f.run(t, f.config())
	if !stage.IsFatal(err) || !errors.Is(err, errBad) {
		t.Fatalf("expected a fatal reader error, got %v", err)
	}
	if res.State != Aborted || res.Read != 0 {
		t.Errorf("wrong result, %+v", res)
	}
	if !f.out.Closed() {
		t.Error("writer should be closed after an abort")
	}
}

func TestWriterOpenFailure(t *testing.T) {
	f := newFixture(5)
	f.out.OpenErr = errBad

	res, err := f.run(t, f.config())
	var se *stage.Error
	if !errors.As(err, &se) || se.Stage != "writer:mock" || !stage.IsFatal(err) {
		t.Fatalf("expected a fatal writer error, got %v", err)
	}
	if res.State != Aborted || res.Read != 0 {
		t.Errorf("nothing should be read, %+v", res)
	}
	if f.out.Closed() {
		t.Error("a writer that failed to open should not be closed")
	}
}

func TestAsyncWritesAreFolded(t *testing.T) {
	f := newFixture(7)
	f.out.FailIDs = map[string]bool{"e3": true}
	cfg := f.config()
	cfg.Transformers = nil
	cfg.Writers = []Spec{{
		Type: "async",
		Args: map[string]interface{}{
			"writer":     map[string]interface{}{"type": "mock"},
			"batch_size": 2,
		},
	}}

	res, err := f.run(t, cfg)
	if err != nil {
		t.Fatalf("unexpected Run() error, %s", err)
	}
	if res.Transformed != 7 || res.Written != 6 || res.Errored != 1 {
		t.Errorf("wrong counts, %+v", res)
	}
	var se *stage.Error
	if len(res.Errors) != 1 || !errors.As(res.Errors[0], &se) || se.EntryID != "e3" || se.Stage != "writer:mock" {
		t.Errorf("wrong async error, got %v", res.Errors)
	}
	if got := ids(f.out.Entries()); !reflect.DeepEqual(got, []string{"e0", "e1", "e2", "e4", "e5", "e6"}) {
		t.Errorf("wrong entries written, got %v", got)
	}
	if !f.out.Closed() {
		t.Error("inner writer should be closed once drained")
	}
}

func TestWritesToEveryWriter(t *testing.T) {
	f := newFixture(3)
	second := &writer.Mock{}
	f.reg.Writers.Add("second", func() writer.Writer { return second })
	cfg := f.config()
	cfg.Writers = append(cfg.Writers, Spec{Type: "second"})

	res, err := f.run(t, cfg)
	if err != nil {
		t.Fatalf("unexpected Run() error, %s", err)
	}
	if res.Written != 6 {
		t.Errorf("expected 6 writes, got %d", res.Written)
	}
	for _, w := range []*writer.Mock{f.out, second} {
		if got := ids(w.Entries()); !reflect.DeepEqual(got, []string{"e0", "e1", "e2"}) {
			t.Errorf("wrong entries written, got %v", got)
		}
	}
}

func TestWriterOutcomesArePerWriter(t *testing.T) {
	f := newFixture(2)
	second := &writer.Mock{FailIDs: map[string]bool{"e1": true}}
	f.reg.Writers.Add("second", func() writer.Writer { return second })
	cfg := f.config()
	cfg.Writers = append(cfg.Writers, Spec{Type: "second"})

	res, err := f.run(t, cfg)
	if err != nil {
		t.Fatalf("unexpected Run() error, %s", err)
	}
	counts := []int{res.Read, res.Transformed, res.Written, res.Errored}
	if expected := []int{2, 2, 3, 1}; !reflect.DeepEqual(counts, expected) {
		t.Errorf("wrong counts (read, transformed, written, errored), expected %v, got %v", expected, counts)
	}
	var se *stage.Error
	if len(res.Errors) != 1 || !errors.As(res.Errors[0], &se) || se.Stage != "writer:second" || se.EntryID != "e1" {
		t.Errorf("wrong errors, got %v", res.Errors)
	}
}

func TestUnknownTypes(t *testing.T) {
	var unknownTests = []struct {
		name   string
		mutate func(*Config)
		kind   string
	}{
		{"reader", func(c *Config) { c.Readers = append(c.Readers, Spec{Type: "nope"}) }, "reader"},
		{"transformer", func(c *Config) { c.Transformers[0].Type = "nope" }, "transformer"},
		{"writer", func(c *Config) { c.Writers[0].Type = "nope" }, "writer"},
		{"async inner", func(c *Config) {
			c.Writers[0] = Spec{Type: "async", Args: map[string]interface{}{"writer": map[string]interface{}{"type": "nope"}}}
		}, "writer"},
	}
	for _, ut := range unknownTests {
		f := newFixture(1)
		cfg := f.config()
		ut.mutate(&cfg)
		_, err := New(cfg, WithRegistry(f.reg))
		var nf adaptor.ErrNotFound
		if !errors.As(err, &nf) || nf.Kind != ut.kind || nf.Name != "nope" {
			t.Errorf("[%s] expected ErrNotFound, got %v", ut.name, err)
		}
		if f.out.Opened() {
			t.Errorf("[%s] New must not open writers", ut.name)
		}
	}
}

func TestRunOnce(t *testing.T) {
	f := newFixture(1)
	p, err := New(f.config(), WithRegistry(f.reg))
	if err != nil {
		t.Fatalf("unexpected New() error, %s", err)
	}
	if p.State() != Idle {
		t.Errorf("expected idle, got %s", p.State())
	}
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected Run() error, %s", err)
	}
	if p.State() != Completed {
		t.Errorf("expected completed, got %s", p.State())
	}
	if _, err := p.Run(context.Background()); err != ErrAlreadyRun {
		t.Errorf("expected ErrAlreadyRun, got %v", err)
	}
}

func TestStop(t *testing.T) {
	f := newFixture(3)
	p, err := New(f.config(), WithRegistry(f.reg))
	if err != nil {
		t.Fatalf("unexpected New() error, %s", err)
	}
	p.Stop()
	p.Stop()
	res, err := p.Run(context.Background())
	if err != ErrStopped {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if res.State != Aborted || res.Read != 0 || !f.out.Closed() {
		t.Errorf("wrong result, %+v", res)
	}
}

func TestStopCompletesEntryInFlight(t *testing.T) {
	f := newFixture(5)
	f.out.Block = make(chan struct{})
	f.out.Entered = make(chan struct{}, 1)
	p, err := New(f.config(), WithRegistry(f.reg))
	if err != nil {
		t.Fatalf("unexpected New() error, %s", err)
	}

	type runResult struct {
		res *Result
		err error
	}
	done := make(chan runResult, 1)
	go func() {
		res, err := p.Run(context.Background())
		done <- runResult{res, err}
	}()

	<-f.out.Entered
	p.Stop()
	close(f.out.Block)
	r := <-done

	if r.err != ErrStopped {
		t.Fatalf("expected ErrStopped, got %v", r.err)
	}
	if r.res.State != Aborted || r.res.Read != 1 || r.res.Written != 1 || r.res.Errored != 0 {
		t.Errorf("wrong result, %+v", r.res)
	}
	if got := ids(f.out.Entries()); !reflect.DeepEqual(got, []string{"e0"}) {
		t.Errorf("expected only the entry in flight to be written, got %v", got)
	}
}

func TestCanceledContext(t *testing.T) {
	f := newFixture(3)
	p, err := New(f.config(), WithRegistry(f.reg))
	if err != nil {
		t.Fatalf("unexpected New() error, %s", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := p.Run(ctx)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.State != Aborted {
		t.Errorf("expected aborted, got %s", res.State)
	}
}

func TestMetrics(t *testing.T) {
	f := newFixture(4)
	f.fn.FilterIDs = map[string]bool{"e0": true}
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	p, err := New(f.config(), WithRegistry(f.reg), WithMetrics(m))
	if err != nil {
		t.Fatalf("unexpected New() error, %s", err)
	}
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected Run() error, %s", err)
	}
	if v := testutil.ToFloat64(m.Entries.WithLabelValues("reader", "success")); v != 4 {
		t.Errorf("expected 4 entries read, got %v", v)
	}
	if v := testutil.ToFloat64(m.Entries.WithLabelValues("transformer", "filtered")); v != 1 {
		t.Errorf("expected 1 entry filtered, got %v", v)
	}
	if v := testutil.ToFloat64(m.Entries.WithLabelValues("writer", "success")); v != 3 {
		t.Errorf("expected 3 entries written, got %v", v)
	}
	if v := testutil.ToFloat64(m.Runs.WithLabelValues("completed")); v != 1 {
		t.Errorf("expected 1 completed run, got %v", v)
	}
}

func TestResultJSON(t *testing.T) {
	f := newFixture(2)
	f.fn.FailIDs = map[string]bool{"e1": true}
	res, err := f.run(t, f.config())
	if err != nil {
		t.Fatalf("unexpected Run() error, %s", err)
	}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("unexpected Marshal() error, %s", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unexpected Unmarshal() error, %s", err)
	}
	if out["run_id"] != "test-run" || out["state"] != "completed" || out["written"] != float64(1) || out["errored"] != float64(1) {
		t.Errorf("wrong json result, %s", b)
	}
	errs, _ := out["errors"].([]interface{})
	if len(errs) != 1 || !strings.Contains(errs[0].(string), "transformer:mock [e1]") {
		t.Errorf("wrong json errors, %v", out["errors"])
	}
}
