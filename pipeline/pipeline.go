// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	uuid "github.com/nu7hatch/gouuid"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/reader"
	"github.com/vocabstream/vocabstream/stage"
	"github.com/vocabstream/vocabstream/transformer"
	"github.com/vocabstream/vocabstream/writer"
)

var (
	// ErrAlreadyRun is returned by Run when the Pipeline was run before.
	ErrAlreadyRun = errors.New("pipeline already run")

	// ErrStopped aborts a run when Stop was called.
	ErrStopped = errors.New("pipeline stopped")
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRegistry resolves plugin types from r instead of DefaultRegistry.
func WithRegistry(r Registry) Option {
	return func(p *Pipeline) {
		p.registry = r
	}
}

// WithMetrics records the run into m.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithID sets the run id, a random UUID is used otherwise.
func WithID(id string) Option {
	return func(p *Pipeline) {
		p.id = id
	}
}

type sink struct {
	name string
	w    writer.Writer
}

// pender is implemented by writers that queue entries.
type pender interface {
	Pending() int
}

// A Pipeline drives a single run of a datastream.
type Pipeline struct {
	id           string
	registry     Registry
	metrics      *Metrics
	readerNames  []string
	reader       reader.Reader
	chain        transformer.Chain
	sinks        []sink
	failFast     bool
	maxErrors    int
	drainTimeout time.Duration

	state    int32
	stop     chan struct{}
	stopOnce sync.Once
	log      log.Logger
}

// New validates cfg and builds every plugin it names. It does not perform
// any I/O: connections are made when the run starts.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		registry:  DefaultRegistry(),
		failFast:  cfg.FailFast,
		maxErrors: cfg.maxErrors(),
		stop:      make(chan struct{}),
	}
	p.drainTimeout, _ = cfg.drainTimeout()
	for _, opt := range opts {
		opt(p)
	}
	if p.id == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return nil, err
		}
		p.id = id.String()
	}
	p.log = log.With("run", p.id)

	readers := make([]reader.Reader, len(cfg.Readers))
	for i, s := range cfg.Readers {
		r, err := p.registry.Readers.Get(s.Type, adaptor.Config(s.Args))
		if err != nil {
			return nil, fmt.Errorf("readers[%d]: %w", i, err)
		}
		readers[i] = r
		p.readerNames = append(p.readerNames, s.Type)
	}
	p.reader = reader.Chain(readers...)

	for i, s := range cfg.Transformers {
		t, err := p.registry.Transformers.Get(s.Type, adaptor.Config(s.Args))
		if err != nil {
			return nil, fmt.Errorf("transformers[%d]: %w", i, err)
		}
		p.chain = append(p.chain, transformer.Stage{Name: s.Type, Transformer: t})
	}

	for i, s := range cfg.Writers {
		w, err := p.registry.Writers.Get(s.Type, adaptor.Config(s.Args))
		if err != nil {
			return nil, fmt.Errorf("writers[%d]: %w", i, err)
		}
		p.sinks = append(p.sinks, sink{name: s.Type, w: w})
	}
	return p, nil
}

// ID returns the run id.
func (p *Pipeline) ID() string {
	return p.id
}

// State returns the current state.
func (p *Pipeline) State() State {
	return State(atomic.LoadInt32(&p.state))
}

func (p *Pipeline) String() string {
	names := func(n []string) string {
		if len(n) == 0 {
			return "-"
		}
		return strings.Join(n, " -> ")
	}
	var tn, wn []string
	for _, s := range p.chain {
		tn = append(tn, s.Name)
	}
	for _, s := range p.sinks {
		wn = append(wn, s.name)
	}
	return fmt.Sprintf("readers: %s | transformers: %s | writers: %s", names(p.readerNames), names(tn), strings.Join(wn, ", "))
}

// Stop asks a running pipeline to abort before the next entry. Deferred
// writers are still drained.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}

// Run reads every entry, transforms it and hands it to the writers. It
// returns once the deferred writers have been drained, or their grace period
// expired. The returned error is the one that aborted the run, it is also
// recorded in Result.Err.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if !atomic.CompareAndSwapInt32(&p.state, int32(Idle), int32(Running)) {
		return nil, ErrAlreadyRun
	}
	res := &Result{RunID: p.id, State: Running, Started: time.Now()}
	p.log.With("pipeline", p.String()).Infoln("pipeline starting")

	opened, err := p.open(ctx)
	if err == nil {
		err = p.stream(ctx, res)
	}
	p.finalize(res, opened)

	res.Finished = time.Now()
	res.State = Completed
	if err != nil {
		res.State = Aborted
		res.Err = err
		p.log.Errorf("pipeline aborted, %s", err)
	}
	p.log.With("state", res.State).
		With("read", res.Read).
		With("transformed", res.Transformed).
		With("filtered", res.Filtered).
		With("written", res.Written).
		With("errored", res.Errored).
		With("duration", res.Duration()).
		Infoln("pipeline finished")
	atomic.StoreInt32(&p.state, int32(res.State))
	p.metrics.run(res.State, res.Duration().Seconds())
	return res, err
}

// open opens the writers in order and returns the ones that are ready.
func (p *Pipeline) open(ctx context.Context) ([]sink, error) {
	var opened []sink
	for _, s := range p.sinks {
		if o, ok := s.w.(writer.Opener); ok {
			if err := o.Open(ctx); err != nil {
				return opened, stage.Fatal(stage.Wrap("writer:"+s.name, "", err))
			}
		}
		opened = append(opened, s)
	}
	return opened, nil
}

func (p *Pipeline) stream(ctx context.Context, res *Result) error {
	it, err := p.reader.Read(ctx, nil)
	if err != nil {
		return stage.Fatal(stage.Wrap("reader", "", err))
	}
	defer it.Close()

	for {
		select {
		case <-p.stop:
			return ErrStopped
		default:
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		e, ok, err := it.Next(ctx)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			if stage.IsFatal(err) {
				return err
			}
			p.metrics.entries("reader", "failure", 1)
			if err := p.fail(res, err); err != nil {
				return err
			}
			continue
		}
		if !ok {
			return nil
		}
		res.Read++
		p.metrics.entries("reader", "success", 1)
		if err := p.handle(ctx, res, e); err != nil {
			return err
		}
	}
}

// handle runs e through the transformers and the writers. Only errors that
// must abort the run are returned.
func (p *Pipeline) handle(ctx context.Context, res *Result, e *message.Entry) error {
	r := p.chain.Apply(e)
	switch r.Status {
	case message.Filtered:
		res.Filtered++
		p.metrics.entries("transformer", "filtered", 1)
		return nil
	case message.Failure:
		p.metrics.entries("transformer", "failure", 1)
		if stage.IsFatal(r.Err) {
			return r.Err
		}
		return p.fail(res, r.Err)
	}
	res.Transformed++
	p.metrics.entries("transformer", "success", 1)

	for _, s := range p.sinks {
		start := time.Now()
		err := s.w.Write(ctx, r.Entry)
		p.metrics.write(s.name, time.Since(start).Seconds())
		if pw, ok := s.w.(pender); ok {
			p.metrics.queue(s.name, pw.Pending())
		}
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			werr := stage.Wrap("writer:"+s.name, e.ID, err)
			p.metrics.entries("writer", "failure", 1)
			if stage.IsFatal(werr) {
				return werr
			}
			if err := p.fail(res, werr); err != nil {
				return err
			}
			continue
		}
		// deferred writers report what they wrote when drained
		if _, ok := s.w.(writer.Drainer); !ok {
			res.Written++
			p.metrics.entries("writer", "success", 1)
		}
	}
	return nil
}

// fail records a per-entry error. With fail fast the error is returned as
// fatal.
func (p *Pipeline) fail(res *Result, err error) error {
	res.record(err, p.maxErrors)
	p.log.Errorln(err)
	if p.failFast {
		return stage.Fatal(err)
	}
	return nil
}

// finalize drains the deferred writers within the grace period, whatever
// the state of the run, and closes the others.
func (p *Pipeline) finalize(res *Result, opened []sink) {
	ctx, cancel := context.WithTimeout(context.Background(), p.drainTimeout)
	defer cancel()
	for _, s := range opened {
		l := p.log.With("writer", s.name)
		if d, ok := s.w.(writer.Drainer); ok {
			out := d.Drain(ctx)
			res.Written += out.Written
			for _, err := range out.Errors {
				res.record(stage.Wrap("writer:"+s.name, "", err), p.maxErrors)
			}
			p.metrics.entries("writer", "success", out.Written)
			p.metrics.entries("writer", "failure", len(out.Errors))
			p.metrics.queue(s.name, 0)
			l.With("written", out.Written).With("errors", len(out.Errors)).Infoln("writer drained")
			continue
		}
		if c, ok := s.w.(writer.Closer); ok {
			if err := c.Close(); err != nil {
				l.Errorf("unable to close writer, %s", err)
			}
		}
	}
}
