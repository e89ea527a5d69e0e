// Package async provides the asynchronous writer: a decorator that owns an
// inner writer, a bounded queue and the workers draining it in batches.
package async

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/stage"
	"github.com/vocabstream/vocabstream/writer"
)

const (
	DefaultBatchSize     = 100
	DefaultFlushInterval = "1s"
	DefaultQueueSize     = 1000
	DefaultWorkers       = 1

	// DefaultStopTimeout bounds the wait for workers once the drain grace
	// period ran out and they were asked to stop.
	DefaultStopTimeout = 5 * time.Second
)

var (
	_ writer.Writer  = &Async{}
	_ writer.Opener  = &Async{}
	_ writer.Drainer = &Async{}
)

func init() {
	Register(writer.Default)
}

// Register adds the async writer to r. Inner writers are resolved from r.
func Register(r *writer.Registry) {
	r.Add(
		"async",
		func() writer.Writer {
			return &Async{
				BatchSize:     DefaultBatchSize,
				FlushInterval: DefaultFlushInterval,
				QueueSize:     DefaultQueueSize,
				Workers:       DefaultWorkers,
				registry:      r,
			}
		},
	)
}

// UnflushedError reports the entries still pending when the drain grace
// period ran out.
type UnflushedError struct {
	Count int
}

func (e UnflushedError) Error() string {
	return fmt.Sprintf("%d entries not written before the writer was drained", e.Count)
}

// Async accepts entries into a queue and returns; Workers goroutines take
// them off the queue and hand them to the inner writer in batches of
// BatchSize, or whatever accumulated after FlushInterval. A full queue blocks
// Write, entries are never dropped.
type Async struct {
	Writer        writer.Spec `json:"writer"`
	BatchSize     int         `json:"batch_size" validate:"gte=1"`
	FlushInterval string      `json:"flush_interval"`
	QueueSize     int         `json:"queue_size" validate:"gte=1"`
	Workers       int         `json:"workers" validate:"gte=1"`

	registry  *writer.Registry
	inner     writer.Writer
	innerName string
	interval  time.Duration

	// stopTimeout overrides DefaultStopTimeout when set.
	stopTimeout time.Duration

	startOnce sync.Once
	mu        sync.RWMutex
	queue     chan *message.Entry
	closed    bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	statsMu   sync.Mutex
	submitted int
	written   int
	errs      []error
}

// New wraps inner without going through a registry.
func New(inner writer.Writer, batchSize, queueSize, workers int, interval time.Duration) *Async {
	return &Async{
		BatchSize: batchSize,
		QueueSize: queueSize,
		Workers:   workers,
		inner:     inner,
		innerName: fmt.Sprintf("%T", inner),
		interval:  interval,
	}
}

func (a *Async) Description() string {
	return "queues entries and writes them in batches through an inner writer on background workers"
}

func (a *Async) SampleConfig() string {
	return `writer:
  type: postgres
  args:
    uri: ${POSTGRESQL_URI}
    table: affiliations
    update: true
batch_size: 100
flush_interval: 1s
queue_size: 1000
workers: 1
`
}

// Validate resolves the inner writer, so an unknown inner type fails with the
// rest of the configuration.
func (a *Async) Validate() error {
	if a.Writer.Type == "" {
		return fmt.Errorf("missing inner writer type")
	}
	d, err := time.ParseDuration(a.FlushInterval)
	if err != nil || d <= 0 {
		return fmt.Errorf("invalid flush_interval %q", a.FlushInterval)
	}
	a.interval = d
	if a.registry == nil {
		a.registry = writer.Default
	}
	inner, err := a.registry.Get(a.Writer.Type, adaptor.Config(a.Writer.Args))
	if err != nil {
		return err
	}
	a.inner = inner
	a.innerName = a.Writer.Type
	return nil
}

// Inner returns the wrapped writer.
func (a *Async) Inner() writer.Writer {
	return a.inner
}

// Open opens the inner writer and starts the workers.
func (a *Async) Open(ctx context.Context) error {
	if o, ok := a.inner.(writer.Opener); ok {
		if err := o.Open(ctx); err != nil {
			return err
		}
	}
	a.startOnce.Do(a.start)
	return nil
}

func (a *Async) start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.interval <= 0 {
		a.interval, _ = time.ParseDuration(DefaultFlushInterval)
	}
	// workers outlive the context Open was given, Drain cancels them
	wctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.queue = make(chan *message.Entry, a.QueueSize)
	for i := 0; i < a.Workers; i++ {
		a.wg.Add(1)
		go a.work(wctx, i)
	}
	log.With("writer", a.innerName).With("workers", a.Workers).With("queue_size", a.QueueSize).Debugln("async writer started")
}

// Write enqueues a copy of e and returns once it is queued. It blocks while
// the queue is full, until ctx is done.
func (a *Async) Write(ctx context.Context, e *message.Entry) error {
	a.startOnce.Do(a.start)
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return writer.ErrWriterClosed
	}
	select {
	case a.queue <- e.Copy():
	case <-ctx.Done():
		return ctx.Err()
	}
	a.statsMu.Lock()
	a.submitted++
	a.statsMu.Unlock()
	return nil
}

// Pending returns the number of entries waiting in the queue.
func (a *Async) Pending() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.queue)
}

func (a *Async) work(ctx context.Context, n int) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	batch := make([]*message.Entry, 0, a.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		a.flush(ctx, n, batch)
		batch = make([]*message.Entry, 0, a.BatchSize)
	}
	for {
		select {
		case e, ok := <-a.queue:
			if !ok {
				flush()
				return
			}
			if ctx.Err() != nil {
				return
			}
			batch = append(batch, e)
			if len(batch) >= a.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			return
		}
	}
}

func (a *Async) flush(ctx context.Context, n int, batch []*message.Entry) {
	start := time.Now()
	out := writer.WriteAll(ctx, a.inner, batch)
	for i, err := range out.Errors {
		out.Errors[i] = stage.Wrap("writer:"+a.innerName, "", err)
	}
	a.statsMu.Lock()
	a.written += out.Written
	a.errs = append(a.errs, out.Errors...)
	a.statsMu.Unlock()
	log.With("writer", a.innerName).
		With("worker", n).
		With("batch", len(batch)).
		With("errors", len(out.Errors)).
		With("flushed_in_ms", time.Since(start).Milliseconds()).
		Debugln("batch flushed")
}

// Drain stops accepting entries and waits for the workers to write what is
// queued. When ctx is done first the workers are asked to stop and every
// entry not yet written is reported as an UnflushedError. Workers stuck in
// an inner write that ignores its context are abandoned after
// DefaultStopTimeout, the inner writer is then closed once they return.
func (a *Async) Drain(ctx context.Context) writer.Outcome {
	a.startOnce.Do(a.start)
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return a.outcome()
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	abandoned := false
	select {
	case <-done:
	case <-ctx.Done():
		log.With("writer", a.innerName).Warnln("drain grace period expired, abandoning queued entries")
		a.cancel()
		stop := a.stopTimeout
		if stop <= 0 {
			stop = DefaultStopTimeout
		}
		t := time.NewTimer(stop)
		select {
		case <-done:
		case <-t.C:
			log.With("writer", a.innerName).With("stop_timeout", stop).Errorln("workers did not stop, abandoning them")
			abandoned = true
		}
		t.Stop()
	}
	a.cancel()
	if abandoned {
		go func() {
			<-done
			a.closeInner()
		}()
	} else {
		a.closeInner()
	}

	out := a.outcome()
	a.statsMu.Lock()
	lost := a.submitted - out.Written - len(out.Errors)
	a.statsMu.Unlock()
	if lost > 0 {
		out.Errors = append(out.Errors, stage.Wrap("writer:"+a.innerName, "", UnflushedError{Count: lost}))
	}
	return out
}

func (a *Async) closeInner() {
	if c, ok := a.inner.(writer.Closer); ok {
		if err := c.Close(); err != nil {
			log.With("writer", a.innerName).Errorf("close error, %s", err)
		}
	}
}

func (a *Async) outcome() writer.Outcome {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	return writer.Outcome{Written: a.written, Errors: append([]error(nil), a.errs...)}
}
