package reader

import (
	"context"

	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/stage"
)

func isFatal(err error) bool {
	return stage.IsFatal(err) || err == context.Canceled || err == context.DeadlineExceeded
}

// Chain returns a Reader that feeds the output of each reader into the next.
// Chain(Chain(a, b), c) and Chain(a, Chain(b, c)) yield the same entries.
func Chain(readers ...Reader) Reader {
	return Func(func(ctx context.Context, upstream Iterator) (Iterator, error) {
		it := upstream
		for _, r := range readers {
			next, err := r.Read(ctx, it)
			if err != nil {
				if it != nil {
					it.Close()
				}
				return nil, err
			}
			it = next
		}
		if it == nil {
			return Slice(), nil
		}
		return it, nil
	})
}

// ExpandFunc turns a single upstream entry into an Iterator over its
// downstream entries.
type ExpandFunc func(ctx context.Context, e *message.Entry) (Iterator, error)

// Expand lazily applies fn to every upstream entry and flattens the results.
// Only one upstream entry is expanded at a time. Errors of fn and of the
// iterators it returns are tagged with name and the entry id; they stay
// per-entry unless marked fatal.
func Expand(name string, upstream Iterator, fn ExpandFunc) Iterator {
	return &expandIter{name: name, upstream: upstream, fn: fn}
}

type expandIter struct {
	name     string
	upstream Iterator
	fn       ExpandFunc
	cur      Iterator
	curID    string
}

func (it *expandIter) Next(ctx context.Context) (*message.Entry, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if it.cur != nil {
			e, ok, err := it.cur.Next(ctx)
			if err != nil {
				if isFatal(err) {
					return nil, false, it.wrap(it.curID, err)
				}
				return nil, true, it.wrap(it.curID, err)
			}
			if ok {
				return e, true, nil
			}
			it.cur.Close()
			it.cur = nil
		}

		e, ok, err := it.upstream.Next(ctx)
		if err != nil {
			return nil, !isFatal(err), err
		}
		if !ok {
			return nil, false, nil
		}
		cur, err := it.fn(ctx, e)
		if err != nil {
			if isFatal(err) {
				return nil, false, it.wrap(e.ID, err)
			}
			return nil, true, it.wrap(e.ID, err)
		}
		it.cur, it.curID = cur, e.ID
	}
}

func (it *expandIter) wrap(id string, err error) error {
	if err == context.Canceled || err == context.DeadlineExceeded {
		return err
	}
	return stage.Wrap("reader:"+it.name, id, err)
}

func (it *expandIter) Close() error {
	if it.cur != nil {
		it.cur.Close()
		it.cur = nil
	}
	return it.upstream.Close()
}

// Map is Expand for readers that produce exactly one entry per upstream entry.
func Map(name string, upstream Iterator, fn func(ctx context.Context, e *message.Entry) (*message.Entry, error)) Iterator {
	return Expand(name, upstream, func(ctx context.Context, e *message.Entry) (Iterator, error) {
		out, err := fn(ctx, e)
		if err != nil {
			return nil, err
		}
		return Slice(out), nil
	})
}

// Slice returns an Iterator over entries.
func Slice(entries ...*message.Entry) Iterator {
	return &sliceIter{entries: entries}
}

type sliceIter struct {
	entries []*message.Entry
	index   int
}

func (it *sliceIter) Next(_ context.Context) (*message.Entry, bool, error) {
	if it.index >= len(it.entries) {
		return nil, false, nil
	}
	e := it.entries[it.index]
	it.index++
	return e, true, nil
}

func (it *sliceIter) Close() error { return nil }

// FuncIter adapts a next function and an optional close function into an
// Iterator.
func FuncIter(next func(ctx context.Context) (*message.Entry, bool, error), closeFn func() error) Iterator {
	return &funcIter{next: next, close: closeFn}
}

type funcIter struct {
	next  func(ctx context.Context) (*message.Entry, bool, error)
	close func() error
	done  bool
}

func (it *funcIter) Next(ctx context.Context) (*message.Entry, bool, error) {
	if it.done {
		return nil, false, nil
	}
	e, ok, err := it.next(ctx)
	if (err == nil && !ok) || (err != nil && isFatal(err)) {
		it.done = true
	}
	return e, ok, err
}

func (it *funcIter) Close() error {
	it.done = true
	if it.close != nil {
		c := it.close
		it.close = nil
		return c()
	}
	return nil
}
