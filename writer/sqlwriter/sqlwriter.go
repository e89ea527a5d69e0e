// Package sqlwriter holds the database/sql plumbing shared by the postgres and
// mysql writers. A Dialect knows how to quote, bind and phrase the insert,
// the Writer runs the statements.
package sqlwriter

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vocabstream/vocabstream/client"
	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/stage"
	"github.com/vocabstream/vocabstream/writer"
)

// DefaultTimeout bounds the connection check done by Open.
const DefaultTimeout = 10 * time.Second

// Dialect phrases statements for one database.
type Dialect interface {
	// Driver is the database/sql driver name.
	Driver() string
	// Quote quotes a possibly "schema.table" qualified identifier.
	Quote(ident string) string
	// Bind returns the placeholder for the i-th (1 based) value and the
	// value converted for the driver.
	Bind(i int, v interface{}) (string, interface{}, error)
	// Insert returns the statement inserting cols. With update set, a row
	// conflicting on key is replaced, otherwise it is left untouched.
	Insert(table string, cols, placeholders []string, key string, update bool) string
}

// Writer inserts mapping entries as rows of Table, one column per field.
type Writer struct {
	Dialect Dialect
	DSN     string
	Table   string
	Key     string
	Update  bool
	Timeout time.Duration

	db *sql.DB
}

// Open connects and checks the connection.
func (w *Writer) Open(ctx context.Context) error {
	db, err := sql.Open(w.Dialect.Driver(), w.DSN)
	if err != nil {
		return client.ConnectError{Reason: err.Error()}
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return client.ConnectError{Reason: err.Error()}
	}
	w.db = db
	log.With("driver", w.Dialect.Driver()).With("table", w.Table).Debugln("connected")
	return nil
}

// Close closes the underlying *sql.DB.
func (w *Writer) Close() error {
	if w.db == nil {
		return nil
	}
	err := w.db.Close()
	w.db = nil
	return err
}

// Statement builds the statement and arguments writing e.
func (w *Writer) Statement(e *message.Entry) (string, []interface{}, error) {
	d, err := writer.DataOf(e)
	if err != nil {
		return "", nil, err
	}
	if len(d) == 0 {
		return "", nil, fmt.Errorf("entry %s has no fields", e.ID)
	}
	cols := make([]string, 0, len(d))
	for k := range d {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	var (
		quoted       = make([]string, len(cols))
		placeholders = make([]string, len(cols))
		args         = make([]interface{}, len(cols))
	)
	for i, c := range cols {
		quoted[i] = w.Dialect.Quote(c)
		placeholders[i], args[i], err = w.Dialect.Bind(i+1, d[c])
		if err != nil {
			return "", nil, fmt.Errorf("field %s, %s", c, err)
		}
	}
	return w.Dialect.Insert(w.Dialect.Quote(w.Table), quoted, placeholders, w.Key, w.Update), args, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (w *Writer) exec(ctx context.Context, x execer, e *message.Entry) error {
	query, args, err := w.Statement(e)
	if err != nil {
		return err
	}
	log.With("table", w.Table).With("entry", e.ID).Debugf("query: %s", query)
	_, err = x.ExecContext(ctx, query, args...)
	return err
}

func (w *Writer) Write(ctx context.Context, e *message.Entry) error {
	if w.db == nil {
		return client.ConnectError{Reason: "writer not opened"}
	}
	return w.exec(ctx, w.db, e)
}

// WriteBatch writes entries in one transaction. When the transaction fails
// the entries are written one by one so that a bad entry only fails itself.
func (w *Writer) WriteBatch(ctx context.Context, entries []*message.Entry) error {
	if w.db == nil {
		return client.ConnectError{Reason: "writer not opened"}
	}
	err := w.tx(ctx, entries)
	if err == nil {
		return nil
	}
	log.With("table", w.Table).With("batch", len(entries)).Warnf("batch failed, writing entries one by one, %s", err)
	var be writer.BatchError
	for _, e := range entries {
		if err := w.exec(ctx, w.db, e); err != nil {
			be = append(be, stage.EntryError(e.ID, err))
		}
	}
	if len(be) > 0 {
		return be
	}
	return nil
}

func (w *Writer) tx(ctx context.Context, entries []*message.Entry) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := w.exec(ctx, tx, e); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// JoinAssignments returns "c1 = f(c1), c2 = f(c2)" for every column but key.
func JoinAssignments(cols []string, key string, f func(col string) string) string {
	var sets []string
	for _, c := range cols {
		if c == key {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = %s", c, f(c)))
	}
	return strings.Join(sets, ", ")
}
