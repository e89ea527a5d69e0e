// Package rethinkdb writes mapping entries as documents of a RethinkDB table.
package rethinkdb

import (
	"context"
	"fmt"
	"strings"

	r "gopkg.in/gorethink/gorethink.v3"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/client"
	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/stage"
	"github.com/vocabstream/vocabstream/writer"
)

var (
	_ writer.BatchWriter = &RethinkDB{}
	_ writer.Opener      = &RethinkDB{}
	_ writer.Closer      = &RethinkDB{}
)

func init() {
	writer.Add(
		"rethinkdb",
		func() writer.Writer {
			return &RethinkDB{BaseConfig: adaptor.BaseConfig{URI: DefaultURI}, Key: "id"}
		},
	)
}

// RethinkDB inserts entries into the table named by the "db.table"
// namespace. The Key field becomes the primary key "id". Inserts use the
// conflict strategy "error" without update, so existing documents are kept,
// and "replace" with update.
type RethinkDB struct {
	writer.Base
	adaptor.BaseConfig
	Key     string   `json:"key"`
	SSL     bool     `json:"ssl"`
	CACerts []string `json:"cacerts"`

	db, table string
	client    *Client
	session   *Session
}

func (rt *RethinkDB) Description() string {
	return "writes entries as documents of a RethinkDB table"
}

func (rt *RethinkDB) SampleConfig() string {
	return `uri: ${RETHINKDB_URI}
namespace: vocabularies.affiliations
# timeout: 30s
# ssl: false
# cacerts: ["/path/to/cert.pem"]
update: false
`
}

// Validate checks the URI and namespace, it does not connect.
func (rt *RethinkDB) Validate() error {
	db, table, err := adaptor.SplitNamespace(rt.Namespace)
	if err != nil {
		return err
	}
	rt.db, rt.table = db, table
	rt.client, err = NewClient(
		WithURI(rt.URI),
		WithDatabase(db),
		WithSessionTimeout(rt.Timeout),
		WithSSL(rt.SSL),
		WithCACerts(rt.CACerts),
	)
	return err
}

func (rt *RethinkDB) Open(ctx context.Context) error {
	s, err := rt.client.Connect(ctx)
	if err != nil {
		return err
	}
	rt.session = s.(*Session)
	return nil
}

func (rt *RethinkDB) Close() error {
	rt.session = nil
	rt.client.Close()
	return nil
}

func (rt *RethinkDB) conflict() string {
	if rt.Update {
		return "replace"
	}
	return "error"
}

// prepareDocument copies the entry mapping and sets its primary key.
func (rt *RethinkDB) prepareDocument(e *message.Entry) (map[string]interface{}, error) {
	d, err := writer.DataOf(e)
	if err != nil {
		return nil, err
	}
	id, err := writer.Key(e, d, rt.Key)
	if err != nil {
		return nil, err
	}
	doc := make(map[string]interface{}, len(d)+1)
	for k, v := range d {
		doc[k] = v
	}
	doc["id"] = id
	return doc, nil
}

func (rt *RethinkDB) Write(ctx context.Context, e *message.Entry) error {
	err := rt.WriteBatch(ctx, []*message.Entry{e})
	if be, ok := err.(writer.BatchError); ok && len(be) == 1 {
		return be[0]
	}
	return err
}

// WriteBatch inserts the documents in one query. RethinkDB only reports the
// first error of a batch, so a failed batch is retried document by document.
func (rt *RethinkDB) WriteBatch(ctx context.Context, entries []*message.Entry) error {
	if rt.session == nil {
		return client.ConnectError{Reason: "writer not opened"}
	}
	var (
		be   writer.BatchError
		docs []map[string]interface{}
		sent []*message.Entry
	)
	for _, e := range entries {
		doc, err := rt.prepareDocument(e)
		if err != nil {
			be = append(be, stage.EntryError(e.ID, err))
			continue
		}
		docs = append(docs, doc)
		sent = append(sent, e)
	}
	if len(docs) > 0 {
		err := rt.insert(ctx, docs)
		if err != nil && len(docs) > 1 {
			log.With("db", rt.db).With("table", rt.table).Warnf("batch failed, writing documents one by one, %s", err)
			for i, doc := range docs {
				if err := rt.insert(ctx, doc); err != nil {
					be = append(be, stage.EntryError(sent[i].ID, err))
				}
			}
		} else if err != nil {
			be = append(be, stage.EntryError(sent[0].ID, err))
		}
	}
	if len(be) > 0 {
		return be
	}
	return nil
}

func (rt *RethinkDB) insert(ctx context.Context, docs interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := r.DB(rt.db).Table(rt.table).
		Insert(docs, r.InsertOpts{Conflict: rt.conflict()}).
		RunWrite(rt.session.session)
	if err != nil {
		return err
	}
	return handleResponse(&resp)
}

// handleResponse turns the write response into an error. Duplicate keys are
// expected when existing documents are kept.
func handleResponse(resp *r.WriteResponse) error {
	if resp.Errors != 0 {
		if !isDuplicate(resp.FirstError) {
			return fmt.Errorf("problem inserting docs, %s", resp.FirstError)
		}
	}
	return nil
}

func isDuplicate(msg string) bool {
	return strings.HasPrefix(msg, "Duplicate primary key")
}
