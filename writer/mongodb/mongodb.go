// Package mongodb writes mapping entries as documents of a MongoDB collection.
package mongodb

import (
	"context"

	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/client"
	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/stage"
	"github.com/vocabstream/vocabstream/writer"
)

var (
	_ writer.BatchWriter = &MongoDB{}
	_ writer.Opener      = &MongoDB{}
	_ writer.Closer      = &MongoDB{}
)

func init() {
	writer.Add(
		"mongodb",
		func() writer.Writer {
			return &MongoDB{BaseConfig: adaptor.BaseConfig{URI: DefaultURI}, Key: "id"}
		},
	)
}

// MongoDB stores each entry as a document whose _id is the Key field (the
// entry id when Key is empty). Without update, documents already present are
// left untouched; with update they are replaced.
type MongoDB struct {
	writer.Base
	adaptor.BaseConfig
	Key     string   `json:"key"`
	SSL     bool     `json:"ssl"`
	CACerts []string `json:"cacerts"`
	Wc      int      `json:"wc"`
	FSync   bool     `json:"fsync"`

	db, collection string
	client         *Client
	session        *Session
}

func (m *MongoDB) Description() string {
	return "writes entries as documents of a MongoDB collection, bulk for batches"
}

func (m *MongoDB) SampleConfig() string {
	return `uri: ${MONGODB_URI}
namespace: vocabularies.affiliations
key: id
# timeout: 30s
# ssl: false
# cacerts: ["/path/to/cert.pem"]
# wc: 1
# fsync: false
update: true
`
}

// Validate checks the URI and namespace, it does not connect.
func (m *MongoDB) Validate() error {
	db, coll, err := adaptor.SplitNamespace(m.Namespace)
	if err != nil {
		return err
	}
	m.db, m.collection = db, coll
	m.client, err = NewClient(WithURI(m.URI),
		WithTimeout(m.Timeout),
		WithSSL(m.SSL),
		WithCACerts(m.CACerts),
		WithFsync(m.FSync),
		WithWriteConcern(m.Wc))
	return err
}

func (m *MongoDB) Open(ctx context.Context) error {
	s, err := m.client.Connect(ctx)
	if err != nil {
		return err
	}
	m.session = s.(*Session)
	log.With("db", m.db).With("collection", m.collection).Debugln("connected")
	return nil
}

func (m *MongoDB) Close() error {
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
	m.client.Close()
	return nil
}

func (m *MongoDB) coll() (*mgo.Collection, error) {
	if m.session == nil {
		return nil, client.ConnectError{Reason: "writer not opened"}
	}
	return m.session.mgoSession.DB(m.db).C(m.collection), nil
}

// document returns the bson document for e with its _id set.
func (m *MongoDB) document(e *message.Entry) (bson.M, interface{}, error) {
	d, err := writer.DataOf(e)
	if err != nil {
		return nil, nil, err
	}
	id, err := writer.Key(e, d, m.Key)
	if err != nil {
		return nil, nil, err
	}
	doc := bson.M{}
	for k, v := range d {
		doc[k] = v
	}
	doc["_id"] = id
	return doc, id, nil
}

func (m *MongoDB) Write(ctx context.Context, e *message.Entry) error {
	c, err := m.coll()
	if err != nil {
		return err
	}
	doc, id, err := m.document(e)
	if err != nil {
		return err
	}
	if m.Update {
		_, err = c.UpsertId(id, doc)
		return err
	}
	err = c.Insert(doc)
	if mgo.IsDup(err) {
		log.With("entry", e.ID).Debugln("document exists, skipping")
		return nil
	}
	return err
}

// WriteBatch runs an unordered bulk operation. Duplicates are not errors
// when update is off.
func (m *MongoDB) WriteBatch(ctx context.Context, entries []*message.Entry) error {
	c, err := m.coll()
	if err != nil {
		return err
	}
	var (
		be      writer.BatchError
		indexed []*message.Entry
	)
	bulk := c.Bulk()
	bulk.Unordered()
	for _, e := range entries {
		doc, id, err := m.document(e)
		if err != nil {
			be = append(be, stage.EntryError(e.ID, err))
			continue
		}
		if m.Update {
			bulk.Upsert(bson.M{"_id": id}, doc)
		} else {
			bulk.Insert(doc)
		}
		indexed = append(indexed, e)
	}
	if len(indexed) > 0 {
		_, err = bulk.Run()
		be = append(be, bulkErrors(err, indexed)...)
	}
	if len(be) > 0 {
		return be
	}
	return nil
}

func bulkErrors(err error, entries []*message.Entry) writer.BatchError {
	if err == nil {
		return nil
	}
	bulkErr, ok := err.(*mgo.BulkError)
	if !ok {
		var be writer.BatchError
		for _, e := range entries {
			be = append(be, stage.EntryError(e.ID, err))
		}
		return be
	}
	var be writer.BatchError
	for _, c := range bulkErr.Cases() {
		if mgo.IsDup(c.Err) {
			continue
		}
		if c.Index < 0 || c.Index >= len(entries) {
			be = append(be, c.Err)
			continue
		}
		be = append(be, stage.EntryError(entries[c.Index].ID, c.Err))
	}
	return be
}
