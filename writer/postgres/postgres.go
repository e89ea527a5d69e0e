// Package postgres writes mapping entries as rows of a PostgreSQL table.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/vocabstream/vocabstream/client"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/writer"
	"github.com/vocabstream/vocabstream/writer/sqlwriter"
)

const (
	// DefaultURI is the default endpoint of Postgres on the local machine.
	DefaultURI = "postgres://postgres@localhost:5432?sslmode=disable"
	// DefaultKey is the conflict column used for upserts.
	DefaultKey = "id"
)

var (
	_ writer.BatchWriter = &Postgres{}
	_ writer.Opener      = &Postgres{}
	_ writer.Closer      = &Postgres{}
)

func init() {
	writer.Add(
		"postgres",
		func() writer.Writer {
			return &Postgres{URI: DefaultURI, Key: DefaultKey}
		},
	)
}

// Postgres inserts each entry as a row, one column per top-level field.
// Without update, rows conflicting on Key are skipped, with update they are
// overwritten. Nested values are stored as JSON, geometries as PostGIS
// geometries.
type Postgres struct {
	writer.Base
	URI     string `json:"uri" validate:"required"`
	Table   string `json:"table" validate:"required"`
	Key     string `json:"key" validate:"required"`
	Timeout string `json:"timeout"`

	w *sqlwriter.Writer
}

func (p *Postgres) Description() string {
	return "writes entries as rows of a PostgreSQL table, nested fields as JSON"
}

func (p *Postgres) SampleConfig() string {
	return `uri: ${POSTGRESQL_URI}
table: public.affiliations
key: id
update: false
`
}

// Validate parses the URI and timeout, it does not connect.
func (p *Postgres) Validate() error {
	dsn, err := pq.ParseURL(p.URI)
	if err != nil {
		return client.InvalidURIError{URI: p.URI, Err: err.Error()}
	}
	var timeout time.Duration
	if p.Timeout != "" {
		if timeout, err = time.ParseDuration(p.Timeout); err != nil {
			return client.InvalidTimeoutError{Timeout: p.Timeout}
		}
	}
	p.w = &sqlwriter.Writer{
		Dialect: Dialect{},
		DSN:     dsn,
		Table:   p.Table,
		Key:     p.Key,
		Update:  p.Update,
		Timeout: timeout,
	}
	return nil
}

func (p *Postgres) Open(ctx context.Context) error { return p.w.Open(ctx) }

func (p *Postgres) Close() error { return p.w.Close() }

func (p *Postgres) Write(ctx context.Context, e *message.Entry) error {
	return p.w.Write(ctx, e)
}

func (p *Postgres) WriteBatch(ctx context.Context, entries []*message.Entry) error {
	return p.w.WriteBatch(ctx, entries)
}

// Dialect phrases statements for PostgreSQL.
type Dialect struct{}

func (Dialect) Driver() string { return "postgres" }

func (Dialect) Quote(ident string) string {
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

func (Dialect) Bind(i int, v interface{}) (string, interface{}, error) {
	placeholder := fmt.Sprintf("$%d", i)
	switch t := v.(type) {
	case geom.T:
		s, err := wkt.Marshal(t)
		return fmt.Sprintf("ST_GeomFromText(%s)", placeholder), s, err
	case map[string]interface{}, []interface{}, []map[string]interface{}:
		b, err := json.Marshal(t)
		return placeholder, string(b), err
	case []string:
		return placeholder, pq.Array(t), nil
	default:
		if m, ok := v.(interface{ AsMap() map[string]interface{} }); ok {
			b, err := json.Marshal(m.AsMap())
			return placeholder, string(b), err
		}
		return placeholder, v, nil
	}
}

func (d Dialect) Insert(table string, cols, placeholders []string, key string, update bool) string {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if !update {
		return q + " ON CONFLICT DO NOTHING;"
	}
	qkey := d.Quote(key)
	sets := sqlwriter.JoinAssignments(cols, qkey, func(c string) string { return "EXCLUDED." + c })
	if sets == "" {
		return q + " ON CONFLICT DO NOTHING;"
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s;", q, qkey, sets)
}
