// Package redis stores entries as JSON strings in Redis, one key per entry.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vocabstream/vocabstream/client"
	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/message/data"
	"github.com/vocabstream/vocabstream/stage"
	"github.com/vocabstream/vocabstream/writer"
)

const (
	// DefaultURI is the default endpoint of Redis on the local machine.
	DefaultURI = "redis://localhost:6379/0"

	// DefaultTimeout bounds the connection check done by Open.
	DefaultTimeout = 10 * time.Second
)

var (
	_ writer.BatchWriter = &Redis{}
	_ writer.Opener      = &Redis{}
	_ writer.Closer      = &Redis{}
)

func init() {
	writer.Add(
		"redis",
		func() writer.Writer {
			return &Redis{URI: DefaultURI, Key: "id"}
		},
	)
}

// Redis sets the key Prefix+<key field> to the JSON encoded entry. Existing
// keys are only overwritten with update.
type Redis struct {
	writer.Base
	URI     string `json:"uri" validate:"required"`
	Prefix  string `json:"prefix"`
	Key     string `json:"key"`
	TTL     string `json:"ttl"`
	Timeout string `json:"timeout"`

	opts    *goredis.Options
	ttl     time.Duration
	timeout time.Duration
	rdb     *goredis.Client
}

func (r *Redis) Description() string {
	return "stores entries as JSON strings in Redis"
}

func (r *Redis) SampleConfig() string {
	return `uri: ${REDIS_URI}
prefix: "names:"
key: id
# ttl: 24h
update: false
`
}

func (r *Redis) Validate() error {
	opts, err := goredis.ParseURL(r.URI)
	if err != nil {
		return client.InvalidURIError{URI: r.URI, Err: err.Error()}
	}
	r.opts = opts
	if r.TTL != "" {
		if r.ttl, err = time.ParseDuration(r.TTL); err != nil || r.ttl < 0 {
			return fmt.Errorf("invalid ttl %q", r.TTL)
		}
	}
	r.timeout = DefaultTimeout
	if r.Timeout != "" {
		if r.timeout, err = time.ParseDuration(r.Timeout); err != nil {
			return client.InvalidTimeoutError{Timeout: r.Timeout}
		}
	}
	return nil
}

func (r *Redis) Open(ctx context.Context) error {
	r.rdb = goredis.NewClient(r.opts)
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		r.rdb.Close()
		r.rdb = nil
		return client.ConnectError{Reason: err.Error()}
	}
	log.With("addr", r.opts.Addr).With("db", r.opts.DB).Debugln("connected to redis")
	return nil
}

func (r *Redis) Close() error {
	if r.rdb == nil {
		return nil
	}
	err := r.rdb.Close()
	r.rdb = nil
	return err
}

// record returns the key and the JSON value stored for an entry.
func (r *Redis) record(e *message.Entry) (string, []byte, error) {
	d, err := writer.DataOf(e)
	if err != nil {
		return "", nil, err
	}
	k, err := writer.Key(e, d, r.Key)
	if err != nil {
		return "", nil, err
	}
	b, err := json.Marshal(data.Plain(d))
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s%v", r.Prefix, k), b, nil
}

func (r *Redis) set(ctx context.Context, c goredis.Cmdable, key string, b []byte) goredis.Cmder {
	if r.Update {
		return c.Set(ctx, key, b, r.ttl)
	}
	return c.SetNX(ctx, key, b, r.ttl)
}

func (r *Redis) Write(ctx context.Context, e *message.Entry) error {
	if r.rdb == nil {
		return client.ConnectError{Reason: "writer not opened"}
	}
	key, b, err := r.record(e)
	if err != nil {
		return err
	}
	return r.set(ctx, r.rdb, key, b).Err()
}

// WriteBatch sends all the entries in one pipeline and reports the failed
// commands per entry.
func (r *Redis) WriteBatch(ctx context.Context, entries []*message.Entry) error {
	if r.rdb == nil {
		return client.ConnectError{Reason: "writer not opened"}
	}
	var (
		be   writer.BatchError
		cmds []goredis.Cmder
		ids  []string
	)
	pipe := r.rdb.Pipeline()
	for _, e := range entries {
		key, b, err := r.record(e)
		if err != nil {
			be = append(be, stage.EntryError(e.ID, err))
			continue
		}
		cmds = append(cmds, r.set(ctx, pipe, key, b))
		ids = append(ids, e.ID)
	}
	if len(cmds) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			for i, cmd := range cmds {
				if cmd.Err() != nil {
					be = append(be, stage.EntryError(ids[i], cmd.Err()))
				}
			}
		}
	}
	if len(be) > 0 {
		return be
	}
	return nil
}
