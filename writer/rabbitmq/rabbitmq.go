// Package rabbitmq publishes entries as JSON messages to a RabbitMQ exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/client"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/message/data"
	"github.com/vocabstream/vocabstream/writer"
)

const (
	// DefaultDeliveryMode is used when writing messages to an exchange.
	DefaultDeliveryMode = amqp.Transient

	// DefaultRoutingKey is set to an empty string so all messages published to the exchange will
	// get routed to whatever queues are bound to it.
	DefaultRoutingKey = ""
)

var (
	_ writer.Writer = &RabbitMQ{}
	_ writer.Opener = &RabbitMQ{}
	_ writer.Closer = &RabbitMQ{}
)

func init() {
	writer.Add(
		"rabbitmq",
		func() writer.Writer {
			return &RabbitMQ{
				BaseConfig:   adaptor.BaseConfig{URI: DefaultURI},
				RoutingKey:   DefaultRoutingKey,
				DeliveryMode: DefaultDeliveryMode,
			}
		},
	)
}

// RabbitMQ publishes every entry to the exchange named by Namespace. With
// KeyInField the routing key is read from the entry field named RoutingKey.
type RabbitMQ struct {
	adaptor.BaseConfig
	RoutingKey   string   `json:"routing_key"`
	KeyInField   bool     `json:"key_in_field"`
	DeliveryMode uint8    `json:"delivery_mode" validate:"oneof=1 2"`
	SSL          bool     `json:"ssl"`
	CACerts      []string `json:"cacerts"`

	client *Client

	mu      sync.Mutex
	session *Session
}

func (r *RabbitMQ) Description() string {
	return "publishes entries as JSON messages to a RabbitMQ exchange"
}

func (r *RabbitMQ) SampleConfig() string {
	return `uri: ${RABBITMQ_URI}
namespace: vocabularies
routing_key: ""
key_in_field: false
# delivery_mode: 1 # non-persistent (1) or persistent (2)
# ssl: false
# cacerts: ["/path/to/cert.pem"]
`
}

func (r *RabbitMQ) Validate() error {
	if r.KeyInField && r.RoutingKey == "" {
		return fmt.Errorf("routing_key must name a field when key_in_field is set")
	}
	var err error
	r.client, err = NewClient(
		WithURI(r.URI),
		WithSSL(r.SSL),
		WithCACerts(r.CACerts),
	)
	return err
}

func (r *RabbitMQ) Open(ctx context.Context) error {
	if err := checkExchange(ctx, r.client, r.Namespace); err != nil {
		return err
	}
	s, err := r.client.Connect(ctx)
	if err != nil {
		return err
	}
	r.session = s.(*Session)
	return nil
}

// checkExchange makes sure the exchange exists. The broker closes a channel
// whose passive declare fails, so the check runs on a session of its own.
func checkExchange(ctx context.Context, c client.Client, exchange string) error {
	if exchange == "" {
		return nil
	}
	return client.WithSession(ctx, c, func(s client.Session) error {
		sess, ok := s.(*Session)
		if !ok {
			return fmt.Errorf("unexpected session type %T", s)
		}
		if err := sess.channel.ExchangeDeclarePassive(exchange, "direct", false, false, false, false, nil); err != nil {
			return client.ConnectError{Reason: fmt.Sprintf("exchange %s unavailable, %s", exchange, err)}
		}
		return nil
	})
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		r.session.Close()
		r.session = nil
	}
	r.client.Close()
	return nil
}

func (r *RabbitMQ) routingKey(d map[string]interface{}) (string, error) {
	if !r.KeyInField {
		return r.RoutingKey, nil
	}
	k, ok := d[r.RoutingKey].(string)
	if !ok {
		return "", fmt.Errorf("routing key field %q missing or not a string", r.RoutingKey)
	}
	return k, nil
}

// publishing builds the message and its routing key for an entry.
func (r *RabbitMQ) publishing(e *message.Entry) (amqp.Publishing, string, error) {
	d, err := writer.DataOf(e)
	if err != nil {
		return amqp.Publishing{}, "", err
	}
	key, err := r.routingKey(d)
	if err != nil {
		return amqp.Publishing{}, "", err
	}
	b, err := json.Marshal(data.Plain(d))
	if err != nil {
		return amqp.Publishing{}, "", err
	}
	return amqp.Publishing{
		DeliveryMode: r.DeliveryMode,
		MessageId:    e.ID,
		Timestamp:    time.Now().UTC(),
		ContentType:  "application/json",
		Body:         b,
	}, key, nil
}

func (r *RabbitMQ) Write(ctx context.Context, e *message.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, key, err := r.publishing(e)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return client.ConnectError{Reason: "writer not opened"}
	}
	return r.session.channel.Publish(r.Namespace, key, false, false, msg)
}
