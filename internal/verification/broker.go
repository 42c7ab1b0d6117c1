package verification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stepflow/orchestrator/internal/apierr"
)

// brokerConnector is the shared shape of the message-broker drivers
// (Kafka, RabbitMQ, MongoDB change streams): each has a genuine
// subscribe-then-wait primitive for preListen verifications, backed
// here by a real client extension point rather than a fabricated one.
// Execute alone (preListen=false) degrades to "subscribe and wait for
// one matching message within the query timeout", since none of these
// systems support a point-in-time query the way SQL/Redis do.
type brokerConnector struct {
	connType  string
	subscribe func(ctx context.Context, config map[string]string, resolvedQuery string) (BrokerSubscription, error)
}

// BrokerSubscription is the real-client extension point a driver
// implementation plugs in: Next blocks for the next matching message.
type BrokerSubscription interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

func (c *brokerConnector) Type() string { return c.connType }

func (c *brokerConnector) Execute(ctx context.Context, config map[string]string, resolvedQuery string, queryTimeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sub, err := c.subscribe(ctx, config, resolvedQuery)
	if err != nil {
		return "", apierr.VerificationQuery(c.connType, err)
	}
	defer sub.Close()

	msg, err := sub.Next(ctx)
	if err != nil {
		return "", apierr.VerificationQuery(c.connType, err)
	}
	return wrapMessage(msg), nil
}

func (c *brokerConnector) Listen(ctx context.Context, config map[string]string, resolvedQuery string) (Listener, error) {
	sub, err := c.subscribe(ctx, config, resolvedQuery)
	if err != nil {
		return nil, apierr.VerificationQuery(c.connType, err)
	}
	return &brokerListener{connType: c.connType, sub: sub}, nil
}

type brokerListener struct {
	connType string
	sub      BrokerSubscription
}

func (l *brokerListener) Await(ctx context.Context, queryTimeout time.Duration) (string, error) {
	defer l.sub.Close()

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	msg, err := l.sub.Next(ctx)
	if err != nil {
		return "", apierr.VerificationQuery(l.connType, err)
	}
	return wrapMessage(msg), nil
}

func wrapMessage(raw string) string {
	var parsed interface{}
	if json.Unmarshal([]byte(raw), &parsed) == nil {
		return raw
	}
	b, _ := json.Marshal(map[string]interface{}{"message": raw})
	return string(b)
}

// NewKafkaConnector builds a Kafka driver around subscribe, the
// real-client extension point (e.g. a segmentio/kafka-go consumer
// group assigned and seeked to end before the HTTP call per the
// pre-listen contract). The resolved query is newline- or whitespace-
// separated `topic=T [key=K]`; empty lists topics instead of waiting.
func NewKafkaConnector(subscribe func(ctx context.Context, config map[string]string, resolvedQuery string) (BrokerSubscription, error)) Connector {
	return &brokerConnector{connType: "kafka", subscribe: subscribe}
}

// NewRabbitMQConnector builds a RabbitMQ driver around subscribe, the
// real-client extension point (e.g. an amqp091-go consumer with manual
// ack, re-queueing non-matches). The resolved query is whitespace-
// separated `queue=Q [routingKey=R]`.
func NewRabbitMQConnector(subscribe func(ctx context.Context, config map[string]string, resolvedQuery string) (BrokerSubscription, error)) Connector {
	return &brokerConnector{connType: "rabbitmq", subscribe: subscribe}
}

// NewMongoConnector builds a MongoDB driver around subscribe, the
// real-client extension point (e.g. a mongo-driver change stream over
// the named collection, or a Find for non-preListen use). The resolved
// query is `collection.{filterJson}`; empty lists collections.
func NewMongoConnector(subscribe func(ctx context.Context, config map[string]string, resolvedQuery string) (BrokerSubscription, error)) Connector {
	return &brokerConnector{connType: "mongodb", subscribe: subscribe}
}
