// Package rabbitmq publishes job events to durable RabbitMQ fanout exchanges,
// one exchange per topic. Every watcher binds its own durable queue.
package rabbitmq

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	amqp091 "github.com/rabbitmq/amqp091-go"

	metadatapkg "github.com/drblury/commitlog/internal/runtime/metadata"
	"github.com/drblury/commitlog/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "rabbitmq"

// QueueSuffix names the queue watchers bind to each exchange.
const QueueSuffix = "commitlog-watch"

// ContentType marks bodies as structured CloudEvents.
const ContentType = "application/cloudevents+json"

// prefetchCount bounds unacknowledged events per watcher.
const prefetchCount = 64

// ConnectionFactory creates the shared connection. Tests replace it.
var ConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
	return amqp.NewConnection(cfg, logger)
}

// PublisherFactory creates the publisher. Tests replace it.
var PublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
	return amqp.NewPublisherWithConnection(cfg, logger, conn)
}

// SubscriberFactory creates the subscriber. Tests replace it.
var SubscriberFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Subscriber, error) {
	return amqp.NewSubscriberWithConnection(cfg, logger, conn)
}

func init() {
	Register()
}

// Register adds the transport to the default registry.
func Register() {
	transport.Register(transport.RabbitMQCapabilities, Build)
}

// Publishing copies event metadata into the AMQP properties brokers and
// management tools understand: type, correlation id and content type.
func Publishing(p amqp091.Publishing) amqp091.Publishing {
	header := func(key string) string {
		v, _ := p.Headers[key].(string)
		return v
	}
	p.ContentType = ContentType
	p.Type = header(metadatapkg.KeyEventType)
	p.CorrelationId = header(metadatapkg.KeyCorrelationID)
	p.AppId = "commitlog"
	return p
}

// Config returns the AMQP settings for url.
func Config(url string) amqp.Config {
	cfg := amqp.NewDurablePubSubConfig(url, amqp.GenerateQueueNameTopicNameWithSuffix(QueueSuffix))
	cfg.Marshaler = amqp.DefaultMarshaler{PostprocessPublishing: Publishing}
	cfg.Consume.Qos.PrefetchCount = prefetchCount
	return cfg
}

// Build creates a RabbitMQ transport. Publisher and subscriber share one
// reconnecting connection.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	url := cfg.GetRabbitMQURL()
	amqpConfig := Config(url)

	conn, err := ConnectionFactory(amqp.ConnectionConfig{
		AmqpURI:   url,
		Reconnect: amqp.DefaultReconnectConfig(),
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	publisher, err := PublisherFactory(amqpConfig, logger, conn)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(amqpConfig, logger, conn)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	return transport.Transport{Publisher: publisher, Subscriber: subscriber}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.RabbitMQCapabilities
}
