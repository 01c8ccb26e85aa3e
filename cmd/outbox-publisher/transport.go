package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	kafkago "github.com/segmentio/kafka-go"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/kafka"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox/registry"
)

type pubSubPublisherSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

// pubSubTransport keeps one publisher per topic so batching settings survive
// across outbox batches.
type pubSubTransport struct {
	client pubSubPublisherSource

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

func newPubSubTransport(client pubSubPublisherSource) *pubSubTransport {
	return &pubSubTransport{client: client, publishers: map[string]*gcppubsub.Publisher{}}
}

func (t *pubSubTransport) Name() string { return "pubsub" }

func (t *pubSubTransport) Ping(ctx context.Context) error {
	return t.client.Ping(ctx)
}

func (t *pubSubTransport) Publish(ctx context.Context, msg outboundMessage) error {
	pub := t.publisher(msg.Topic)
	if pub == nil {
		return fmt.Errorf("publisher not configured for topic %s", msg.Topic)
	}
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:       msg.Data,
		Attributes: msg.Attributes,
	})
	if _, err := result.Get(ctx); err != nil {
		// InvalidArgument means the message itself is unacceptable, e.g.
		// over the 10MB limit; resending cannot help.
		if status.Code(err) == codes.InvalidArgument {
			return registry.Permanent(enums.OutboxDLQReasonRejected, err)
		}
		return err
	}
	return nil
}

func (t *pubSubTransport) publisher(topic string) *gcppubsub.Publisher {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pub, ok := t.publishers[topic]; ok {
		return pub
	}
	pub := t.client.Publisher(topic)
	if pub != nil {
		t.publishers[topic] = pub
	}
	return pub
}

// Stop flushes and stops every cached publisher.
func (t *pubSubTransport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for topic, pub := range t.publishers {
		pub.Stop()
		delete(t.publishers, topic)
	}
}

type kafkaProducer interface {
	Ping(context.Context) error
	Produce(context.Context, kafka.Message) error
}

// kafkaTransport keys records by aggregate id so every event of one order
// lands on the same partition.
type kafkaTransport struct {
	producer kafkaProducer
}

func newKafkaTransport(producer kafkaProducer) *kafkaTransport {
	return &kafkaTransport{producer: producer}
}

func (t *kafkaTransport) Name() string { return "kafka" }

func (t *kafkaTransport) Ping(ctx context.Context) error {
	return t.producer.Ping(ctx)
}

func (t *kafkaTransport) Publish(ctx context.Context, msg outboundMessage) error {
	if msg.Key == "" {
		return registry.Permanent(enums.OutboxDLQReasonRejected, errors.New("kafka message key is required"))
	}
	err := t.producer.Produce(ctx, kafka.Message{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Data,
		Headers: msg.Attributes,
	})
	if kafkaRejected(err) {
		return registry.Permanent(enums.OutboxDLQReasonRejected, err)
	}
	return err
}

// kafkaRejected reports broker errors that will repeat on every resend.
func kafkaRejected(err error) bool {
	if err == nil {
		return false
	}
	var batch kafkago.WriteErrors
	if errors.As(err, &batch) {
		for _, item := range batch {
			if kafkaRejected(item) {
				return true
			}
		}
		return false
	}
	var code kafkago.Error
	if !errors.As(err, &code) {
		return false
	}
	return code == kafkago.MessageSizeTooLarge || code == kafkago.InvalidMessage
}
