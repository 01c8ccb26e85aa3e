package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
)

const kafkaRetryPause = time.Second

type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource reads a consumer group and commits an offset only after the
// handler succeeded. A failed message is retried in place, keeping order
// within its partition.
type KafkaSource struct {
	reader kafkaReader
	logg   *logger.Logger
	pause  time.Duration
}

func NewKafkaSource(reader kafkaReader, logg *logger.Logger) (*KafkaSource, error) {
	if reader == nil {
		return nil, errors.New("kafka reader is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &KafkaSource{reader: reader, logg: logg, pause: kafkaRetryPause}, nil
}

func (k *KafkaSource) Receive(ctx context.Context, fn func(ctx context.Context, msg Message) error) error {
	defer func() {
		if err := k.reader.Close(); err != nil {
			k.logg.Error(ctx, "failed to close kafka reader", err)
		}
	}()
	for {
		m, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch kafka message: %w", err)
		}
		msg := toMessage(m)
		for {
			if err := fn(ctx, msg); err == nil {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(k.pause):
			}
		}
		if err := k.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("commit kafka offset: %w", err)
		}
	}
}

func toMessage(m kafka.Message) Message {
	attrs := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		attrs[h.Key] = string(h.Value)
	}
	return Message{
		ID:         fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset),
		Data:       m.Value,
		Attributes: attrs,
	}
}
