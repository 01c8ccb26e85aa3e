// Package kafka wraps segmentio/kafka-go for the outbox publisher and the
// analytics worker when FIVESCENT_EVENTING_TRANSPORT=kafka.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/multierr"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
)

const dialTimeout = 5 * time.Second

var errNoBrokers = errors.New("kafka brokers are required")

// Message is a transport-neutral record produced to a topic.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Client owns one writer per topic. Writers are created lazily and reused.
type Client struct {
	brokers []string
	cfg     config.KafkaConfig

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewClient validates the broker list. No connection is opened until the
// first Ping or Produce.
func NewClient(cfg config.KafkaConfig, logg *logger.Logger) (*Client, error) {
	brokers := cfg.BrokerList()
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}
	if logg != nil {
		logg.Info(logg.WithField(context.Background(), "brokers", brokers), "kafka client initialized")
	}
	return &Client{
		brokers: brokers,
		cfg:     cfg,
		writers: map[string]*kafka.Writer{},
	}, nil
}

// Produce writes msg synchronously and waits for every in-sync replica.
func (c *Client) Produce(ctx context.Context, msg Message) error {
	if msg.Topic == "" {
		return errors.New("kafka topic is required")
	}
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for key, value := range msg.Headers {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	return c.writer(msg.Topic).WriteMessages(ctx, kafka.Message{
		Key:     []byte(msg.Key),
		Value:   msg.Value,
		Headers: headers,
		Time:    time.Now().UTC(),
	})
}

func (c *Client) writer(topic string) *kafka.Writer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w, ok := c.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(c.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	c.writers[topic] = w
	return w
}

// NewGroupReader builds a consumer-group reader over topics with manual
// commits, so an offset only moves after the handler succeeded.
func (c *Client) NewGroupReader(groupID string, topics []string) (*kafka.Reader, error) {
	if groupID == "" {
		return nil, errors.New("kafka group id is required")
	}
	if len(topics) == 0 {
		return nil, errors.New("kafka topics are required")
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.brokers,
		GroupID:        groupID,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	}), nil
}

// Ping dials the first reachable broker and reads the controller.
func (c *Client) Ping(ctx context.Context) error {
	dialer := &kafka.Dialer{Timeout: dialTimeout}
	var lastErr error
	for _, broker := range c.brokers {
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = conn.Controller()
		_ = conn.Close()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("kafka ping: %w", lastErr)
}

// Close flushes and closes every writer.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs error
	for topic, w := range c.writers {
		if err := w.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close writer %s: %w", topic, err))
		}
		delete(c.writers, topic)
	}
	return errs
}
