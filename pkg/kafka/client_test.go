package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
)

func TestNewClientRequiresBrokers(t *testing.T) {
	_, err := NewClient(config.KafkaConfig{Brokers: " , "}, nil)
	require.ErrorIs(t, err, errNoBrokers)
}

func TestWriterIsReusedPerTopic(t *testing.T) {
	client, err := NewClient(config.KafkaConfig{Brokers: "localhost:9092"}, nil)
	require.NoError(t, err)

	first := client.writer("5scent.orders")
	again := client.writer("5scent.orders")
	other := client.writer("5scent.payments")
	assert.Same(t, first, again)
	assert.NotSame(t, first, other)
	assert.Equal(t, "5scent.payments", other.Topic)

	require.NoError(t, client.Close())
	assert.Empty(t, client.writers)
}

func TestProduceRequiresTopic(t *testing.T) {
	client, err := NewClient(config.KafkaConfig{Brokers: "localhost:9092"}, nil)
	require.NoError(t, err)
	require.Error(t, client.Produce(context.Background(), Message{Value: []byte("{}")}))
}

func TestNewGroupReaderValidates(t *testing.T) {
	client, err := NewClient(config.KafkaConfig{Brokers: "localhost:9092"}, nil)
	require.NoError(t, err)

	_, err = client.NewGroupReader("", []string{"a"})
	require.Error(t, err)
	_, err = client.NewGroupReader("group", nil)
	require.Error(t, err)

	reader, err := client.NewGroupReader("group", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "group", reader.Config().GroupID)
	require.NoError(t, reader.Close())
}
