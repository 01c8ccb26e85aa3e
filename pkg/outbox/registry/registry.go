// Package registry routes outbox rows to broker topics and checks that each
// row decodes into the payload its event type promises before it leaves.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox/payloads"
)

// Topics names the two broker destinations. Order and POS events share the
// orders topic; every payment event goes to the payments topic.
type Topics struct {
	Orders   string
	Payments string
}

// TopicsFromConfig picks the names for the configured transport.
func TopicsFromConfig(cfg config.Config) Topics {
	if cfg.Eventing.UsesKafka() {
		return Topics{Orders: cfg.Kafka.OrdersTopic, Payments: cfg.Kafka.PaymentsTopic}
	}
	return Topics{Orders: cfg.PubSub.OrdersTopic, Payments: cfg.PubSub.PaymentsTopic}
}

// EventDescriptor binds an event type to its aggregate, topic and payload.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

func route[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(raw json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// ResolvedEvent is a row that passed every check and is ready to send.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.Envelope
	Payload    any
}

// PermanentError marks a row that can never be published as stored. Reason
// is recorded on its dead letter.
type PermanentError struct {
	Reason enums.OutboxDLQErrorReason
	Err    error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the publisher stops retrying.
func Permanent(reason enums.OutboxDLQErrorReason, err error) error {
	return &PermanentError{Reason: reason, Err: err}
}

// AsPermanent unwraps a PermanentError from err.
func AsPermanent(err error) (*PermanentError, bool) {
	var perm *PermanentError
	ok := errors.As(err, &perm)
	return perm, ok
}

// EventRegistry holds one descriptor per published event type.
type EventRegistry struct {
	routes map[enums.OutboxEventType]EventDescriptor
}

func NewEventRegistry(topics Topics) (*EventRegistry, error) {
	if topics.Orders == "" || topics.Payments == "" {
		return nil, fmt.Errorf("orders and payments topics are required, got %+v", topics)
	}
	reg := &EventRegistry{routes: map[enums.OutboxEventType]EventDescriptor{}}
	for _, d := range []EventDescriptor{
		route[payloads.OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateOrder, topics.Orders),
		route[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrder, topics.Orders),
		route[payloads.POSSaleRecordedEvent](enums.EventPOSSaleRecorded, enums.AggregatePOSSale, topics.Orders),
		route[payloads.PaymentStatusEvent](enums.EventPaymentSucceeded, enums.AggregatePayment, topics.Payments),
		route[payloads.PaymentStatusEvent](enums.EventPaymentFailed, enums.AggregatePayment, topics.Payments),
		route[payloads.PaymentStatusEvent](enums.EventPaymentRefunded, enums.AggregatePayment, topics.Payments),
		route[payloads.PaymentConflictEvent](enums.EventPaymentConflict, enums.AggregatePayment, topics.Payments),
	} {
		reg.routes[d.EventType] = d
	}
	return reg, nil
}

func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	d, ok := r.routes[eventType]
	return d, ok
}

// Resolve checks event against its descriptor and decodes the payload. Any
// failure is a PermanentError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	d, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, Permanent(enums.OutboxDLQReasonUnroutable, fmt.Errorf("no route for event type %q", event.EventType))
	case d.Topic == "":
		return nil, Permanent(enums.OutboxDLQReasonUnroutable, fmt.Errorf("no topic for event type %q", event.EventType))
	case d.AggregateType != event.AggregateType:
		return nil, Permanent(enums.OutboxDLQReasonUnroutable,
			fmt.Errorf("%s belongs to %s aggregates, row has %s", event.EventType, d.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, Permanent(enums.OutboxDLQReasonMalformed, errors.New("aggregate_id is empty"))
	}

	var envelope outbox.Envelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, Permanent(enums.OutboxDLQReasonMalformed, fmt.Errorf("decode envelope: %w", err))
	}
	if envelope.Version < 1 || envelope.Version > outbox.EnvelopeVersion {
		return nil, Permanent(enums.OutboxDLQReasonMalformed, fmt.Errorf("unsupported envelope version %d", envelope.Version))
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, Permanent(enums.OutboxDLQReasonMalformed, fmt.Errorf("%s envelope has no data", event.EventType))
	}
	payload, err := d.decode(data)
	if err != nil {
		return nil, Permanent(enums.OutboxDLQReasonMalformed, fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: d, Envelope: envelope, Payload: payload}, nil
}
