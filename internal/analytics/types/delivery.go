package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox"
)

// Broker attributes set by the outbox publisher.
const (
	AttrEventID       = "event_id"
	AttrEventType     = "event_type"
	AttrAggregateType = "aggregate_type"
	AttrAggregateID   = "aggregate_id"
	AttrCreatedAt     = "created_at"
)

// Delivery is an outbox event as the analytics worker receives it: the stored
// envelope merged with the routing attributes of the broker message.
type Delivery struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OccurredAt    time.Time
	Actor         *outbox.Actor
	Data          json.RawMessage
}

// ParseDelivery decodes a message body and its attributes. The envelope wins
// for event id and time; attributes only fill what it leaves empty.
func ParseDelivery(body []byte, attrs map[string]string) (Delivery, error) {
	var env outbox.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Delivery{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version > outbox.EnvelopeVersion {
		return Delivery{}, fmt.Errorf("envelope version %d is newer than %d", env.Version, outbox.EnvelopeVersion)
	}
	attr := func(key string) string { return strings.TrimSpace(attrs[key]) }

	eventType, err := enums.ParseOutboxEventType(attr(AttrEventType))
	if err != nil {
		return Delivery{}, fmt.Errorf("%s: %w", AttrEventType, err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr(AttrAggregateType))
	if err != nil {
		return Delivery{}, fmt.Errorf("%s: %w", AttrAggregateType, err)
	}

	d := Delivery{
		EventID:       strings.TrimSpace(env.EventID),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   attr(AttrAggregateID),
		OccurredAt:    env.OccurredAt,
		Actor:         env.Actor,
		Data:          env.Data,
	}
	if d.EventID == "" {
		d.EventID = attr(AttrEventID)
	}
	if d.OccurredAt.IsZero() {
		if created, err := time.Parse(time.RFC3339Nano, attr(AttrCreatedAt)); err == nil {
			d.OccurredAt = created
		}
	}
	d.OccurredAt = d.OccurredAt.UTC()

	switch {
	case d.EventID == "":
		return Delivery{}, errors.New("event id missing")
	case d.AggregateID == "":
		return Delivery{}, errors.New("aggregate id missing")
	}
	return d, nil
}
