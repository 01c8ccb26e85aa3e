package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/all-if-r/5SCENT-WEB-sub001/internal/analytics/router"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/analytics/types"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
)

// ConsumerName scopes dedupe claims for this worker.
const ConsumerName = "sales-analytics"

// Message is a broker delivery with the attributes the outbox publisher set.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Source delivers messages to fn until ctx ends. A nil return from fn
// acknowledges the message; an error asks for redelivery.
type Source interface {
	Receive(ctx context.Context, fn func(ctx context.Context, msg Message) error) error
}

// Handler records one delivery.
type Handler interface {
	Handle(ctx context.Context, delivery types.Delivery) error
}

type deduper interface {
	Claim(ctx context.Context, eventID uuid.UUID) (bool, error)
	Forget(ctx context.Context, eventID uuid.UUID) error
}

// Service consumes outbox events and records them as sales rows, skipping
// event ids already processed.
type Service struct {
	source  Source
	handler Handler
	dedupe  deduper
	logg    *logger.Logger
}

func NewService(source Source, handler Handler, dedupe deduper, logg *logger.Logger) (*Service, error) {
	if source == nil {
		return nil, errors.New("analytics source is required")
	}
	if handler == nil {
		return nil, errors.New("analytics handler is required")
	}
	if dedupe == nil {
		return nil, errors.New("dedupe guard is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{source: source, handler: handler, dedupe: dedupe, logg: logg}, nil
}

// Run consumes until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.source.Receive(ctx, s.process)
}

func (s *Service) process(ctx context.Context, msg Message) error {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	delivery, err := types.ParseDelivery(msg.Data, msg.Attributes)
	if err != nil {
		// Redelivery cannot repair a malformed message; ack it.
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "invalid analytics delivery")
		return nil
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":       delivery.EventID,
		"event_type":     delivery.EventType,
		"aggregate_type": delivery.AggregateType,
		"aggregate_id":   delivery.AggregateID,
	})

	eventID, err := uuid.Parse(delivery.EventID)
	if err != nil {
		s.logg.Warn(ctx, "event id is not a uuid")
		return nil
	}

	claimed, err := s.dedupe.Claim(ctx, eventID)
	if err != nil {
		s.logg.Error(ctx, "dedupe claim failed", err)
		return fmt.Errorf("dedupe claim: %w", err)
	}
	if !claimed {
		s.logg.Debug(ctx, "event already processed")
		return nil
	}

	err = s.handler.Handle(ctx, delivery)
	switch {
	case err == nil:
		s.logg.Info(ctx, "analytics event recorded")
		return nil
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Debug(ctx, "event not recorded as a sale")
		return nil
	}

	s.logg.Error(ctx, "analytics handler failed", err)
	if forgetErr := s.dedupe.Forget(context.WithoutCancel(ctx), eventID); forgetErr != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", forgetErr.Error()), "failed to clear dedupe claim")
	}
	return err
}
