package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/metrics"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxErrorBackoff    = 10 * time.Second
	pollJitter         = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

// transport delivers one message and reports broker readiness.
type transport interface {
	Name() string
	Ping(context.Context) error
	Publish(context.Context, outboundMessage) error
}

type outboundMessage struct {
	Topic      string
	Key        string
	Data       []byte
	Attributes map[string]string
}

type outboxStore interface {
	ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID) error
	MarkRetry(tx *gorm.DB, id uuid.UUID, cause error) error
	MarkDead(tx *gorm.DB, id uuid.UUID, cause error) error
}

type deadLetterStore interface {
	Bury(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, at time.Time) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Outbox      config.OutboxConfig
	Logger      *logger.Logger
	DB          dbClient
	Transport   transport
	Repository  outboxStore
	Registry    resolver
	DeadLetters deadLetterStore
	Metrics     *metrics.OutboxMetrics
}

// Service drains outbox_events to the broker. Each batch is claimed, sent and
// marked inside one transaction; a crash before commit only means the batch
// is sent again, which consumers absorb through their dedupe guard.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	repo        outboxStore
	transport   transport
	registry    resolver
	dead        deadLetterStore
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Transport == nil:
		return nil, errors.New("event transport is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DeadLetters == nil:
		return nil, errors.New("dead letter store is required")
	}

	s := &Service{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		transport:   params.Transport,
		registry:    params.Registry,
		dead:        params.DeadLetters,
		metrics:     params.Metrics,
		batchSize:   params.Outbox.BatchSize,
		maxAttempts: params.Outbox.MaxAttempts,
		poll:        time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond,
		now:         time.Now,
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.poll <= 0 {
		s.poll = defaultPoll
	}
	return s, nil
}

// Run publishes until ctx ends. Full batches are followed immediately by the
// next one; an empty table is polled every FIVESCENT_OUTBOX_PUBLISH_POLL_MS
// and batch errors back off exponentially up to maxErrorBackoff.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database":         s.db.Ping,
		s.transport.Name(): s.transport.Ping,
	} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	backoff := s.errorBackoff()
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return err
		}

		busy, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			wait, _ = backoff.Next()
		case busy:
			backoff = s.errorBackoff()
			continue
		default:
			backoff = s.errorBackoff()
			wait = s.poll
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (s *Service) errorBackoff() retry.Backoff {
	return retry.WithJitter(pollJitter, retry.WithCappedDuration(maxErrorBackoff, retry.NewExponential(s.poll)))
}

// processBatch handles one claimed batch and reports whether it was full,
// i.e. whether more rows are probably waiting.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	start := time.Now()
	var claimed int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.ClaimBatch(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		claimed = len(events)
		for _, event := range events {
			if err := s.deliver(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if claimed > 0 {
		s.metrics.ObserveBatch(time.Since(start))
	}
	return claimed > 0 && claimed >= s.batchSize, err
}

// deliver sends one row and records the result. Only bookkeeping failures
// are returned; they abort the batch transaction.
func (s *Service) deliver(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"outbox_id":  event.ID.String(),
		"event_type": event.EventType,
		"subject":    event.Subject(),
		"attempt":    event.AttemptCount + 1,
	})

	resolved, err := s.registry.Resolve(event)
	if err == nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"event_id": resolved.Envelope.EventID,
			"topic":    resolved.Descriptor.Topic,
		})
		err = s.send(ctx, event, resolved)
	}

	if err == nil {
		if markErr := s.repo.MarkPublished(tx, event.ID); markErr != nil {
			return fmt.Errorf("mark %s published: %w", event.ID, markErr)
		}
		s.metrics.IncPublished(string(event.EventType))
		s.logg.Debug(ctx, "outbox event published")
		return nil
	}
	if perm, ok := registry.AsPermanent(err); ok {
		return s.bury(ctx, tx, event, perm.Reason, err)
	}
	if event.AttemptCount+1 >= s.maxAttempts {
		return s.bury(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", event.AttemptCount+1, err))
	}

	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox publish failed, will retry")
	if markErr := s.repo.MarkRetry(tx, event.ID, err); markErr != nil {
		return fmt.Errorf("mark %s for retry: %w", event.ID, markErr)
	}
	s.metrics.IncRetried(string(event.EventType))
	return nil
}

func (s *Service) send(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	sendCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return s.transport.Publish(sendCtx, outboundMessage{
		Topic: resolved.Descriptor.Topic,
		Key:   event.AggregateID.String(),
		Data:  event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	})
}

// bury copies the row to outbox_dlq and closes it in the same transaction.
func (s *Service) bury(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"dlq_reason": reason,
		"error":      cause.Error(),
	}), "outbox event moved to dead letters")

	if err := s.dead.Bury(tx, event, reason, cause, s.now()); err != nil {
		return fmt.Errorf("bury %s: %w", event.ID, err)
	}
	if err := s.repo.MarkDead(tx, event.ID, cause); err != nil {
		return fmt.Errorf("mark %s dead: %w", event.ID, err)
	}
	s.metrics.IncDeadLetter(string(event.EventType), string(reason))
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
