package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/dbtest"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
)

func orderEvent(orderID uuid.UUID, data any) Event {
	return Event{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data:          data,
	}
}

func TestEmitStoresVersionedEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	writer := NewWriter(repo, nil)
	fixed := time.Date(2026, 1, 5, 9, 30, 0, 0, time.FixedZone("WIB", 7*3600))
	writer.now = func() time.Time { return fixed }

	orderID := uuid.New()
	buyer := &Actor{UserID: uuid.New(), Role: string(enums.UserRoleCustomer)}
	event := orderEvent(orderID, map[string]any{"order_id": orderID})
	event.Actor = buyer
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return writer.Emit(context.Background(), tx, event)
	}))

	rows, err := repo.ListByAggregate(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, enums.EventOrderCreated, rows[0].EventType)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, EnvelopeVersion, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.True(t, fixed.Equal(envelope.OccurredAt))
	require.Equal(t, time.UTC, envelope.OccurredAt.Location())
	require.Equal(t, buyer, envelope.Actor)
	require.JSONEq(t, `{"order_id":"`+orderID.String()+`"}`, string(envelope.Data))
}

func TestEmitValidatesEvent(t *testing.T) {
	conn := dbtest.Open(t)
	writer := NewWriter(NewRepository(conn), nil)
	ctx := context.Background()

	require.Error(t, writer.Emit(ctx, nil, orderEvent(uuid.New(), nil)))
	require.ErrorContains(t, writer.Emit(ctx, conn, orderEvent(uuid.Nil, nil)), "aggregate id")

	bad := orderEvent(uuid.New(), nil)
	bad.EventType = "order_shipped"
	require.ErrorContains(t, writer.Emit(ctx, conn, bad), "unknown outbox event type")

	unencodable := orderEvent(uuid.New(), map[string]any{"ch": make(chan int)})
	require.ErrorContains(t, writer.Emit(ctx, conn, unencodable), "encode order_created payload")
}

func TestEmitRollsBackWithCaller(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	writer := NewWriter(repo, nil)
	orderID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := writer.Emit(context.Background(), tx, orderEvent(orderID, struct{}{})); err != nil {
			return err
		}
		return errors.New("stock debit failed")
	})
	require.Error(t, err)

	rows, err := repo.ListByAggregate(context.Background(), orderID)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestRepositoryDeliveryLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	fresh := models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	tired := models.OutboxEvent{EventType: enums.EventPaymentSucceeded, AggregateType: enums.AggregatePayment, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), AttemptCount: 3}
	require.NoError(t, repo.Insert(conn, fresh))
	require.NoError(t, repo.Insert(conn, tired))

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.ClaimBatch(tx, 10, 3)
		require.NoError(t, err)
		require.Len(t, rows, 1, "rows at the attempt cap are not claimed")
		return repo.MarkPublished(tx, rows[0].ID)
	}))

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.ClaimBatch(tx, 10, 0)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		return repo.MarkRetry(tx, rows[0].ID, errors.New("broker down"))
	}))

	var retried models.OutboxEvent
	require.NoError(t, conn.Where("aggregate_id = ?", tired.AggregateID).Take(&retried).Error)
	require.Equal(t, 4, retried.AttemptCount)
	require.Equal(t, "broker down", *retried.LastError)
	require.Nil(t, retried.PublishedAt)

	require.NoError(t, repo.MarkDead(conn, retried.ID, errors.New("gave up")))
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.ClaimBatch(tx, 10, 0)
		require.NoError(t, err)
		require.Empty(t, rows, "dead rows are never claimed again")
		return nil
	}))

	require.ErrorIs(t, repo.MarkPublished(conn, uuid.New()), gorm.ErrRecordNotFound)

	purge := func(limit int) int64 {
		var deleted int64
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			var err error
			deleted, err = repo.PurgePublished(ctx, tx, time.Now().UTC().Add(time.Hour), limit)
			return err
		}))
		return deleted
	}
	require.EqualValues(t, 1, purge(1))
	require.EqualValues(t, 1, purge(10))
	require.EqualValues(t, 0, purge(10))
}

func TestDeadLettersBuryAndQuery(t *testing.T) {
	conn := dbtest.Open(t)
	letters := NewDeadLetters(conn)
	ctx := context.Background()

	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPaymentConflict,
		AggregateType: enums.AggregatePayment,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		AttemptCount:  9,
	}
	cause := errors.New(strings.Repeat("é", maxErrorBytes))
	require.NoError(t, letters.Bury(conn, event, enums.OutboxDLQReasonMaxAttempts, cause, time.Now()))
	require.Error(t, letters.Bury(conn, event, "", cause, time.Now()))
	shipped := event
	shipped.PublishedAt = new(time.Time)
	require.Error(t, letters.Bury(conn, shipped, enums.OutboxDLQReasonMalformed, cause, time.Now()))

	row, err := letters.Find(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, 9, row.AttemptCount)
	require.JSONEq(t, `{"version":1}`, string(row.Payload))
	require.LessOrEqual(t, len(*row.ErrorMessage), maxErrorBytes)
	require.True(t, strings.HasPrefix(cause.Error(), *row.ErrorMessage))

	missing, err := letters.Find(ctx, uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)

	recent, err := letters.Recent(ctx, enums.OutboxDLQReasonMaxAttempts, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	none, err := letters.Recent(ctx, enums.OutboxDLQReasonMalformed, 10)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestClipErrorKeepsRunesWhole(t *testing.T) {
	require.Equal(t, "short", clipError("short"))
	clipped := clipError(strings.Repeat("é", maxErrorBytes))
	require.Len(t, clipped, maxErrorBytes)
	require.Equal(t, strings.Repeat("é", maxErrorBytes/2), clipped)
}
