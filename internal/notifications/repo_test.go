package notifications

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/dbtest"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
)

func TestEmitProfileReminderIsFindOrCreate(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewStore(conn), nil)
	require.NoError(t, err)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.Emit(ctx, Message{UserID: userID, Type: enums.NotificationTypeProfileReminder, Text: "Complete your profile"})
	require.NoError(t, err)
	require.NoError(t, svc.MarkRead(ctx, userID, first.ID))

	second, err := svc.Emit(ctx, Message{UserID: userID, Type: enums.NotificationTypeProfileReminder, Text: "Complete your profile"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "a read reminder still suppresses creation")

	var count int64
	require.NoError(t, conn.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestEmitProfileReminderConcurrentCreatesOne(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewStore(conn), nil)
	require.NoError(t, err)
	userID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Emit(context.Background(), Message{UserID: userID, Type: enums.NotificationTypeProfileReminder, Text: "Complete your profile"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var count int64
	require.NoError(t, conn.Model(&models.Notification{}).Where("user_id = ? AND type = ?", userID, enums.NotificationTypeProfileReminder).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestEmitOtherTypesAlwaysInsert(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewStore(conn), nil)
	require.NoError(t, err)
	ctx := context.Background()
	userID := uuid.New()
	orderID := uuid.New()

	for i := 0; i < 2; i++ {
		_, err := svc.Emit(ctx, Message{UserID: userID, OrderID: &orderID, Type: enums.NotificationTypeDelivery, Text: "Your order is on its way"})
		require.NoError(t, err)
	}

	result, err := svc.List(ctx, ListParams{UserID: userID, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	require.Empty(t, result.Cursor)

	updated, err := svc.MarkAllRead(ctx, userID)
	require.NoError(t, err)
	require.EqualValues(t, 2, updated)

	result, err = svc.List(ctx, ListParams{UserID: userID, UnreadOnly: true})
	require.NoError(t, err)
	require.Empty(t, result.Items)
}

func TestStoreReadIsScopedToOwner(t *testing.T) {
	conn := dbtest.Open(t)
	st := NewStore(conn)
	ctx := context.Background()
	owner, stranger := uuid.New(), uuid.New()

	n := &models.Notification{UserID: owner, Type: enums.NotificationTypePayment, Message: "Payment received"}
	require.NoError(t, st.Insert(ctx, n))

	require.ErrorIs(t, st.Read(ctx, stranger, n.ID, time.Now()), errNoSuchNotification)
	require.ErrorIs(t, st.Read(ctx, owner, uuid.New(), time.Now()), errNoSuchNotification)

	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.Read(ctx, owner, n.ID, first))
	require.NoError(t, st.Read(ctx, owner, n.ID, first.Add(time.Hour)), "second read is a no-op")

	var stored models.Notification
	require.NoError(t, conn.First(&stored, "id = ?", n.ID).Error)
	require.NotNil(t, stored.ReadAt)
	require.True(t, stored.ReadAt.Equal(first))
}

func TestStorePagesNewestFirst(t *testing.T) {
	conn := dbtest.Open(t)
	st := NewStore(conn)
	ctx := context.Background()
	user := uuid.New()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, st.Insert(ctx, &models.Notification{
			UserID:    user,
			Type:      enums.NotificationTypeOrderUpdate,
			Message:   "update",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, next, err := st.Page(ctx, pageQuery{user: user, size: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.True(t, page[0].CreatedAt.After(page[1].CreatedAt))
	require.NotNil(t, next)

	rest, next, err := st.Page(ctx, pageQuery{user: user, size: 2, after: next})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Nil(t, next)
	require.True(t, rest[0].CreatedAt.Equal(base))
}
