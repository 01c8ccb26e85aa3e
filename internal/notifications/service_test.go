package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/pagination"
)

// memStore keeps the rows a test cares about and fails on demand.
type memStore struct {
	err      error
	rows     []models.Notification
	lastPage pageQuery
	readAt   time.Time
	next     *pagination.Cursor
}

func (m *memStore) Insert(_ context.Context, n *models.Notification) error {
	if m.err != nil {
		return m.err
	}
	n.ID = uuid.New()
	m.rows = append(m.rows, *n)
	return nil
}

func (m *memStore) OldestOfType(_ context.Context, user uuid.UUID, kind enums.NotificationType) (*models.Notification, error) {
	for i := range m.rows {
		if m.rows[i].UserID == user && m.rows[i].Type == kind {
			return &m.rows[i], nil
		}
	}
	return nil, nil
}

func (m *memStore) Page(_ context.Context, q pageQuery) ([]models.Notification, *pagination.Cursor, error) {
	m.lastPage = q
	return m.rows, m.next, m.err
}

func (m *memStore) Read(_ context.Context, user, id uuid.UUID, at time.Time) error {
	if m.err != nil {
		return m.err
	}
	for i := range m.rows {
		if m.rows[i].ID == id && m.rows[i].UserID == user {
			m.readAt = at
			return nil
		}
	}
	return errNoSuchNotification
}

func (m *memStore) ReadAll(_ context.Context, user uuid.UUID, at time.Time) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.readAt = at
	return int64(len(m.rows)), nil
}

func newTestService(t *testing.T, st *memStore) Service {
	t.Helper()
	svc, err := NewService(st, nil)
	require.NoError(t, err)
	return svc
}

func TestListPassesCursorAndEncodesNext(t *testing.T) {
	after := pagination.Cursor{CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), ID: uuid.New()}
	next := pagination.Cursor{CreatedAt: after.CreatedAt.Add(-time.Minute), ID: uuid.New()}
	st := &memStore{next: &next}
	svc := newTestService(t, st)

	out, err := svc.List(context.Background(), ListParams{UserID: uuid.New(), Limit: 5, Cursor: after.Encode(), UnreadOnly: true})
	require.NoError(t, err)
	require.NotNil(t, out.Items, "empty pages serialize as []")
	require.Equal(t, 5, st.lastPage.size)
	require.True(t, st.lastPage.unreadOnly)
	require.NotNil(t, st.lastPage.after)
	require.Equal(t, after.ID, st.lastPage.after.ID)

	decoded, err := pagination.ParseCursor(out.Cursor)
	require.NoError(t, err)
	require.Equal(t, next.ID, decoded.ID)
}

func TestListRejectsBadInput(t *testing.T) {
	svc := newTestService(t, &memStore{})
	_, err := svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "%%%"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = svc.List(context.Background(), ListParams{})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestMarkReadMapsStoreOutcomes(t *testing.T) {
	user := uuid.New()
	st := &memStore{rows: []models.Notification{{ID: uuid.New(), UserID: user}}}
	svc := newTestService(t, st)
	frozen := time.Date(2026, 4, 1, 12, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	svc.(*service).now = func() time.Time { return frozen }

	require.NoError(t, svc.MarkRead(context.Background(), user, st.rows[0].ID))
	require.Equal(t, time.UTC, st.readAt.Location())
	require.True(t, st.readAt.Equal(frozen))

	err := svc.MarkRead(context.Background(), uuid.New(), st.rows[0].ID)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	st.err = errors.New("db down")
	err = svc.MarkRead(context.Background(), user, st.rows[0].ID)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))
}

func TestMarkAllRead(t *testing.T) {
	st := &memStore{rows: make([]models.Notification, 3)}
	svc := newTestService(t, st)

	n, err := svc.MarkAllRead(context.Background(), uuid.New())
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	st.err = errors.New("db down")
	_, err = svc.MarkAllRead(context.Background(), uuid.New())
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))
}

func TestEmitSingletonReturnsExisting(t *testing.T) {
	st := &memStore{}
	svc := newTestService(t, st)
	msg := Message{UserID: uuid.New(), Type: enums.NotificationTypeProfileReminder, Text: "Complete your profile"}

	first, err := svc.Emit(context.Background(), msg)
	require.NoError(t, err)
	second, err := svc.Emit(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, st.rows, 1)
}

func TestEmitFailuresAreTypedAndBestEffortSwallows(t *testing.T) {
	svc := newTestService(t, &memStore{err: errors.New("db down")})
	msg := Message{UserID: uuid.New(), Type: enums.NotificationTypePayment, Text: "paid"}

	_, err := svc.Emit(context.Background(), msg)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotificationFailure))
	require.NotPanics(t, func() { svc.EmitBestEffort(context.Background(), msg) })
}

func TestEmitValidates(t *testing.T) {
	svc := newTestService(t, &memStore{})
	for name, msg := range map[string]Message{
		"no user":    {Type: enums.NotificationTypePayment, Text: "x"},
		"bad type":   {UserID: uuid.New(), Type: "Promo", Text: "x"},
		"blank text": {UserID: uuid.New(), Type: enums.NotificationTypePayment, Text: "  "},
	} {
		_, err := svc.Emit(context.Background(), msg)
		require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), name)
	}
}
