package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/pagination"
)

const profileReminderIndex = "ux_notifications_profile_reminder"

// Message is a notification to deliver to one user.
type Message struct {
	UserID  uuid.UUID
	OrderID *uuid.UUID
	Type    enums.NotificationType
	Text    string
}

// Emitter creates notifications. Callers invoke it after their transaction commits.
type Emitter interface {
	Emit(ctx context.Context, msg Message) (*models.Notification, error)
	EmitBestEffort(ctx context.Context, msg Message)
}

// Service defines notification emit, list and read operations.
type Service interface {
	Emitter
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// store is the persistence the service needs; *Store satisfies it.
type store interface {
	Insert(ctx context.Context, n *models.Notification) error
	OldestOfType(ctx context.Context, user uuid.UUID, kind enums.NotificationType) (*models.Notification, error)
	Page(ctx context.Context, q pageQuery) ([]models.Notification, *pagination.Cursor, error)
	Read(ctx context.Context, user, id uuid.UUID, at time.Time) error
	ReadAll(ctx context.Context, user uuid.UUID, at time.Time) (int64, error)
}

type service struct {
	store store
	logg  *logger.Logger
	now   func() time.Time
}

// ListParams selects a page of the caller's notifications.
type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

func NewService(st store, logg *logger.Logger) (Service, error) {
	if st == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification store required")
	}
	return &service{store: st, logg: logg, now: time.Now}, nil
}

// Emit stores the notification. A ProfileReminder is created at most once per
// user: an existing reminder, read or unread, is returned instead.
func (s *service) Emit(ctx context.Context, msg Message) (*models.Notification, error) {
	if msg.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !msg.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}
	if strings.TrimSpace(msg.Text) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification message required")
	}

	singleton := msg.Type.IsSingleton()
	if singleton {
		if prior, err := s.store.OldestOfType(ctx, msg.UserID, msg.Type); err != nil || prior != nil {
			return prior, s.failed(err, "lookup notification")
		}
	}

	row := &models.Notification{UserID: msg.UserID, OrderID: msg.OrderID, Type: msg.Type, Message: msg.Text}
	err := s.store.Insert(ctx, row)
	if err == nil {
		return row, nil
	}
	// Lost the race against a concurrent reminder insert.
	if singleton && db.IsUniqueViolation(err, profileReminderIndex) {
		if winner, findErr := s.store.OldestOfType(ctx, msg.UserID, msg.Type); findErr == nil && winner != nil {
			return winner, nil
		}
	}
	return nil, s.failed(err, "create notification")
}

func (s *service) failed(err error, action string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeNotificationFailure, err, action)
}

// EmitBestEffort logs and swallows failures so a committed business
// transition never reports an error because of a notification.
func (s *service) EmitBestEffort(ctx context.Context, msg Message) {
	if _, err := s.Emit(ctx, msg); err != nil && s.logg != nil {
		fields := map[string]any{
			"user_id":           msg.UserID.String(),
			"notification_type": string(msg.Type),
		}
		if msg.OrderID != nil {
			fields["order_id"] = msg.OrderID.String()
		}
		s.logg.Warn(s.logg.WithFields(ctx, fields), "notification emit failed: "+err.Error())
	}
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	q := pageQuery{user: params.UserID, size: params.Limit, unreadOnly: params.UnreadOnly}
	if params.Cursor != "" {
		after, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		q.after = after
	}

	items, next, err := s.store.Page(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	out := &ListResult{Items: items}
	if out.Items == nil {
		out.Items = []models.Notification{}
	}
	if next != nil {
		out.Cursor = next.Encode()
	}
	return out, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	switch {
	case userID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	case notificationID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	err := s.store.Read(ctx, userID, notificationID, s.now().UTC())
	switch {
	case errors.Is(err, errNoSuchNotification):
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	n, err := s.store.ReadAll(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return n, nil
}
