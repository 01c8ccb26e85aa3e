package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/pagination"
)

// Store is the gorm-backed notification table.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// pageQuery selects one page of a user's inbox, newest first.
type pageQuery struct {
	user       uuid.UUID
	size       int
	after      *pagination.Cursor
	unreadOnly bool
}

func (s *Store) inbox(ctx context.Context, user uuid.UUID) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", user)
}

func (s *Store) Insert(ctx context.Context, n *models.Notification) error {
	return s.db.WithContext(ctx).Create(n).Error
}

// OldestOfType returns nil without error when the user has none.
func (s *Store) OldestOfType(ctx context.Context, user uuid.UUID, kind enums.NotificationType) (*models.Notification, error) {
	var found []models.Notification
	if err := s.inbox(ctx, user).Where("type = ?", kind).Order("created_at").Limit(1).Find(&found).Error; err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (s *Store) Page(ctx context.Context, q pageQuery) ([]models.Notification, *pagination.Cursor, error) {
	scope := s.inbox(ctx, q.user)
	if q.unreadOnly {
		scope = scope.Where("read_at IS NULL")
	}
	if q.after != nil {
		scope = scope.Where("(created_at, id) < (?, ?)", q.after.CreatedAt, q.after.ID)
	}
	var rows []models.Notification
	if err := scope.Order("created_at DESC").Order("id DESC").Limit(pagination.LimitWithBuffer(q.size)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	items, next := pagination.Page(rows, q.size, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return items, next, nil
}

var errNoSuchNotification = errors.New("notification does not belong to user")

// Read stamps read_at once. Re-reading an already read notification is a
// no-op; a missing or foreign id yields errNoSuchNotification.
func (s *Store) Read(ctx context.Context, user, id uuid.UUID, at time.Time) error {
	var row models.Notification
	err := s.inbox(ctx, user).Select("id", "read_at").Where("id = ?", id).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errNoSuchNotification
	case err != nil:
		return err
	case row.ReadAt != nil:
		return nil
	}
	return s.inbox(ctx, user).Where("id = ? AND read_at IS NULL", id).UpdateColumn("read_at", at).Error
}

// ReadAll returns how many unread notifications were stamped.
func (s *Store) ReadAll(ctx context.Context, user uuid.UUID, at time.Time) (int64, error) {
	res := s.inbox(ctx, user).Where("read_at IS NULL").UpdateColumn("read_at", at)
	return res.RowsAffected, res.Error
}
