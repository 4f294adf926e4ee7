package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrUnknownMessage is returned when a notification message id has no
// recorded sender. Callers fall back to parsing the notification text.
var ErrUnknownMessage = errors.New("store: unknown notification message")

type notification struct {
	MessageID int64     `db:"message_id"`
	UserID    int64     `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

// NotificationRepository maps admin notification message ids back to the
// users whose messages produced them.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository binds the repository to a database handle.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const recordNotificationQuery = `
INSERT INTO relay_notifications (message_id, user_id, created_at)
VALUES (:message_id, :user_id, :created_at)
ON CONFLICT (message_id) DO UPDATE SET
    user_id = excluded.user_id,
    created_at = excluded.created_at`

// Record remembers which user a delivered notification message belongs to.
func (r *NotificationRepository) Record(ctx context.Context, messageID, userID int64) error {
	_, err := r.db.NamedExecContext(ctx, recordNotificationQuery, notification{
		MessageID: messageID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	})
	return wrap("record notification", err)
}

// SenderOf resolves the originating user of a notification message.
func (r *NotificationRepository) SenderOf(ctx context.Context, messageID int64) (int64, error) {
	var userID int64
	err := r.db.GetContext(ctx, &userID,
		r.db.Rebind("SELECT user_id FROM relay_notifications WHERE message_id = ?"), messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUnknownMessage
	}
	return userID, wrap("lookup notification", err)
}
