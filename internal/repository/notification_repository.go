package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cfp-accounts/internal/model"
)

// NotificationRepo is the notification sink backed by the `notifications`
// table.
type NotificationRepo struct{ DB *sql.DB }

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{DB: db} }

// Create inserts a notification.  A nil AccountID stores an admin broadcast.
func (r *NotificationRepo) Create(ctx context.Context, n model.NewNotification, now time.Time) (model.Notification, error) {
	now = now.UTC()
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO notifications (account_id, message, kind, link, icon, is_read, created_at) VALUES (?,?,?,?,?,0,?)",
		n.AccountID, n.Message, string(n.Kind), n.Link, n.Icon, now)
	if err != nil {
		return model.Notification{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Notification{}, err
	}
	return model.Notification{
		ID:        uint64(id),
		AccountID: n.AccountID,
		Message:   n.Message,
		Kind:      n.Kind,
		Link:      n.Link,
		Icon:      n.Icon,
		CreatedAt: now,
	}, nil
}

// ListFor returns the newest notifications addressed to accountID.  When
// withBroadcast is set, admin broadcasts are included.
func (r *NotificationRepo) ListFor(ctx context.Context, accountID uint64, withBroadcast bool, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := "SELECT id, account_id, message, kind, link, icon, is_read, created_at FROM notifications WHERE account_id=?"
	if withBroadcast {
		q += " OR account_id IS NULL"
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ?"

	rows, err := r.DB.QueryContext(ctx, q, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Notification{}
	for rows.Next() {
		var (
			n    model.Notification
			acc  sql.NullInt64
			kind string
		)
		if err := rows.Scan(&n.ID, &acc, &n.Message, &kind, &n.Link, &n.Icon, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		if acc.Valid {
			v := uint64(acc.Int64)
			n.AccountID = &v
		}
		n.Kind = model.NotificationKind(kind)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags a notification as read.  The notification must belong to
// accountID, or be a broadcast when withBroadcast is set.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, accountID uint64, withBroadcast bool) error {
	q := "UPDATE notifications SET is_read=1 WHERE id=? AND (account_id=?"
	if withBroadcast {
		q += " OR account_id IS NULL"
	}
	q += ")"
	res, err := r.DB.ExecContext(ctx, q, id, accountID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
