// AngelaMos | 2026
// repository.go

package notification

import (
	"context"
	"fmt"

	"github.com/angelamos/musicdesk/internal/core"
)

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListForUser(
		ctx context.Context,
		userID string,
		unreadOnly bool,
		limit int,
	) ([]Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, title, description, type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &n.CreatedAt, query,
		n.ID,
		n.UserID,
		n.Title,
		n.Description,
		n.Type,
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	return nil
}

func (r *repository) ListForUser(
	ctx context.Context,
	userID string,
	unreadOnly bool,
	limit int,
) ([]Notification, error) {
	query := `
		SELECT id, user_id, title, description, type, read, created_at
		FROM notifications
		WHERE user_id = $1 AND ($2 = false OR read = false)
		ORDER BY created_at DESC
		LIMIT $3`

	notifications := []Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, userID, unreadOnly, limit); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	return notifications, nil
}

func (r *repository) CountUnread(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = false`

	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}

	return count, nil
}

func (r *repository) MarkRead(ctx context.Context, id, userID string) error {
	query := `
		UPDATE notifications
		SET read = true
		WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}

	return core.RequireRowsAffected(result, "mark notification read", core.ErrNotFound)
}

func (r *repository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE notifications
		SET read = true
		WHERE user_id = $1 AND read = false`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}

	return rows, nil
}
