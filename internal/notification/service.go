// AngelaMos | 2026
// service.go

package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/angelamos/musicdesk/internal/metrics"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Notify stores an in-app notification. It never fails the caller: the
// mutation that triggered it has already committed, so a lost message is
// logged and counted instead.
func (s *Service) Notify(ctx context.Context, n Notice) {
	if n.UserID == "" {
		return
	}

	entity := &Notification{
		ID:          uuid.New().String(),
		UserID:      n.UserID,
		Title:       n.Title,
		Description: n.Description,
		Type:        n.Type,
	}

	if err := s.repo.Create(context.WithoutCancel(ctx), entity); err != nil {
		metrics.RecordNotificationFailure()
		s.logger.Warn("notification not stored",
			"error", err,
			"user_id", n.UserID,
			"type", n.Type,
		)
	}
}

func (s *Service) List(
	ctx context.Context,
	userID string,
	unreadOnly bool,
	limit int,
) ([]Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	return s.repo.ListForUser(ctx, userID, unreadOnly, limit)
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
