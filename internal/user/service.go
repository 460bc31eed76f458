// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/angelamos/musicdesk/internal/audit"
	"github.com/angelamos/musicdesk/internal/auth"
	"github.com/angelamos/musicdesk/internal/core"
	"github.com/angelamos/musicdesk/internal/notification"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSelfDemotion      = errors.New("admins cannot revoke their own admin role")
)

type Notifier interface {
	Notify(ctx context.Context, n notification.Notice)
}

type Service struct {
	db       *sqlx.DB
	repo     Repository
	notifier Notifier
	logger   *slog.Logger
}

func NewService(
	db *sqlx.DB,
	repo Repository,
	notifier Notifier,
	logger *slog.Logger,
) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

// Create registers a self-service account. New accounts start pending
// with a zero balance and the user role.
func (s *Service) Create(
	ctx context.Context,
	in auth.NewUser,
) (*auth.UserInfo, error) {
	user := &User{
		ID:            uuid.New().String(),
		Email:         normalizeEmail(in.Email),
		PasswordHash:  in.PasswordHash,
		FullName:      strings.TrimSpace(in.FullName),
		Phone:         strings.TrimSpace(in.Phone),
		AccountStatus: StatusPending,
		Role:          RoleUser,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) IncrementTokenVersion(
	ctx context.Context,
	userID string,
) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateUser(
	ctx context.Context,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

// ListPending is the approvals queue: pending accounts, newest first.
func (s *Service) ListPending(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Status = StatusPending
	return s.repo.List(ctx, params)
}

func (s *Service) Approve(ctx context.Context, actorID, userID string) (*User, error) {
	return s.ChangeStatus(ctx, actorID, userID, StatusApproved)
}

func (s *Service) Reject(ctx context.Context, actorID, userID string) (*User, error) {
	return s.ChangeStatus(ctx, actorID, userID, StatusRejected)
}

func (s *Service) Suspend(ctx context.Context, actorID, userID string) (*User, error) {
	return s.ChangeStatus(ctx, actorID, userID, StatusSuspended)
}

// Reactivate lifts a suspension.
func (s *Service) Reactivate(ctx context.Context, actorID, userID string) (*User, error) {
	return s.ChangeStatus(ctx, actorID, userID, StatusApproved)
}

// ChangeStatus moves an account along the allowed transitions. The status
// write, token version bump and audit entry commit together; the user is
// notified afterwards.
func (s *Service) ChangeStatus(
	ctx context.Context,
	actorID, userID, to string,
) (*User, error) {
	ctx, span := core.StartSpan(ctx, "user.ChangeStatus")
	var err error
	defer func() { core.EndSpan(span, err) }()

	var updated *User
	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := NewRepository(tx)

		u, err := repo.GetByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		from := u.AccountStatus
		if !CanTransition(from, to) {
			return fmt.Errorf(
				"change status %s -> %s: %w", from, to, ErrInvalidTransition,
			)
		}

		if err := repo.SetStatus(ctx, userID, to); err != nil {
			return err
		}

		if err := audit.Record(ctx, tx, audit.Entry{
			ActorID:    actorID,
			Action:     audit.ActionUserStatusChanged,
			EntityType: audit.EntityProfile,
			EntityID:   userID,
			Details: map[string]any{
				"from":  from,
				"to":    to,
				"email": u.Email,
			},
		}); err != nil {
			return err
		}

		u.AccountStatus = to
		u.TokenVersion++
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	if notice, ok := statusNotices[to]; ok {
		s.notifier.Notify(ctx, notification.Notice{
			UserID:      userID,
			Title:       notice.title,
			Description: notice.description,
			Type:        notification.TypeAccountStatus,
		})
	}

	s.logger.Info("account status changed",
		"user_id", userID,
		"actor_id", actorID,
		"status", to,
	)

	return updated, nil
}

// UpdateUserRole grants or revokes the admin role.
func (s *Service) UpdateUserRole(
	ctx context.Context,
	actorID, id, role string,
) (*User, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, fmt.Errorf(
			"update role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	if actorID == id && role != RoleAdmin {
		return nil, fmt.Errorf("update role: %w", ErrSelfDemotion)
	}

	var updated *User
	err := core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := NewRepository(tx)

		u, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if u.Role == role {
			updated = u
			return nil
		}

		if role == RoleAdmin {
			err = repo.GrantRole(ctx, id, RoleAdmin)
		} else {
			err = repo.RevokeRole(ctx, id, RoleAdmin)
		}
		if err != nil {
			return err
		}

		if err := repo.IncrementTokenVersion(ctx, id); err != nil {
			return err
		}

		if err := audit.Record(ctx, tx, audit.Entry{
			ActorID:    actorID,
			Action:     audit.ActionUserRoleChanged,
			EntityType: audit.EntityProfile,
			EntityID:   id,
			Details:    map[string]any{"from": u.Role, "to": role},
		}); err != nil {
			return err
		}

		u.Role = role
		u.TokenVersion++
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateUserRequest,
) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	return s.UpdateUser(ctx, userID, req)
}

// CanDeleteUser allows admins to remove non-admin accounts.
func (s *Service) CanDeleteUser(
	ctx context.Context,
	requesterID, targetID string,
) error {
	requester, err := s.repo.GetByID(ctx, requesterID)
	if err != nil {
		return err
	}

	if !requester.IsAdmin() {
		return fmt.Errorf("delete user: %w", core.ErrForbidden)
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if target.IsAdmin() {
		return fmt.Errorf("cannot delete admin users: %w", core.ErrForbidden)
	}

	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:            u.ID,
		Email:         u.Email,
		FullName:      u.FullName,
		Phone:         u.Phone,
		PasswordHash:  u.PasswordHash,
		Role:          u.Role,
		AccountStatus: u.AccountStatus,
		TokenVersion:  u.TokenVersion,
		CreatedAt:     u.CreatedAt,
	}
}

var _ auth.UserProvider = (*Service)(nil)
