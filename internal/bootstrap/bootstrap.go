// AngelaMos | 2026
// bootstrap.go

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/angelamos/musicdesk/internal/audit"
	"github.com/angelamos/musicdesk/internal/core"
	"github.com/angelamos/musicdesk/internal/user"
)

var ErrMissingSeed = errors.New("admin email and password are required")

type AdminSeed struct {
	Email    string
	Password string
	FullName string
}

const defaultAdminName = "Administrador"

// EnsureAdmin makes sure seed.Email belongs to an approved admin. The
// account is created with a zero balance if it does not exist yet. It
// reports whether a new account was created. Running it again is a no-op
// apart from re-approving the account.
func EnsureAdmin(ctx context.Context, db *sqlx.DB, seed AdminSeed) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	if email == "" || seed.Password == "" {
		return false, ErrMissingSeed
	}

	name := strings.TrimSpace(seed.FullName)
	if name == "" {
		name = defaultAdminName
	}

	created := false

	err := core.InTx(ctx, db, func(tx *sqlx.Tx) error {
		repo := user.NewRepository(tx)

		account, err := repo.GetByEmail(ctx, email)
		switch {
		case errors.Is(err, core.ErrNotFound):
			hash, hashErr := core.HashPassword(seed.Password)
			if hashErr != nil {
				return fmt.Errorf("hash admin password: %w", hashErr)
			}

			account = &user.User{
				ID:            uuid.New().String(),
				Email:         email,
				PasswordHash:  hash,
				FullName:      name,
				AccountStatus: user.StatusApproved,
				Role:          user.RoleAdmin,
			}
			if err := repo.Create(ctx, account); err != nil {
				return err
			}
			created = true
		case err != nil:
			return err
		}

		if err := repo.GrantRole(ctx, account.ID, user.RoleAdmin); err != nil {
			return err
		}

		if account.AccountStatus != user.StatusApproved {
			if err := repo.SetStatus(ctx, account.ID, user.StatusApproved); err != nil {
				return err
			}
		}

		return audit.Record(ctx, tx, audit.Entry{
			Action:     audit.ActionAdminBootstrapped,
			EntityType: audit.EntityProfile,
			EntityID:   account.ID,
			Details:    map[string]any{"email": email, "created": created},
		})
	})
	if err != nil {
		return false, fmt.Errorf("ensure admin: %w", err)
	}

	slog.Info("admin account ensured", "email", email, "created", created)

	return created, nil
}
