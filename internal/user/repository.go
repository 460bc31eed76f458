// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/angelamos/musicdesk/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByIDForUpdate(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	IncrementTokenVersion(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id, status string) error
	GrantRole(ctx context.Context, id, role string) error
	RevokeRole(ctx context.Context, id, role string) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const roleColumn = `CASE WHEN EXISTS (
		SELECT 1 FROM user_roles r WHERE r.user_id = u.id AND r.role = 'admin'
	) THEN 'admin' ELSE 'user' END AS role`

const userColumns = `u.id, u.email, u.password_hash, u.full_name, u.phone, u.balance,
		u.account_status, u.token_version, u.created_at, u.updated_at, u.deleted_at, ` + roleColumn

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		WITH inserted AS (
			INSERT INTO users (id, email, password_hash, full_name, phone, account_status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, balance, created_at, updated_at, token_version
		), role_row AS (
			INSERT INTO user_roles (user_id, role)
			SELECT id, $7 FROM inserted
		)
		SELECT balance, created_at, updated_at, token_version FROM inserted`

	err := r.db.QueryRowxContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.Phone,
		user.AccountStatus,
		user.Role,
	).Scan(&user.Balance, &user.CreatedAt, &user.UpdatedAt, &user.TokenVersion)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users u
		WHERE u.id = $1 AND u.deleted_at IS NULL`

	return r.getOne(ctx, "get user", query, id)
}

// GetByIDForUpdate locks the profile row until the surrounding
// transaction ends.
func (r *repository) GetByIDForUpdate(
	ctx context.Context,
	id string,
) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users u
		WHERE u.id = $1 AND u.deleted_at IS NULL
		FOR UPDATE OF u`

	return r.getOne(ctx, "lock user", query, id)
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users u
		WHERE u.email = $1 AND u.deleted_at IS NULL`

	return r.getOne(ctx, "get user by email", query, email)
}

func (r *repository) getOne(
	ctx context.Context,
	op, query string,
	arg any,
) (*User, error) {
	var user User
	err := r.db.GetContext(ctx, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

func (r *repository) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET full_name = $2, phone = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &user.UpdatedAt, query,
		user.ID,
		user.FullName,
		user.Phone,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return core.RequireRowsAffected(result, "update password", core.ErrNotFound)
}

func (r *repository) IncrementTokenVersion(
	ctx context.Context,
	id string,
) error {
	query := `
		UPDATE users
		SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	return core.RequireRowsAffected(
		result,
		"increment token version",
		core.ErrNotFound,
	)
}

// SetStatus changes account_status and bumps token_version so tokens
// minted under the old status stop verifying.
func (r *repository) SetStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE users
		SET account_status = $2,
		    token_version = token_version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}

	return core.RequireRowsAffected(result, "set status", core.ErrNotFound)
}

func (r *repository) GrantRole(ctx context.Context, id, role string) error {
	query := `
		INSERT INTO user_roles (user_id, role)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, id, role); err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("grant role: %w", core.ErrNotFound)
		}
		return fmt.Errorf("grant role: %w", err)
	}

	return nil
}

func (r *repository) RevokeRole(ctx context.Context, id, role string) error {
	query := `DELETE FROM user_roles WHERE user_id = $1 AND role = $2`

	if _, err := r.db.ExecContext(ctx, query, id, role); err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}

	return nil
}

func (r *repository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET deleted_at = NOW(),
		    token_version = token_version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return core.RequireRowsAffected(result, "delete user", core.ErrNotFound)
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, "u.deleted_at IS NULL")

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(u.email ILIKE $%d OR u.full_name ILIKE $%d OR u.phone ILIKE $%d)",
			argIdx, argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Status != "" {
		conditions = append(conditions, fmt.Sprintf("u.account_status = $%d", argIdx))
		args = append(args, params.Status)
		argIdx++
	}

	switch params.Role {
	case RoleAdmin:
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM user_roles r WHERE r.user_id = u.id AND r.role = 'admin')")
	case RoleUser:
		conditions = append(conditions,
			"NOT EXISTS (SELECT 1 FROM user_roles r WHERE r.user_id = u.id AND r.role = 'admin')")
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM users u WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM users u
		WHERE %s
		ORDER BY u.created_at DESC
		LIMIT $%d OFFSET $%d`,
		userColumns, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var users []User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
