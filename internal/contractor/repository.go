// AngelaMos | 2026
// repository.go

package contractor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelamos/musicdesk/internal/core"
)

type Repository interface {
	Create(ctx context.Context, c *Contractor) error
	GetByID(ctx context.Context, id string) (*Contractor, error)
	List(ctx context.Context, params ListParams) ([]Contractor, error)
	Update(ctx context.Context, c *Contractor) error
	SetAvatar(ctx context.Context, id string, path *string) error
	Delete(ctx context.Context, id string) error
	AddBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error)
	CreateTransaction(ctx context.Context, t *Transaction) error
	ListTransactions(ctx context.Context, contractorID string, limit int) ([]Transaction, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const contractorColumns = `id, name, email, phone, address, avatar_path, balance,
		status, user_id, created_at, updated_at`

func (r *repository) Create(ctx context.Context, c *Contractor) error {
	query := `
		INSERT INTO contractors (id, name, email, phone, address, status, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING balance, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		c.ID,
		c.Name,
		c.Email,
		c.Phone,
		c.Address,
		c.Status,
		c.UserID,
	).Scan(&c.Balance, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("create contractor: linked user: %w", core.ErrNotFound)
		}
		return fmt.Errorf("create contractor: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Contractor, error) {
	var c Contractor
	err := r.db.GetContext(ctx, &c,
		`SELECT `+contractorColumns+` FROM contractors WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get contractor: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get contractor: %w", err)
	}
	return &c, nil
}

func (r *repository) List(ctx context.Context, params ListParams) ([]Contractor, error) {
	var (
		conditions []string
		args       []any
	)
	if params.Status != "" {
		args = append(args, params.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if params.Search != "" {
		args = append(args, "%"+escapeLike(params.Search)+"%")
		conditions = append(conditions,
			fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + contractorColumns + ` FROM contractors`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name"

	var out []Contractor
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list contractors: %w", err)
	}
	return out, nil
}

// Update writes the profile fields. Balance and avatar have their own
// writers.
func (r *repository) Update(ctx context.Context, c *Contractor) error {
	query := `
		UPDATE contractors
		SET name = $2, email = $3, phone = $4, address = $5, status = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &c.UpdatedAt, query,
		c.ID, c.Name, c.Email, c.Phone, c.Address, c.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update contractor: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update contractor: %w", err)
	}
	return nil
}

func (r *repository) SetAvatar(ctx context.Context, id string, path *string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE contractors SET avatar_path = $2, updated_at = NOW() WHERE id = $1`, id, path)
	if err != nil {
		return fmt.Errorf("set avatar: %w", err)
	}
	return core.RequireRowsAffected(result, "set avatar", core.ErrNotFound)
}

func (r *repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM contractors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contractor: %w", err)
	}
	return core.RequireRowsAffected(result, "delete contractor", core.ErrNotFound)
}

// AddBalance applies delta in one statement and returns the new
// balance. delta may be negative and the balance may go below zero.
func (r *repository) AddBalance(
	ctx context.Context,
	id string,
	delta decimal.Decimal,
) (decimal.Decimal, error) {
	query := `
		UPDATE contractors
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING balance`

	var balance decimal.Decimal
	err := r.db.GetContext(ctx, &balance, query, id, delta)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("contractor balance: %w", core.ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("contractor balance: %w", err)
	}
	return balance, nil
}

func (r *repository) CreateTransaction(ctx context.Context, t *Transaction) error {
	query := `
		INSERT INTO contractor_transactions (
			id, contractor_id, type, amount, description, task_id, created_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &t.CreatedAt, query,
		t.ID,
		t.ContractorID,
		t.Type,
		t.Amount,
		t.Description,
		t.TaskID,
		t.CreatedBy,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create contractor transaction: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create contractor transaction: %w", err)
	}
	return nil
}

func (r *repository) ListTransactions(
	ctx context.Context,
	contractorID string,
	limit int,
) ([]Transaction, error) {
	query := `SELECT id, contractor_id, type, amount, description, task_id, created_by, created_at
		FROM contractor_transactions`
	args := []any{}
	if contractorID != "" {
		query += ` WHERE contractor_id = $1`
		args = append(args, contractorID)
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	var out []Transaction
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list contractor transactions: %w", err)
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
