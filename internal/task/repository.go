// AngelaMos | 2026
// repository.go

package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/angelamos/musicdesk/internal/core"
)

type Repository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id string) (*Task, error)
	List(ctx context.Context, params ListParams) ([]Task, error)
	Start(ctx context.Context, id string) (*Task, error)
	MarkCompleted(ctx context.Context, id string) (*Task, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const taskColumns = `id, contractor_id, request_id, title, description, payment,
		status, completed_at, created_at, updated_at`

func (r *repository) Create(ctx context.Context, t *Task) error {
	query := `
		INSERT INTO contractor_tasks (
			id, contractor_id, request_id, title, description, payment, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		t.ID,
		t.ContractorID,
		t.RequestID,
		t.Title,
		t.Description,
		t.Payment,
		t.Status,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("create task: %w", core.ErrNotFound)
		}
		return fmt.Errorf("create task: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Task, error) {
	return r.one(ctx, "get task",
		`SELECT `+taskColumns+` FROM contractor_tasks WHERE id = $1`, id)
}

func (r *repository) List(ctx context.Context, params ListParams) ([]Task, error) {
	var (
		conditions []string
		args       []any
	)
	if params.ContractorID != "" {
		args = append(args, params.ContractorID)
		conditions = append(conditions, fmt.Sprintf("contractor_id = $%d", len(args)))
	}
	if params.Status != "" {
		args = append(args, params.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + taskColumns + ` FROM contractor_tasks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	var out []Task
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

func (r *repository) Start(ctx context.Context, id string) (*Task, error) {
	query := `
		UPDATE contractor_tasks
		SET status = 'in_progress', updated_at = NOW()
		WHERE id = $1 AND status = 'assigned'
		RETURNING ` + taskColumns

	return r.one(ctx, "start task", query, id)
}

// MarkCompleted flips the task to completed unless it already is. It
// returns core.ErrNotFound when no row changed, so the caller can tell a
// repeat from a missing task.
func (r *repository) MarkCompleted(ctx context.Context, id string) (*Task, error) {
	query := `
		UPDATE contractor_tasks
		SET status = 'completed', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status <> 'completed'
		RETURNING ` + taskColumns

	return r.one(ctx, "complete task", query, id)
}

func (r *repository) one(ctx context.Context, op, query, id string) (*Task, error) {
	var t Task
	err := r.db.GetContext(ctx, &t, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &t, nil
}
