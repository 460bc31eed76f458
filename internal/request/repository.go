// AngelaMos | 2026
// repository.go

package request

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/angelamos/musicdesk/internal/core"
)

type Repository interface {
	Create(ctx context.Context, req *ServiceRequest) error
	GetByID(ctx context.Context, id string) (*ServiceRequest, error)
	GetByIDForUpdate(ctx context.Context, id string) (*ServiceRequest, error)
	List(ctx context.Context, params ListParams) ([]ServiceRequest, int, error)
	UpdateStatus(ctx context.Context, id, from, to string) error
	Delete(ctx context.Context, id string) error
	CreateAttachment(ctx context.Context, a *Attachment) error
	ListAttachments(ctx context.Context, requestID string) ([]Attachment, error)
	FirstAudio(ctx context.Context, requestID string) (*Attachment, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const requestColumns = `id, user_id, name, email, phone, service_type,
		description, price, status, created_at, updated_at`

const attachmentColumns = `id, request_id, file_name, file_path, file_type,
		content_type, file_size, created_at`

func (r *repository) Create(ctx context.Context, req *ServiceRequest) error {
	query := `
		INSERT INTO service_requests (
			id, user_id, name, email, phone, service_type, description, price, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		req.ID,
		req.UserID,
		req.Name,
		req.Email,
		req.Phone,
		req.ServiceType,
		req.Description,
		req.Price,
		req.Status,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("create request: %w", core.ErrNotFound)
		}
		return fmt.Errorf("create request: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests WHERE id = $1`
	return r.getOne(ctx, "get request", query, id)
}

func (r *repository) GetByIDForUpdate(
	ctx context.Context,
	id string,
) (*ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, "lock request", query, id)
}

func (r *repository) getOne(
	ctx context.Context,
	op, query, id string,
) (*ServiceRequest, error) {
	var req ServiceRequest
	err := r.db.GetContext(ctx, &req, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &req, nil
}

func (r *repository) List(
	ctx context.Context,
	params ListParams,
) ([]ServiceRequest, int, error) {
	params.Normalize()

	var (
		conditions []string
		args       []any
	)
	if params.UserID != "" {
		args = append(args, params.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if params.Status != "" {
		args = append(args, params.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM service_requests`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM service_requests%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, requestColumns, where, len(args)+1, len(args)+2)
	args = append(args, params.PageSize, params.Offset())

	var reqs []ServiceRequest
	if err := r.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}

	return reqs, total, nil
}

// UpdateStatus moves a request only if it is still in status from.
func (r *repository) UpdateStatus(ctx context.Context, id, from, to string) error {
	query := `
		UPDATE service_requests
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`

	result, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}

	return core.RequireRowsAffected(result, "update request status", ErrInvalidTransition)
}

func (r *repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM service_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}

	return core.RequireRowsAffected(result, "delete request", core.ErrNotFound)
}

func (r *repository) CreateAttachment(ctx context.Context, a *Attachment) error {
	query := `
		INSERT INTO request_attachments (
			id, request_id, file_name, file_path, file_type, content_type, file_size
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &a.CreatedAt, query,
		a.ID,
		a.RequestID,
		a.FileName,
		a.FilePath,
		a.FileType,
		a.ContentType,
		a.FileSize,
	)
	if err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("create attachment: %w", core.ErrNotFound)
		}
		return fmt.Errorf("create attachment: %w", err)
	}

	return nil
}

func (r *repository) ListAttachments(
	ctx context.Context,
	requestID string,
) ([]Attachment, error) {
	query := `SELECT ` + attachmentColumns + `
		FROM request_attachments
		WHERE request_id = $1
		ORDER BY created_at, file_path`

	var out []Attachment
	if err := r.db.SelectContext(ctx, &out, query, requestID); err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}

	return out, nil
}

func (r *repository) FirstAudio(ctx context.Context, requestID string) (*Attachment, error) {
	query := `SELECT ` + attachmentColumns + `
		FROM request_attachments
		WHERE request_id = $1 AND file_type = 'audio'
		ORDER BY created_at, file_path
		LIMIT 1`

	var a Attachment
	err := r.db.GetContext(ctx, &a, query, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("first audio: %w", ErrNoAudio)
	}
	if err != nil {
		return nil, fmt.Errorf("first audio: %w", err)
	}

	return &a, nil
}
