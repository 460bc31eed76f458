// AngelaMos | 2026
// repository.go

package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/angelamos/musicdesk/internal/core"
)

type Repository interface {
	Create(ctx context.Context, r *Review) error
	RequestOwnerAndStatus(ctx context.Context, requestID string) (string, string, error)
	List(ctx context.Context, params ListParams) ([]Listing, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, rv *Review) error {
	query := `
		INSERT INTO reviews (id, request_id, contractor_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &rv.CreatedAt, query,
		rv.ID,
		rv.RequestID,
		rv.ContractorID,
		rv.UserID,
		rv.Rating,
		rv.Comment,
	)
	if err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("create review: %w", core.ErrNotFound)
		}
		return fmt.Errorf("create review: %w", err)
	}

	return nil
}

func (r *repository) RequestOwnerAndStatus(
	ctx context.Context,
	requestID string,
) (string, string, error) {
	var row struct {
		UserID string `db:"user_id"`
		Status string `db:"status"`
	}

	err := r.db.GetContext(ctx, &row,
		`SELECT user_id, status FROM service_requests WHERE id = $1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("review request: %w", core.ErrNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("review request: %w", err)
	}

	return row.UserID, row.Status, nil
}

func (r *repository) List(ctx context.Context, params ListParams) ([]Listing, error) {
	var (
		conditions []string
		args       []any
	)
	if params.RequestID != "" {
		args = append(args, params.RequestID)
		conditions = append(conditions, fmt.Sprintf("rv.request_id = $%d", len(args)))
	}
	if params.ContractorID != "" {
		args = append(args, params.ContractorID)
		conditions = append(conditions, fmt.Sprintf("rv.contractor_id = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, params.Limit)
	query := fmt.Sprintf(`
		SELECT rv.id, rv.request_id, rv.contractor_id, rv.user_id, rv.rating,
		       rv.comment, rv.created_at,
		       sr.name AS request_name, sr.service_type,
		       c.name AS contractor_name
		FROM reviews rv
		JOIN service_requests sr ON sr.id = rv.request_id
		LEFT JOIN contractors c ON c.id = rv.contractor_id
		%s
		ORDER BY rv.created_at DESC
		LIMIT $%d`, where, len(args))

	var out []Listing
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	return out, nil
}
