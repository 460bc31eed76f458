// AngelaMos | 2026
// repository.go

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelamos/musicdesk/internal/core"
)

type Repository interface {
	Create(ctx context.Context, entry Entry) error
	List(ctx context.Context, params ListParams) ([]Log, int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Record writes entry through db, which is normally the caller's open
// transaction.
func Record(ctx context.Context, db core.DBTX, entry Entry) error {
	return NewRepository(db).Create(ctx, entry)
}

func (r *repository) Create(ctx context.Context, entry Entry) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}

	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, actor_id, action, entity_type, entity_id, details)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.ExecContext(ctx, query,
		uuid.New().String(),
		nullable(entry.ActorID),
		entry.Action,
		entry.EntityType,
		nullable(entry.EntityID),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("record audit %s: %w", entry.Action, err)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListParams,
) ([]Log, int, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	if params.Action != "" {
		conditions = append(conditions, fmt.Sprintf("a.action = $%d", argIdx))
		args = append(args, params.Action)
		argIdx++
	}

	if params.EntityType != "" {
		conditions = append(conditions, fmt.Sprintf("a.entity_type = $%d", argIdx))
		args = append(args, params.EntityType)
		argIdx++
	}

	if params.EntityID != "" {
		conditions = append(conditions, fmt.Sprintf("a.entity_id = $%d", argIdx))
		args = append(args, params.EntityID)
		argIdx++
	}

	whereClause := "TRUE"
	if len(conditions) > 0 {
		whereClause = strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM audit_logs a WHERE " + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT a.id, a.actor_id, u.full_name AS actor_name, a.action,
		       a.entity_type, a.entity_id, a.details, a.created_at
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.actor_id
		WHERE %s
		ORDER BY a.created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	logs := []Log{}
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}

	return logs, total, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
