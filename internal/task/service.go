// AngelaMos | 2026
// service.go

package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/angelamos/musicdesk/internal/audit"
	"github.com/angelamos/musicdesk/internal/contractor"
	"github.com/angelamos/musicdesk/internal/core"
	"github.com/angelamos/musicdesk/internal/metrics"
)

const ledgerContractor = "contractor"

type Service struct {
	db     *sqlx.DB
	repo   Repository
	logger *slog.Logger
}

func NewService(db *sqlx.DB, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		repo:   NewRepository(db),
		logger: logger,
	}
}

// Create assigns a task to an active contractor.
func (s *Service) Create(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	if req.Payment.IsNegative() {
		return nil, fmt.Errorf("payment cannot be negative: %w", core.ErrInvalidInput)
	}
	if !req.Payment.Equal(req.Payment.Round(2)) {
		return nil, fmt.Errorf("payment has more than two decimal places: %w", core.ErrInvalidInput)
	}

	c, err := contractor.NewRepository(s.db).GetByID(ctx, req.ContractorID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive() {
		return nil, fmt.Errorf("assign task to %s: %w", c.ID, contractor.ErrInactive)
	}

	t := &Task{
		ID:           uuid.New().String(),
		ContractorID: req.ContractorID,
		RequestID:    req.RequestID,
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		Payment:      req.Payment,
		Status:       StatusAssigned,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	return t, nil
}

func (s *Service) List(ctx context.Context, params ListParams) ([]Task, error) {
	out, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Task{}
	}
	return out, nil
}

func (s *Service) Start(ctx context.Context, id string) (*Task, error) {
	t, err := s.repo.Start(ctx, id)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	if _, getErr := s.repo.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("start task %s: %w", id, ErrInvalidTransition)
}

// Complete closes a task and pays the contractor in one transaction. The
// status flip is conditional, so a task is paid at most once no matter
// how often this is called.
func (s *Service) Complete(
	ctx context.Context,
	adminID, id string,
) (*CompleteResponse, error) {
	ctx, span := core.StartSpan(ctx, "task.Complete")
	var err error
	defer func() { core.EndSpan(span, err) }()

	var out CompleteResponse
	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := NewRepository(tx)

		t, err := repo.MarkCompleted(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			if _, getErr := repo.GetByID(ctx, id); getErr != nil {
				return getErr
			}
			return fmt.Errorf("complete task %s: %w", id, ErrAlreadyCompleted)
		}
		if err != nil {
			return err
		}

		var balance decimal.Decimal
		paid := t.Payment.IsPositive()
		if paid {
			balance, err = contractor.PayTask(ctx, tx, t.ContractorID, t.ID, adminID,
				t.Payment, "Pagamento da tarefa: "+t.Title)
			if err != nil {
				return err
			}
		} else {
			c, err := contractor.NewRepository(tx).GetByID(ctx, t.ContractorID)
			if err != nil {
				return err
			}
			balance = c.Balance
		}

		if err := audit.Record(ctx, tx, audit.Entry{
			ActorID:    adminID,
			Action:     audit.ActionTaskCompleted,
			EntityType: audit.EntityTask,
			EntityID:   t.ID,
			Details: map[string]any{
				"contractor_id": t.ContractorID,
				"payment":       core.FormatAmount(t.Payment),
				"paid":          paid,
			},
		}); err != nil {
			return err
		}

		out = CompleteResponse{Task: t, ContractorBalance: balance, Paid: paid}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Paid {
		metrics.RecordLedger(ledgerContractor, contractor.TxTaskPayment, out.Task.Payment)
	}

	return &out, nil
}
