// AngelaMos | 2026
// entity.go

package task

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

var (
	ErrAlreadyCompleted  = errors.New("task is already completed")
	ErrInvalidTransition = errors.New("task cannot be started from its current status")
)

type Task struct {
	ID           string          `db:"id"            json:"id"`
	ContractorID string          `db:"contractor_id" json:"contractor_id"`
	RequestID    *string         `db:"request_id"    json:"request_id,omitempty"`
	Title        string          `db:"title"         json:"title"`
	Description  string          `db:"description"   json:"description"`
	Payment      decimal.Decimal `db:"payment"       json:"payment"`
	Status       string          `db:"status"        json:"status"`
	CompletedAt  *time.Time      `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"    json:"updated_at"`
}

type ListParams struct {
	ContractorID string
	Status       string
}

type CreateTaskRequest struct {
	ContractorID string          `json:"contractor_id" validate:"required,uuid"`
	RequestID    *string         `json:"request_id"    validate:"omitempty,uuid"`
	Title        string          `json:"title"         validate:"required,min=1,max=200"`
	Description  string          `json:"description"   validate:"max=5000"`
	Payment      decimal.Decimal `json:"payment"`
}

// CompleteResponse carries the contractor balance after the payout so
// clients can refresh without another read.
type CompleteResponse struct {
	Task              *Task           `json:"task"`
	ContractorBalance decimal.Decimal `json:"contractor_balance"`
	Paid              bool            `json:"paid"`
}
