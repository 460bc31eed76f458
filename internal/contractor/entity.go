// AngelaMos | 2026
// entity.go

package contractor

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

const (
	TxTaskPayment    = "task_payment"
	TxManualAdd      = "manual_add"
	TxManualSubtract = "manual_subtract"
)

const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

var (
	ErrInvalidAction = errors.New("balance action must be add or remove")
	ErrInactive      = errors.New("contractor is inactive")
)

type Contractor struct {
	ID         string          `db:"id"          json:"id"`
	Name       string          `db:"name"        json:"name"`
	Email      string          `db:"email"       json:"email"`
	Phone      string          `db:"phone"       json:"phone"`
	Address    string          `db:"address"     json:"address"`
	AvatarPath *string         `db:"avatar_path" json:"avatar_path,omitempty"`
	AvatarURL  string          `db:"-"           json:"avatar_url,omitempty"`
	Balance    decimal.Decimal `db:"balance"     json:"balance"`
	Status     string          `db:"status"      json:"status"`
	UserID     *string         `db:"user_id"     json:"user_id,omitempty"`
	CreatedAt  time.Time       `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"  json:"updated_at"`
}

func (c *Contractor) IsActive() bool {
	return c.Status == StatusActive
}

// Transaction is one contractor ledger row. Amount is unsigned, the type
// says which way it moved.
type Transaction struct {
	ID           string          `db:"id"            json:"id"`
	ContractorID string          `db:"contractor_id" json:"contractor_id"`
	Type         string          `db:"type"          json:"type"`
	Amount       decimal.Decimal `db:"amount"        json:"amount"`
	Description  string          `db:"description"   json:"description"`
	TaskID       *string         `db:"task_id"       json:"task_id,omitempty"`
	CreatedBy    *string         `db:"created_by"    json:"created_by,omitempty"`
	CreatedAt    time.Time       `db:"created_at"    json:"created_at"`
}

type ListParams struct {
	Status string
	Search string
}
