// AngelaMos | 2026
// entity.go

package notification

import (
	"time"
)

type Notification struct {
	ID          string    `db:"id"          json:"id"`
	UserID      string    `db:"user_id"     json:"user_id"`
	Title       string    `db:"title"       json:"title"`
	Description string    `db:"description" json:"description"`
	Type        string    `db:"type"        json:"type"`
	Read        bool      `db:"read"        json:"read"`
	CreatedAt   time.Time `db:"created_at"  json:"created_at"`
}

const (
	TypeDeposit       = "deposit"
	TypeBalance       = "balance"
	TypeAccountStatus = "account_status"
	TypeRequest       = "request"
)

// Notice is what other modules hand to the Notifier.
type Notice struct {
	UserID      string
	Title       string
	Description string
	Type        string
}
