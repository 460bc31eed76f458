// AngelaMos | 2026
// entity.go

package user

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelamos/musicdesk/internal/access"
)

type User struct {
	ID            string          `db:"id"`
	Email         string          `db:"email"`
	PasswordHash  string          `db:"password_hash"`
	FullName      string          `db:"full_name"`
	Phone         string          `db:"phone"`
	Balance       decimal.Decimal `db:"balance"`
	AccountStatus string          `db:"account_status"`
	Role          string          `db:"role"`
	TokenVersion  int             `db:"token_version"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
	DeletedAt     *time.Time      `db:"deleted_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

const (
	RoleUser  = access.RoleUser
	RoleAdmin = access.RoleAdmin
)

const (
	StatusPending   = access.StatusPending
	StatusApproved  = access.StatusApproved
	StatusRejected  = access.StatusRejected
	StatusSuspended = access.StatusSuspended
)

// transitions lists the status changes an admin may make.
var transitions = map[string][]string{
	StatusPending:   {StatusApproved, StatusRejected},
	StatusApproved:  {StatusSuspended},
	StatusSuspended: {StatusApproved},
	StatusRejected:  {StatusApproved},
}

func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type statusNotice struct {
	title       string
	description string
}

var statusNotices = map[string]statusNotice{
	StatusApproved: {
		title:       "Conta Aprovada! 🎉",
		description: "Sua conta foi aprovada. Agora você pode fazer solicitações de serviços.",
	},
	StatusRejected: {
		title:       "Cadastro Rejeitado",
		description: "Seu cadastro foi rejeitado. Entre em contato para mais informações.",
	},
	StatusSuspended: {
		title:       "Conta Suspensa",
		description: "Sua conta foi suspensa. Entre em contato com o administrador.",
	},
}
