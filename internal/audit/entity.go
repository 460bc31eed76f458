// AngelaMos | 2026
// entity.go

package audit

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

const (
	ActionUserStatusChanged         = "user_status_changed"
	ActionUserRoleChanged           = "user_role_changed"
	ActionRequestCreated            = "request_created"
	ActionRequestStatusChanged      = "request_status_changed"
	ActionRequestDeleted            = "request_deleted"
	ActionDepositSubmitted          = "deposit_submitted"
	ActionDepositApproved           = "deposit_approved"
	ActionDepositRejected           = "deposit_rejected"
	ActionBalanceAdded              = "balance_added"
	ActionContractorBalanceAdjusted = "contractor_balance_adjusted"
	ActionContractorDeleted         = "contractor_deleted"
	ActionTaskCompleted             = "task_completed"
	ActionAdminBootstrapped         = "admin_bootstrapped"
)

const (
	EntityProfile         = "profile"
	EntityServiceRequest  = "service_request"
	EntityContractor      = "contractor"
	EntityUserTransaction = "user_transaction"
	EntityTask            = "contractor_task"
)

type Log struct {
	ID         string         `db:"id"          json:"id"`
	ActorID    *string        `db:"actor_id"    json:"actor_id,omitempty"`
	ActorName  *string        `db:"actor_name"  json:"actor_name,omitempty"`
	Action     string         `db:"action"      json:"action"`
	EntityType string         `db:"entity_type" json:"entity_type"`
	EntityID   *string        `db:"entity_id"   json:"entity_id,omitempty"`
	Details    types.JSONText `db:"details"     json:"details"`
	CreatedAt  time.Time      `db:"created_at"  json:"created_at"`
}

// Entry is a log line to be written, usually inside the transaction of
// the change it describes.
type Entry struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]any
}

type ListParams struct {
	Page       int
	PageSize   int
	Action     string
	EntityType string
	EntityID   string
}

const defaultPageSize = 20

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}
