// AngelaMos | 2026
// entity.go

package request

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

var (
	ErrInvalidTransition = errors.New("invalid request status transition")
	ErrNotDeletable      = errors.New("only pending or cancelled requests can be deleted")
	ErrNotCompleted      = errors.New("request is not completed")
	ErrNoAudio           = errors.New("request has no audio attachment")
)

type ServiceRequest struct {
	ID          string          `db:"id"           json:"id"`
	UserID      string          `db:"user_id"      json:"user_id"`
	Name        string          `db:"name"         json:"name"`
	Email       string          `db:"email"        json:"email"`
	Phone       string          `db:"phone"        json:"phone"`
	ServiceType ServiceType     `db:"service_type" json:"service_type"`
	Description string          `db:"description"  json:"description"`
	Price       decimal.Decimal `db:"price"        json:"price"`
	Status      string          `db:"status"       json:"status"`
	CreatedAt   time.Time       `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"   json:"updated_at"`
}

type Attachment struct {
	ID          string    `db:"id"           json:"id"`
	RequestID   string    `db:"request_id"   json:"request_id"`
	FileName    string    `db:"file_name"    json:"file_name"`
	FilePath    string    `db:"file_path"    json:"file_path"`
	FileType    string    `db:"file_type"    json:"file_type"`
	ContentType string    `db:"content_type" json:"content_type"`
	FileSize    int64     `db:"file_size"    json:"file_size"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
	URL         string    `db:"-"            json:"url,omitempty"`
}

var transitions = map[string][]string{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var statusLabels = map[string]string{
	StatusPending:    "Pendente",
	StatusInProgress: "Em Andamento",
	StatusCompleted:  "Concluído",
	StatusCancelled:  "Cancelado",
}

func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

// Viewer is who is asking. Members only see their own requests.
type Viewer struct {
	UserID  string
	IsAdmin bool
}

func (v Viewer) CanSee(r *ServiceRequest) bool {
	return v.IsAdmin || r.UserID == v.UserID
}

type ListParams struct {
	Page     int
	PageSize int
	UserID   string
	Status   string
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}
