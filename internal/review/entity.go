// AngelaMos | 2026
// entity.go

package review

import (
	"errors"
	"time"
)

var ErrRequestNotCompleted = errors.New("only completed requests can be reviewed")

type Review struct {
	ID           string    `db:"id"            json:"id"`
	RequestID    string    `db:"request_id"    json:"request_id"`
	ContractorID *string   `db:"contractor_id" json:"contractor_id,omitempty"`
	UserID       string    `db:"user_id"       json:"user_id"`
	Rating       int       `db:"rating"        json:"rating"`
	Comment      string    `db:"comment"       json:"comment"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
}

// Listing is a review with the names shown next to it.
type Listing struct {
	Review
	RequestName    string  `db:"request_name"    json:"request_name"`
	ServiceType    string  `db:"service_type"    json:"service_type"`
	ContractorName *string `db:"contractor_name" json:"contractor_name,omitempty"`
}

type ListParams struct {
	RequestID    string
	ContractorID string
	Limit        int
}

type CreateReviewRequest struct {
	RequestID    string  `json:"request_id"    validate:"required,uuid"`
	ContractorID *string `json:"contractor_id" validate:"omitempty,uuid"`
	Rating       int     `json:"rating"        validate:"required,min=1,max=5"`
	Comment      string  `json:"comment"       validate:"max=1000"`
}
