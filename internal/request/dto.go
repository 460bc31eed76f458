// AngelaMos | 2026
// dto.go

package request

import (
	"github.com/shopspring/decimal"
)

type CreateRequest struct {
	Name        string `json:"name"         validate:"required,min=1,max=100"`
	Email       string `json:"email"        validate:"omitempty,email,max=255"`
	Phone       string `json:"phone"        validate:"required,max=32"`
	ServiceType string `json:"service_type" validate:"required,oneof=accompaniment arrangement_no_mod arrangement_with_mod review"`
	Description string `json:"description"  validate:"max=5000"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=in_progress completed cancelled"`
}

type CreateResponse struct {
	Request *ServiceRequest `json:"request"`
	Balance decimal.Decimal `json:"balance"`
}

type DetailResponse struct {
	*ServiceRequest
	Attachments []Attachment `json:"attachments"`
}

type AnalysisResponse struct {
	Success   bool   `json:"success"`
	Analysis  string `json:"analysis"`
	RequestID string `json:"request_id"`
}
