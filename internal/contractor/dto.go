// AngelaMos | 2026
// dto.go

package contractor

import (
	"github.com/shopspring/decimal"
)

type CreateContractorRequest struct {
	Name    string  `json:"name"    validate:"required,min=1,max=100"`
	Email   string  `json:"email"   validate:"omitempty,email,max=255"`
	Phone   string  `json:"phone"   validate:"max=32"`
	Address string  `json:"address" validate:"max=500"`
	UserID  *string `json:"user_id" validate:"omitempty,uuid"`
}

type UpdateContractorRequest struct {
	Name    *string `json:"name"    validate:"omitempty,min=1,max=100"`
	Email   *string `json:"email"   validate:"omitempty,email,max=255"`
	Phone   *string `json:"phone"   validate:"omitempty,max=32"`
	Address *string `json:"address" validate:"omitempty,max=500"`
	Status  *string `json:"status"  validate:"omitempty,oneof=active inactive"`
}

type AdjustBalanceRequest struct {
	Action      string          `json:"action"      validate:"required,oneof=add remove"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"max=255"`
}

type AdjustBalanceResponse struct {
	Transaction *Transaction    `json:"transaction"`
	Balance     decimal.Decimal `json:"balance"`
}
