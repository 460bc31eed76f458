// AngelaMos | 2026
// entity.go

package wallet

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelamos/musicdesk/internal/core"
)

// Transaction is one append-only row of a user's ledger. Amount is signed:
// credits are positive, charges and reversals negative.
type Transaction struct {
	ID                 string          `db:"id"                   json:"id"`
	UserID             string          `db:"user_id"              json:"user_id"`
	Type               string          `db:"type"                 json:"type"`
	Amount             decimal.Decimal `db:"amount"               json:"amount"`
	Description        string          `db:"description"          json:"description"`
	PaymentMethod      *string         `db:"payment_method"       json:"payment_method,omitempty"`
	AdminID            *string         `db:"admin_id"             json:"admin_id,omitempty"`
	VerifiedAt         *time.Time      `db:"verified_at"          json:"verified_at,omitempty"`
	VerifiedBy         *string         `db:"verified_by"          json:"verified_by,omitempty"`
	DepositReceiptPath *string         `db:"deposit_receipt_path" json:"deposit_receipt_path,omitempty"`
	RequestID          *string         `db:"request_id"           json:"request_id,omitempty"`
	CreatedAt          time.Time       `db:"created_at"           json:"created_at"`
}

func (t *Transaction) IsVerified() bool {
	return t.VerifiedAt != nil
}

// PendingDeposit is a deposit waiting for review, with its depositor.
type PendingDeposit struct {
	Transaction
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email"     json:"email"`
}

const (
	TypeDeposit         = "deposit"
	TypeAdminAdd        = "admin_add"
	TypeServiceCharge   = "service_charge"
	TypeRefund          = "refund"
	TypeDepositReversal = "deposit_reversal"
)

const (
	MethodMulticaixa   = "multicaixa"
	MethodBankTransfer = "bank_transfer"
	MethodP2P          = "p2p"
)

var paymentMethodNames = map[string]string{
	MethodMulticaixa:   "MultiCaixa Express",
	MethodBankTransfer: "Transferência Bancária",
	MethodP2P:          "P2P",
}

func PaymentMethodName(method string) (string, bool) {
	name, ok := paymentMethodNames[method]
	return name, ok
}

const DefaultAdminAddDescription = "Adição manual de saldo"

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadyVerified     = errors.New("deposit already verified")
	ErrNotDeposit          = errors.New("transaction is not a deposit")
	ErrMissingReceipt      = errors.New("deposit receipt is required")
	ErrInvalidMethod       = errors.New("unknown payment method")
)

// InsufficientBalanceError carries the figures shown to the user.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf(
		"insufficient balance: service costs %s, available balance is %s",
		core.FormatMoney(e.Required),
		core.FormatMoney(e.Available),
	)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

type ListParams struct {
	Page     int
	PageSize int
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
