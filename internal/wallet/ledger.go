// AngelaMos | 2026
// ledger.go

package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelamos/musicdesk/internal/core"
)

// Charge debits price for a service request and appends the matching
// service_charge row. db is normally the transaction that creates the
// request, so a failed charge leaves no request behind.
func Charge(
	ctx context.Context,
	db core.DBTX,
	userID, requestID string,
	price decimal.Decimal,
	description string,
) (decimal.Decimal, error) {
	repo := NewRepository(db)

	balance, ok, err := repo.DebitIfCovered(ctx, userID, price)
	if err != nil {
		return decimal.Zero, err
	}

	if !ok {
		available, err := repo.Balance(ctx, userID)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.Zero, fmt.Errorf("charge: %w", &InsufficientBalanceError{
			Required:  price,
			Available: available,
		})
	}

	if err := repo.Create(ctx, &Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        TypeServiceCharge,
		Amount:      price.Neg(),
		Description: description,
		RequestID:   &requestID,
	}); err != nil {
		return decimal.Zero, err
	}

	return balance, nil
}

// Refund returns amount to the user for a cancelled request.
func Refund(
	ctx context.Context,
	db core.DBTX,
	userID, requestID, adminID string,
	amount decimal.Decimal,
	description string,
) (decimal.Decimal, error) {
	repo := NewRepository(db)

	balance, err := repo.Credit(ctx, userID, amount)
	if err != nil {
		return decimal.Zero, err
	}

	t := &Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        TypeRefund,
		Amount:      amount,
		Description: description,
		RequestID:   &requestID,
	}
	if adminID != "" {
		t.AdminID = &adminID
	}

	if err := repo.Create(ctx, t); err != nil {
		return decimal.Zero, err
	}

	return balance, nil
}
