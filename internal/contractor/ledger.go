// AngelaMos | 2026
// ledger.go

package contractor

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelamos/musicdesk/internal/core"
)

// PayTask credits a contractor for a finished task and writes the
// task_payment row. db is the transaction that completes the task; the
// unique index on task_id keeps it to one payout per task.
func PayTask(
	ctx context.Context,
	db core.DBTX,
	contractorID, taskID, actorID string,
	amount decimal.Decimal,
	description string,
) (decimal.Decimal, error) {
	repo := NewRepository(db)

	balance, err := repo.AddBalance(ctx, contractorID, amount)
	if err != nil {
		return decimal.Zero, err
	}

	t := &Transaction{
		ID:           uuid.New().String(),
		ContractorID: contractorID,
		Type:         TxTaskPayment,
		Amount:       amount,
		Description:  description,
		TaskID:       &taskID,
	}
	if actorID != "" {
		t.CreatedBy = &actorID
	}

	if err := repo.CreateTransaction(ctx, t); err != nil {
		return decimal.Zero, err
	}

	return balance, nil
}
