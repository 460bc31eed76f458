// AngelaMos | 2026
// repository.go

package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelamos/musicdesk/internal/core"
)

type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id string) (*Transaction, error)
	GetByIDForUpdate(ctx context.Context, id string) (*Transaction, error)
	MarkVerified(ctx context.Context, id, adminID string, clearReceipt bool) error
	Credit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)
	DebitIfCovered(
		ctx context.Context,
		userID string,
		amount decimal.Decimal,
	) (decimal.Decimal, bool, error)
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	ListForUser(
		ctx context.Context,
		userID string,
		params ListParams,
	) ([]Transaction, int, error)
	ListPendingDeposits(
		ctx context.Context,
		params ListParams,
	) ([]PendingDeposit, int, error)
	PendingDepositTotals(ctx context.Context) (int, decimal.Decimal, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const transactionColumns = `t.id, t.user_id, t.type, t.amount, t.description,
		t.payment_method, t.admin_id, t.verified_at, t.verified_by,
		t.deposit_receipt_path, t.request_id, t.created_at`

func (r *repository) Create(ctx context.Context, t *Transaction) error {
	query := `
		INSERT INTO user_transactions (
			id, user_id, type, amount, description, payment_method,
			admin_id, deposit_receipt_path, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &t.CreatedAt, query,
		t.ID,
		t.UserID,
		t.Type,
		t.Amount,
		t.Description,
		t.PaymentMethod,
		t.AdminID,
		t.DepositReceiptPath,
		t.RequestID,
	)
	if err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("create transaction: %w", core.ErrNotFound)
		}
		return fmt.Errorf("create transaction: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM user_transactions t
		WHERE t.id = $1`

	return r.getOne(ctx, "get transaction", query, id)
}

func (r *repository) GetByIDForUpdate(
	ctx context.Context,
	id string,
) (*Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM user_transactions t
		WHERE t.id = $1
		FOR UPDATE`

	return r.getOne(ctx, "lock transaction", query, id)
}

func (r *repository) getOne(
	ctx context.Context,
	op, query, id string,
) (*Transaction, error) {
	var t Transaction
	err := r.db.GetContext(ctx, &t, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &t, nil
}

func (r *repository) MarkVerified(
	ctx context.Context,
	id, adminID string,
	clearReceipt bool,
) error {
	query := `
		UPDATE user_transactions
		SET verified_at = NOW(),
		    verified_by = $2,
		    deposit_receipt_path = CASE WHEN $3 THEN NULL ELSE deposit_receipt_path END
		WHERE id = $1 AND verified_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, adminID, clearReceipt)
	if err != nil {
		return fmt.Errorf("verify deposit: %w", err)
	}

	return core.RequireRowsAffected(result, "verify deposit", ErrAlreadyVerified)
}

// Credit adds amount to the stored balance and returns the new balance.
// amount may be negative for reversals.
func (r *repository) Credit(
	ctx context.Context,
	userID string,
	amount decimal.Decimal,
) (decimal.Decimal, error) {
	query := `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING balance`

	var balance decimal.Decimal
	err := r.db.GetContext(ctx, &balance, query, userID, amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("credit balance: %w", core.ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("credit balance: %w", err)
	}

	return balance, nil
}

// DebitIfCovered subtracts amount only when the stored balance covers it.
// ok is false when the balance was too low and nothing changed.
func (r *repository) DebitIfCovered(
	ctx context.Context,
	userID string,
	amount decimal.Decimal,
) (decimal.Decimal, bool, error) {
	query := `
		UPDATE users
		SET balance = balance - $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND balance >= $2
		RETURNING balance`

	var balance decimal.Decimal
	err := r.db.GetContext(ctx, &balance, query, userID, amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("debit balance: %w", err)
	}

	return balance, true, nil
}

func (r *repository) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	query := `SELECT balance FROM users WHERE id = $1 AND deleted_at IS NULL`

	var balance decimal.Decimal
	err := r.db.GetContext(ctx, &balance, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("get balance: %w", core.ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

func (r *repository) ListForUser(
	ctx context.Context,
	userID string,
	params ListParams,
) ([]Transaction, int, error) {
	params.Normalize()

	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM user_transactions WHERE user_id = $1`, userID); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `SELECT ` + transactionColumns + `
		FROM user_transactions t
		WHERE t.user_id = $1
		ORDER BY t.created_at DESC
		LIMIT $2 OFFSET $3`

	var txs []Transaction
	if err := r.db.SelectContext(ctx, &txs, query,
		userID, params.PageSize, params.Offset()); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	return txs, total, nil
}

const pendingDepositFilter = `t.type = 'deposit'
		AND t.verified_at IS NULL
		AND t.deposit_receipt_path IS NOT NULL`

func (r *repository) ListPendingDeposits(
	ctx context.Context,
	params ListParams,
) ([]PendingDeposit, int, error) {
	params.Normalize()

	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM user_transactions t WHERE `+pendingDepositFilter); err != nil {
		return nil, 0, fmt.Errorf("count pending deposits: %w", err)
	}

	query := `SELECT ` + transactionColumns + `, u.full_name, u.email
		FROM user_transactions t
		JOIN users u ON u.id = t.user_id
		WHERE ` + pendingDepositFilter + `
		ORDER BY t.created_at DESC
		LIMIT $1 OFFSET $2`

	var deposits []PendingDeposit
	if err := r.db.SelectContext(ctx, &deposits, query,
		params.PageSize, params.Offset()); err != nil {
		return nil, 0, fmt.Errorf("list pending deposits: %w", err)
	}

	return deposits, total, nil
}

func (r *repository) PendingDepositTotals(
	ctx context.Context,
) (int, decimal.Decimal, error) {
	query := `SELECT COUNT(*) AS count, COALESCE(SUM(t.amount), 0) AS amount
		FROM user_transactions t
		WHERE ` + pendingDepositFilter

	var row struct {
		Count  int             `db:"count"`
		Amount decimal.Decimal `db:"amount"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, decimal.Zero, fmt.Errorf("pending deposit totals: %w", err)
	}

	return row.Count, row.Amount, nil
}
