// AngelaMos | 2026
// reports.go

package admin

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelamos/musicdesk/internal/core"
	"github.com/angelamos/musicdesk/internal/wallet"
)

type StatusCount struct {
	Status string          `db:"status" json:"status"`
	Count  int             `db:"count"  json:"count"`
	Amount decimal.Decimal `db:"amount" json:"amount"`
}

type Summary struct {
	UsersByStatus        []StatusCount   `json:"users_by_status"`
	RequestsByStatus     []StatusCount   `json:"requests_by_status"`
	Revenue              decimal.Decimal `json:"revenue"`
	PendingDeposits      int             `json:"pending_deposits"`
	PendingDepositAmount decimal.Decimal `json:"pending_deposit_amount"`
	ContractorBalances   decimal.Decimal `json:"contractor_balances"`
	TaskPayouts          decimal.Decimal `json:"task_payouts"`
	AverageRating        decimal.Decimal `json:"average_rating"`
	ReviewCount          int             `json:"review_count"`
	Currency             string          `json:"currency"`
}

type MemberSummary struct {
	RequestsByStatus []StatusCount   `json:"requests_by_status"`
	TotalSpent       decimal.Decimal `json:"total_spent"`
	Balance          decimal.Decimal `json:"balance"`
	Currency         string          `json:"currency"`
}

// Reports runs the aggregate queries behind the reports pages.
type Reports struct {
	db core.DBTX
}

func NewReports(db core.DBTX) *Reports {
	return &Reports{db: db}
}

// revenueStatuses are the request states whose price counts as earned or
// committed. Cancelled requests were refunded.
var revenueStatuses = map[string]bool{
	"pending":     true,
	"in_progress": true,
	"completed":   true,
}

func (r *Reports) Summary(ctx context.Context) (*Summary, error) {
	out := &Summary{Currency: core.Currency}

	if err := r.db.SelectContext(ctx, &out.UsersByStatus, `
		SELECT account_status AS status, COUNT(*) AS count, COALESCE(SUM(balance), 0) AS amount
		FROM users
		WHERE deleted_at IS NULL
		GROUP BY account_status
		ORDER BY account_status`); err != nil {
		return nil, fmt.Errorf("users by status: %w", err)
	}

	if err := r.db.SelectContext(ctx, &out.RequestsByStatus, `
		SELECT status, COUNT(*) AS count, COALESCE(SUM(price), 0) AS amount
		FROM service_requests
		GROUP BY status
		ORDER BY status`); err != nil {
		return nil, fmt.Errorf("requests by status: %w", err)
	}

	for _, sc := range out.RequestsByStatus {
		if revenueStatuses[sc.Status] {
			out.Revenue = out.Revenue.Add(sc.Amount)
		}
	}

	count, amount, err := wallet.NewRepository(r.db).PendingDepositTotals(ctx)
	if err != nil {
		return nil, err
	}
	out.PendingDeposits, out.PendingDepositAmount = count, amount

	if err := r.db.GetContext(ctx, &out.ContractorBalances,
		`SELECT COALESCE(SUM(balance), 0) FROM contractors`); err != nil {
		return nil, fmt.Errorf("contractor balances: %w", err)
	}

	if err := r.db.GetContext(ctx, &out.TaskPayouts, `
		SELECT COALESCE(SUM(amount), 0)
		FROM contractor_transactions
		WHERE type = 'task_payment'`); err != nil {
		return nil, fmt.Errorf("task payouts: %w", err)
	}

	var rating struct {
		Average decimal.Decimal `db:"average"`
		Count   int             `db:"count"`
	}
	if err := r.db.GetContext(ctx, &rating, `
		SELECT COALESCE(ROUND(AVG(rating)::numeric, 2), 0) AS average, COUNT(*) AS count
		FROM reviews`); err != nil {
		return nil, fmt.Errorf("review rating: %w", err)
	}
	out.AverageRating, out.ReviewCount = rating.Average, rating.Count

	if out.UsersByStatus == nil {
		out.UsersByStatus = []StatusCount{}
	}
	if out.RequestsByStatus == nil {
		out.RequestsByStatus = []StatusCount{}
	}

	return out, nil
}

// Member summarises one user's own activity.
func (r *Reports) Member(ctx context.Context, userID string) (*MemberSummary, error) {
	out := &MemberSummary{Currency: core.Currency}

	if err := r.db.SelectContext(ctx, &out.RequestsByStatus, `
		SELECT status, COUNT(*) AS count, COALESCE(SUM(price), 0) AS amount
		FROM service_requests
		WHERE user_id = $1
		GROUP BY status
		ORDER BY status`, userID); err != nil {
		return nil, fmt.Errorf("member requests by status: %w", err)
	}

	if err := r.db.GetContext(ctx, &out.TotalSpent, `
		SELECT COALESCE(-SUM(amount), 0)
		FROM user_transactions
		WHERE user_id = $1 AND type IN ('service_charge', 'refund')`, userID); err != nil {
		return nil, fmt.Errorf("member spend: %w", err)
	}

	balance, err := wallet.NewRepository(r.db).Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	out.Balance = balance

	if out.RequestsByStatus == nil {
		out.RequestsByStatus = []StatusCount{}
	}

	return out, nil
}
