// AngelaMos | 2026
// reports_test.go

package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/musicdesk/internal/middleware"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, m, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), m
}

func TestSummaryExcludesCancelledFromRevenue(t *testing.T) {
	db, m := newMock(t)

	m.ExpectQuery("FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "amount"}).
			AddRow("approved", 3, "1200").
			AddRow("pending", 1, "0"))
	m.ExpectQuery("FROM service_requests").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "amount"}).
			AddRow("cancelled", 1, "370").
			AddRow("completed", 2, "700").
			AddRow("pending", 1, "50"))
	m.ExpectQuery("FROM user_transactions t").
		WillReturnRows(sqlmock.NewRows([]string{"count", "amount"}).AddRow(2, "1500"))
	m.ExpectQuery("FROM contractors").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("-25"))
	m.ExpectQuery("FROM contractor_transactions").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("400"))
	m.ExpectQuery("FROM reviews").
		WillReturnRows(sqlmock.NewRows([]string{"average", "count"}).AddRow("4.50", 4))

	summary, err := NewReports(db).Summary(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "750", summary.Revenue.String())
	assert.Equal(t, 2, summary.PendingDeposits)
	assert.Equal(t, "1500", summary.PendingDepositAmount.String())
	assert.Equal(t, "-25", summary.ContractorBalances.String())
	assert.Equal(t, "400", summary.TaskPayouts.String())
	assert.Equal(t, "4.5", summary.AverageRating.String())
	assert.Equal(t, 4, summary.ReviewCount)
	assert.Len(t, summary.UsersByStatus, 2)
	assert.Equal(t, "Kz", summary.Currency)
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestMemberReportScopedToCaller(t *testing.T) {
	db, m := newMock(t)

	m.ExpectQuery("FROM service_requests").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "amount"}).
			AddRow("completed", 1, "350"))
	m.ExpectQuery("FROM user_transactions").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"spent"}).AddRow("350"))
	m.ExpectQuery("SELECT balance FROM users").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("650"))

	ctx := middleware.ContextWithClaims(context.Background(), &middleware.AccessTokenClaims{UserID: "u1"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reports/me", nil).WithContext(ctx)

	NewHandler(HandlerConfig{Reports: NewReports(db)}).MemberReport(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_spent":"350"`)
	assert.Contains(t, rec.Body.String(), `"balance":"650"`)
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestMemberReportUnknownUser(t *testing.T) {
	db, m := newMock(t)

	m.ExpectQuery("FROM service_requests").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "amount"}))
	m.ExpectQuery("FROM user_transactions").
		WillReturnRows(sqlmock.NewRows([]string{"spent"}).AddRow("0"))
	m.ExpectQuery("SELECT balance FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))

	ctx := middleware.ContextWithClaims(context.Background(), &middleware.AccessTokenClaims{UserID: "ghost"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reports/me", nil).WithContext(ctx)

	NewHandler(HandlerConfig{Reports: NewReports(db)}).MemberReport(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRuntimeStatsWithoutPools(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(HandlerConfig{}).GetSystemStats(rec, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy":false`)
	assert.Contains(t, rec.Body.String(), `"go_version"`)
}
