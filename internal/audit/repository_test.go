// AngelaMos | 2026
// repository_test.go

package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, m, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), m
}

func TestRecordWritesJSONDetails(t *testing.T) {
	db, m := newMock(t)

	m.ExpectExec("INSERT INTO audit_logs").
		WithArgs(
			sqlmock.AnyArg(),
			"admin-1",
			ActionUserStatusChanged,
			EntityProfile,
			"user-1",
			`{"from":"pending","to":"approved"}`,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := Record(context.Background(), db, Entry{
		ActorID:    "admin-1",
		Action:     ActionUserStatusChanged,
		EntityType: EntityProfile,
		EntityID:   "user-1",
		Details:    map[string]any{"from": "pending", "to": "approved"},
	})

	require.NoError(t, err)
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestRecordWithoutActorStoresNull(t *testing.T) {
	db, m := newMock(t)

	m.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), nil, ActionAdminBootstrapped, EntityProfile, "u1", "{}").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, Record(context.Background(), db, Entry{
		Action:     ActionAdminBootstrapped,
		EntityType: EntityProfile,
		EntityID:   "u1",
	}))
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestListPaginatesTwentyPerPage(t *testing.T) {
	db, m := newMock(t)
	now := time.Now()

	m.ExpectQuery("SELECT COUNT\\(\\*\\) FROM audit_logs a WHERE a.action = \\$1").
		WithArgs(ActionRequestCreated).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(45))

	m.ExpectQuery("FROM audit_logs a").
		WithArgs(ActionRequestCreated, 20, 20).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "actor_id", "actor_name", "action", "entity_type", "entity_id", "details", "created_at",
		}).AddRow("l1", "u1", "Ana", ActionRequestCreated, EntityServiceRequest, "r1", []byte(`{"price":"350"}`), now))

	logs, total, err := NewRepository(db).List(context.Background(), ListParams{
		Page:   2,
		Action: ActionRequestCreated,
	})

	require.NoError(t, err)
	assert.Equal(t, 45, total)
	require.Len(t, logs, 1)
	assert.JSONEq(t, `{"price":"350"}`, string(logs[0].Details))
	assert.Equal(t, "Ana", *logs[0].ActorName)
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestHandlerListReturnsMeta(t *testing.T) {
	db, m := newMock(t)

	m.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	m.ExpectQuery("FROM audit_logs a").
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "actor_id", "actor_name", "action", "entity_type", "entity_id", "details", "created_at",
		}))

	rec := httptest.NewRecorder()
	NewHandler(NewRepository(db)).List(rec, httptest.NewRequest(http.MethodGet, "/admin/audit-logs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"page_size":20`)
}
