// AngelaMos | 2026
// service_test.go

package contractor

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/musicdesk/internal/audit"
	"github.com/angelamos/musicdesk/internal/storage"
)

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Put(
	_ context.Context,
	bucket, key string,
	body io.Reader,
	_ int64,
	_ string,
) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[bucket+"/"+key] = data
	return nil
}

func (m *memoryStore) Delete(_ context.Context, bucket, key string) error {
	if _, ok := m.objects[bucket+"/"+key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(m.objects, bucket+"/"+key)
	return nil
}

func (m *memoryStore) SignedURL(
	_ context.Context,
	bucket, key string,
	ttl time.Duration,
) (string, error) {
	return "https://files.test/" + bucket + "/" + key + "?ttl=" + ttl.String(), nil
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *memoryStore) {
	t.Helper()

	mockDB, m, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	store := &memoryStore{objects: map[string][]byte{}}
	svc := NewService(sqlx.NewDb(mockDB, "sqlmock"), store, slog.Default())
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	return svc, m, store
}

var contractorRowColumns = []string{
	"id", "name", "email", "phone", "address", "avatar_path", "balance",
	"status", "user_id", "created_at", "updated_at",
}

func contractorRow(avatar any, balance string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(contractorRowColumns).AddRow(
		"c1", "João Baptista", "joao@example.com", "923111222", "Luanda",
		avatar, balance, StatusActive, nil, now, now,
	)
}

func TestAdjustBalanceAddRecordsManualAdd(t *testing.T) {
	svc, m, _ := newTestService(t)

	m.ExpectBegin()
	m.ExpectQuery("SET balance = balance \\+ \\$2").
		WithArgs("c1", "250").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("1250"))
	m.ExpectQuery("INSERT INTO contractor_transactions").
		WithArgs(sqlmock.AnyArg(), "c1", TxManualAdd, "250", "Adição manual de saldo", nil, "admin-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	m.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectCommit()

	out, err := svc.AdjustBalance(context.Background(), "admin-1", "c1", AdjustBalanceRequest{
		Action: ActionAdd,
		Amount: decimal.NewFromInt(250),
	})

	require.NoError(t, err)
	assert.True(t, out.Balance.Equal(decimal.NewFromInt(1250)))
	assert.Equal(t, TxManualAdd, out.Transaction.Type)
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestAdjustBalanceRemoveStoresAbsoluteAmount(t *testing.T) {
	svc, m, _ := newTestService(t)

	m.ExpectBegin()
	m.ExpectQuery("SET balance = balance \\+ \\$2").
		WithArgs("c1", "-300").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("-100"))
	m.ExpectQuery("INSERT INTO contractor_transactions").
		WithArgs(sqlmock.AnyArg(), "c1", TxManualSubtract, "300", "Adiantamento", nil, "admin-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	m.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectCommit()

	out, err := svc.AdjustBalance(context.Background(), "admin-1", "c1", AdjustBalanceRequest{
		Action:      ActionRemove,
		Amount:      decimal.NewFromInt(300),
		Description: "Adiantamento",
	})

	require.NoError(t, err)
	assert.True(t, out.Balance.IsNegative())
	assert.True(t, out.Transaction.Amount.Equal(decimal.NewFromInt(300)))
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestAdjustBalanceRejectsBadInput(t *testing.T) {
	svc, m, _ := newTestService(t)

	_, err := svc.AdjustBalance(context.Background(), "admin-1", "c1", AdjustBalanceRequest{
		Action: ActionAdd,
		Amount: decimal.Zero,
	})
	require.Error(t, err)

	_, err = svc.AdjustBalance(context.Background(), "admin-1", "c1", AdjustBalanceRequest{
		Action: "double",
		Amount: decimal.NewFromInt(10),
	})
	require.ErrorIs(t, err, ErrInvalidAction)
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestAdjustBalanceUnknownContractorRollsBack(t *testing.T) {
	svc, m, _ := newTestService(t)

	m.ExpectBegin()
	m.ExpectQuery("SET balance = balance \\+ \\$2").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))
	m.ExpectRollback()

	_, err := svc.AdjustBalance(context.Background(), "admin-1", "missing", AdjustBalanceRequest{
		Action: ActionAdd,
		Amount: decimal.NewFromInt(10),
	})

	require.Error(t, err)
	assert.ErrorContains(t, err, "not found")
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestUploadAvatarReplacesPrevious(t *testing.T) {
	svc, m, store := newTestService(t)
	store.objects["contractor-documents/avatars/c1/1600000000000.png"] = []byte("old")

	file, err := storage.Inspect("eu.png", pngBytes(), storage.AvatarPolicy)
	require.NoError(t, err)

	m.ExpectQuery("FROM contractors WHERE id = \\$1").
		WithArgs("c1").
		WillReturnRows(contractorRow("avatars/c1/1600000000000.png", "0"))
	m.ExpectExec("UPDATE contractors SET avatar_path").
		WithArgs("c1", "avatars/c1/1700000000000.png").
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, err := svc.UploadAvatar(context.Background(), "c1", file)

	require.NoError(t, err)
	assert.Equal(t, "avatars/c1/1700000000000.png", *c.AvatarPath)
	assert.Contains(t, c.AvatarURL, "ttl=8760h0m0s")
	assert.NotContains(t, store.objects, "contractor-documents/avatars/c1/1600000000000.png")
	assert.Contains(t, store.objects, "contractor-documents/avatars/c1/1700000000000.png")
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestDeleteRemovesAvatar(t *testing.T) {
	svc, m, store := newTestService(t)
	store.objects["contractor-documents/avatars/c1/1.png"] = []byte("x")

	m.ExpectBegin()
	m.ExpectQuery("FROM contractors WHERE id = \\$1").
		WithArgs("c1").
		WillReturnRows(contractorRow("avatars/c1/1.png", "0"))
	m.ExpectExec("DELETE FROM contractors").
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectCommit()

	require.NoError(t, svc.Delete(context.Background(), "admin-1", "c1"))
	assert.Empty(t, store.objects)
	assert.NoError(t, m.ExpectationsWereMet())
}

// detailsArg matches an audit details payload holding at least these keys.
type detailsArg map[string]any

func (want detailsArg) Match(v driver.Value) bool {
	raw, ok := v.(string)
	if !ok {
		return false
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		return false
	}
	for k, val := range want {
		if got[k] != val {
			return false
		}
	}
	return true
}

func TestDeleteRecordsFinalBalance(t *testing.T) {
	svc, m, _ := newTestService(t)

	m.ExpectBegin()
	m.ExpectQuery("FROM contractors WHERE id = \\$1").
		WithArgs("c1").
		WillReturnRows(contractorRow(nil, "1250"))
	m.ExpectExec("DELETE FROM contractors").
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), "admin-1", audit.ActionContractorDeleted,
			audit.EntityContractor, "c1",
			detailsArg{"name": "João Baptista", "balance": "1250"}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectCommit()

	require.NoError(t, svc.Delete(context.Background(), "admin-1", "c1"))
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestDeleteAuditFailureKeepsContractor(t *testing.T) {
	svc, m, store := newTestService(t)
	store.objects["contractor-documents/avatars/c1/1.png"] = []byte("x")

	m.ExpectBegin()
	m.ExpectQuery("FROM contractors WHERE id = \\$1").
		WithArgs("c1").
		WillReturnRows(contractorRow("avatars/c1/1.png", "0"))
	m.ExpectExec("DELETE FROM contractors").
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("audit down"))
	m.ExpectRollback()

	require.Error(t, svc.Delete(context.Background(), "admin-1", "c1"))
	assert.Contains(t, store.objects, "contractor-documents/avatars/c1/1.png")
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestAdjustBalanceHandlerValidatesAction(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/contractors/c1/balance",
		bytes.NewReader([]byte(`{"action":"double","amount":"10"}`)))
	rec := httptest.NewRecorder()

	NewHandler(svc, nil).AdjustBalance(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "action must be one of [add remove]")
}

func pngBytes() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53, 0xde,
	}
}
