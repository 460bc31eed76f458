// AngelaMos | 2026
// service_test.go

package wallet

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/musicdesk/internal/config"
	"github.com/angelamos/musicdesk/internal/middleware"
	"github.com/angelamos/musicdesk/internal/notification"
	"github.com/angelamos/musicdesk/internal/storage"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
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
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = data
	return nil
}

func (m *memoryStore) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+"/"+key)
	m.deleted = append(m.deleted, bucket+"/"+key)
	return nil
}

func (m *memoryStore) SignedURL(
	_ context.Context,
	bucket, key string,
	_ time.Duration,
) (string, error) {
	return "https://files.test/" + bucket + "/" + key, nil
}

type recordingNotifier struct {
	notices []notification.Notice
}

func (n *recordingNotifier) Notify(_ context.Context, notice notification.Notice) {
	n.notices = append(n.notices, notice)
}

type fixture struct {
	svc      *Service
	mock     sqlmock.Sqlmock
	store    *memoryStore
	notifier *recordingNotifier
}

func newFixture(t *testing.T, policy string) *fixture {
	t.Helper()

	mockDB, m, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	store := newMemoryStore()
	notifier := &recordingNotifier{}
	svc := NewService(
		sqlx.NewDb(mockDB, "sqlmock"),
		store,
		notifier,
		config.WalletConfig{DepositCredit: policy, Currency: "Kz"},
		slog.Default(),
	)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	return &fixture{svc: svc, mock: m, store: store, notifier: notifier}
}

var txColumns = []string{
	"id", "user_id", "type", "amount", "description", "payment_method",
	"admin_id", "verified_at", "verified_by", "deposit_receipt_path",
	"request_id", "created_at",
}

func depositRow(verified bool) *sqlmock.Rows {
	var verifiedAt any
	if verified {
		verifiedAt = time.Now()
	}
	return sqlmock.NewRows(txColumns).AddRow(
		"tx1", "u1", TypeDeposit, "5000", "Depósito via P2P - Aguardando aprovação",
		MethodP2P, nil, verifiedAt, nil, "u1/1700000000000_recibo.pdf", nil, time.Now(),
	)
}

func receipt(t *testing.T) *storage.File {
	t.Helper()
	f, err := storage.Inspect("recibo.pdf", []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"), storage.ReceiptPolicy)
	require.NoError(t, err)
	return f
}

func createdAtRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now())
}

func TestSubmitDepositOnApprovalLeavesBalance(t *testing.T) {
	f := newFixture(t, config.DepositCreditOnApproval)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("INSERT INTO user_transactions").
		WithArgs(sqlmock.AnyArg(), "u1", TypeDeposit, sqlmock.AnyArg(),
			"Depósito via MultiCaixa Express - Aguardando aprovação",
			sqlmock.AnyArg(), nil, sqlmock.AnyArg(), nil).
		WillReturnRows(createdAtRow())
	f.mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	tx, err := f.svc.SubmitDeposit(context.Background(), "u1", DepositInput{
		Amount:        decimal.NewFromInt(5000),
		PaymentMethod: MethodMulticaixa,
		Receipt:       receipt(t),
	})

	require.NoError(t, err)
	assert.False(t, tx.IsVerified())
	assert.Equal(t, "u1/1700000000000_recibo.pdf", *tx.DepositReceiptPath)
	assert.Contains(t, f.store.objects, "receipts/u1/1700000000000_recibo.pdf")
	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, "Depósito em Análise", f.notifier.notices[0].Title)
	assert.Equal(t, "Seu depósito de 5000 Kz está sendo analisado.", f.notifier.notices[0].Description)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSubmitDepositOnSubmitCreditsImmediately(t *testing.T) {
	f := newFixture(t, config.DepositCreditOnSubmit)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("INSERT INTO user_transactions").WillReturnRows(createdAtRow())
	f.mock.ExpectQuery("SET balance = balance \\+ \\$2").
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("5000"))
	f.mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	_, err := f.svc.SubmitDeposit(context.Background(), "u1", DepositInput{
		Amount:        decimal.NewFromInt(5000),
		PaymentMethod: MethodP2P,
		Receipt:       receipt(t),
	})

	require.NoError(t, err)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSubmitDepositValidation(t *testing.T) {
	f := newFixture(t, config.DepositCreditOnApproval)

	_, err := f.svc.SubmitDeposit(context.Background(), "u1", DepositInput{
		Amount:        decimal.Zero,
		PaymentMethod: MethodP2P,
		Receipt:       receipt(t),
	})
	require.Error(t, err)

	_, err = f.svc.SubmitDeposit(context.Background(), "u1", DepositInput{
		Amount:        decimal.NewFromInt(10),
		PaymentMethod: "paypal",
		Receipt:       receipt(t),
	})
	require.ErrorIs(t, err, ErrInvalidMethod)

	_, err = f.svc.SubmitDeposit(context.Background(), "u1", DepositInput{
		Amount:        decimal.NewFromInt(10),
		PaymentMethod: MethodP2P,
	})
	require.ErrorIs(t, err, ErrMissingReceipt)
	assert.Empty(t, f.store.objects)
}

func TestSubmitDepositRemovesReceiptWhenInsertFails(t *testing.T) {
	f := newFixture(t, config.DepositCreditOnApproval)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("INSERT INTO user_transactions").WillReturnError(assert.AnError)
	f.mock.ExpectRollback()

	_, err := f.svc.SubmitDeposit(context.Background(), "u1", DepositInput{
		Amount:        decimal.NewFromInt(100),
		PaymentMethod: MethodBankTransfer,
		Receipt:       receipt(t),
	})

	require.Error(t, err)
	assert.Empty(t, f.store.objects)
	assert.Len(t, f.store.deleted, 1)
	assert.Empty(t, f.notifier.notices)
}

func TestApproveDepositCreditsOnApproval(t *testing.T) {
	f := newFixture(t, config.DepositCreditOnApproval)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FROM user_transactions t\\s+WHERE t.id = \\$1\\s+FOR UPDATE").
		WithArgs("tx1").
		WillReturnRows(depositRow(false))
	f.mock.ExpectExec("UPDATE user_transactions").
		WithArgs("tx1", "admin-1", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery("SET balance = balance \\+ \\$2").
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("5000"))
	f.mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	tx, err := f.svc.ApproveDeposit(context.Background(), "admin-1", "tx1")

	require.NoError(t, err)
	assert.True(t, tx.IsVerified())
	assert.NotNil(t, tx.DepositReceiptPath)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestApproveDepositOnSubmitOnlyConfirms(t *testing.T) {
	f := newFixture(t, config.DepositCreditOnSubmit)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE").WithArgs("tx1").WillReturnRows(depositRow(false))
	f.mock.ExpectExec("UPDATE user_transactions").
		WithArgs("tx1", "admin-1", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	_, err := f.svc.ApproveDeposit(context.Background(), "admin-1", "tx1")

	require.NoError(t, err)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestApproveDepositTwiceFails(t *testing.T) {
	f := newFixture(t, config.DepositCreditOnApproval)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE").WithArgs("tx1").WillReturnRows(depositRow(true))
	f.mock.ExpectRollback()

	_, err := f.svc.ApproveDeposit(context.Background(), "admin-1", "tx1")

	require.ErrorIs(t, err, ErrAlreadyVerified)
	assert.Empty(t, f.notifier.notices)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRejectDepositOnSubmitReverses(t *testing.T) {
	f := newFixture(t, config.DepositCreditOnSubmit)
	f.store.objects["receipts/u1/1700000000000_recibo.pdf"] = []byte("pdf")

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE").WithArgs("tx1").WillReturnRows(depositRow(false))
	f.mock.ExpectExec("UPDATE user_transactions").
		WithArgs("tx1", "admin-1", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery("SET balance = balance \\+ \\$2").
		WithArgs("u1", "-5000").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("0"))
	f.mock.ExpectQuery("INSERT INTO user_transactions").
		WithArgs(sqlmock.AnyArg(), "u1", TypeDepositReversal, "-5000",
			sqlmock.AnyArg(), nil, "admin-1", nil, nil).
		WillReturnRows(createdAtRow())
	f.mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	tx, err := f.svc.RejectDeposit(context.Background(), "admin-1", "tx1")

	require.NoError(t, err)
	assert.Nil(t, tx.DepositReceiptPath)
	assert.Empty(t, f.store.objects)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRejectDepositOnApprovalLeavesBalance(t *testing.T) {
	f := newFixture(t, config.DepositCreditOnApproval)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE").WithArgs("tx1").WillReturnRows(depositRow(false))
	f.mock.ExpectExec("UPDATE user_transactions").
		WithArgs("tx1", "admin-1", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	_, err := f.svc.RejectDeposit(context.Background(), "admin-1", "tx1")

	require.NoError(t, err)
	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, notification.TypeDeposit, f.notifier.notices[0].Type)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAddBalanceDefaultsDescription(t *testing.T) {
	f := newFixture(t, config.DepositCreditOnApproval)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SET balance = balance \\+ \\$2").
		WithArgs("u1", "100").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("1100"))
	f.mock.ExpectQuery("INSERT INTO user_transactions").
		WithArgs(sqlmock.AnyArg(), "u1", TypeAdminAdd, "100",
			DefaultAdminAddDescription, nil, "admin-1", nil, nil).
		WillReturnRows(createdAtRow())
	f.mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	result, err := f.svc.AddBalance(context.Background(), "admin-1", "u1", decimal.NewFromInt(100), "  ")

	require.NoError(t, err)
	assert.True(t, result.Balance.Equal(decimal.NewFromInt(1100)))
	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, "Saldo Adicionado", f.notifier.notices[0].Title)
	assert.Equal(t, "Foram adicionados 100 Kz à sua conta.", f.notifier.notices[0].Description)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAddBalanceTwiceAddsTwice(t *testing.T) {
	f := newFixture(t, config.DepositCreditOnApproval)

	for _, balance := range []string{"1100", "1200"} {
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("SET balance = balance \\+ \\$2").
			WithArgs("u1", "100").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(balance))
		f.mock.ExpectQuery("INSERT INTO user_transactions").
			WithArgs(sqlmock.AnyArg(), "u1", TypeAdminAdd, "100",
				"Bónus", nil, "admin-1", nil, nil).
			WillReturnRows(createdAtRow())
		f.mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()
	}

	first, err := f.svc.AddBalance(context.Background(), "admin-1", "u1", decimal.NewFromInt(100), "Bónus")
	require.NoError(t, err)
	second, err := f.svc.AddBalance(context.Background(), "admin-1", "u1", decimal.NewFromInt(100), "Bónus")
	require.NoError(t, err)

	assert.True(t, first.Balance.Equal(decimal.NewFromInt(1100)))
	assert.True(t, second.Balance.Equal(decimal.NewFromInt(1200)))
	assert.NotEqual(t, first.Transaction.ID, second.Transaction.ID)
	assert.Len(t, f.notifier.notices, 2)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAddBalanceRejectsNonPositive(t *testing.T) {
	f := newFixture(t, config.DepositCreditOnApproval)

	_, err := f.svc.AddBalance(context.Background(), "admin-1", "u1", decimal.NewFromInt(-5), "")

	require.Error(t, err)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestChargeReportsShortfall(t *testing.T) {
	mockDB, m, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "sqlmock")

	m.ExpectQuery("balance >= \\$2").
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))
	m.ExpectQuery("SELECT balance FROM users").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("40"))

	_, err = Charge(context.Background(), db, "u1", "r1", decimal.NewFromInt(350), "Acompanhamento")

	require.ErrorIs(t, err, ErrInsufficientBalance)
	var shortfall *InsufficientBalanceError
	require.ErrorAs(t, err, &shortfall)
	assert.Equal(t,
		"insufficient balance: service costs 350 Kz, available balance is 40 Kz",
		shortfall.Error())
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestChargeWritesNegativeServiceCharge(t *testing.T) {
	mockDB, m, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "sqlmock")

	m.ExpectQuery("balance >= \\$2").
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("950"))
	m.ExpectQuery("INSERT INTO user_transactions").
		WithArgs(sqlmock.AnyArg(), "u1", TypeServiceCharge, "-50",
			"Revisão", nil, nil, nil, "r1").
		WillReturnRows(createdAtRow())

	balance, err := Charge(context.Background(), db, "u1", "r1", decimal.NewFromInt(50), "Revisão")

	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(950)))
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestSubmitDepositHandlerRejectsMissingReceipt(t *testing.T) {
	f := newFixture(t, config.DepositCreditOnApproval)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("amount", "100"))
	require.NoError(t, mw.WriteField("payment_method", MethodP2P))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/wallet/deposits", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = req.WithContext(middleware.ContextWithClaims(req.Context(), &middleware.AccessTokenClaims{
		UserID:        "u1",
		Role:          "user",
		AccountStatus: "approved",
	}))

	passthrough := func(next http.Handler) http.Handler { return next }
	r := chi.NewRouter()
	NewHandler(f.svc, nil).RegisterRoutes(r, passthrough, passthrough)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.store.objects)
}
