// AngelaMos | 2026
// core_test.go

package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInTxCommitsOnSuccess(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "sqlmock")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = InTx(t.Context(), db, func(tx *sqlx.Tx) error {
		_, execErr := tx.ExecContext(t.Context(), "UPDATE users SET balance = balance + 1")
		return execErr
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "sqlmock")

	sentinel := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err = InTx(t.Context(), db, func(tx *sqlx.Tx) error {
		return sentinel
	})

	require.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnPanic(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "sqlmock")

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "ledger broke", func() {
		_ = InTx(t.Context(), db, func(tx *sqlx.Tx) error {
			panic("ledger broke")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequireRowsAffected(t *testing.T) {
	err := RequireRowsAffected(sqlmock.NewResult(0, 0), "complete task", ErrConflict)
	require.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "complete task")

	assert.NoError(t, RequireRowsAffected(sqlmock.NewResult(0, 1), "op", ErrConflict))
}

func TestIsDuplicateKeyError(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, IsDuplicateKeyError(dup))
	assert.False(t, IsDuplicateKeyError(fk))
	assert.True(t, IsForeignKeyError(fk))
	assert.False(t, IsDuplicateKeyError(errors.New("other")))
}

func TestJSONErrorRendersAppError(t *testing.T) {
	rec := httptest.NewRecorder()

	JSONError(rec, ForbiddenError("admins only").WithDetails(map[string]any{
		"redirect": "/",
	}))

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])

	errBody := body["error"].(map[string]any)
	assert.Equal(t, "FORBIDDEN", errBody["code"])
	assert.Equal(t, "admins only", errBody["message"])
	assert.Equal(t, "/", errBody["details"].(map[string]any)["redirect"])
}

func TestJSONErrorHidesPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()

	JSONError(rec, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestPaginatedMeta(t *testing.T) {
	rec := httptest.NewRecorder()

	Paginated(rec, []string{"a"}, 2, 20, 41)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Meta)
	assert.Equal(t, 3, body.Meta.TotalPages)
	assert.Equal(t, 2, body.Meta.Page)
}

func TestFormatValidationError(t *testing.T) {
	type input struct {
		FullName string `validate:"required"`
		Rating   int    `validate:"gte=1,lte=5"`
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(input{Rating: 9})
	require.Error(t, err)

	msg := FormatValidationError(err)
	assert.Contains(t, msg, "full_name is required")
	assert.Contains(t, msg, "rating must be at most 5")
}

func TestPositiveAmount(t *testing.T) {
	assert.NoError(t, PositiveAmount(decimal.RequireFromString("350")))
	assert.ErrorIs(t, PositiveAmount(decimal.Zero), ErrInvalidInput)
	assert.ErrorIs(t, PositiveAmount(decimal.RequireFromString("-5")), ErrInvalidInput)
	assert.ErrorIs(t, PositiveAmount(decimal.RequireFromString("1.005")), ErrInvalidInput)
	assert.Equal(t, "40 Kz", FormatMoney(decimal.NewFromInt(40)))
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)

	ok, err := VerifyPassword("correct horse battery", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPayloadSignature(t *testing.T) {
	key := []byte("signing-key")
	sig := SignPayload(key, "receipts/u1/file.png:1700000000")

	assert.True(t, VerifyPayloadSignature(key, "receipts/u1/file.png:1700000000", sig))
	assert.False(t, VerifyPayloadSignature(key, "receipts/u1/other.png:1700000000", sig))
	assert.False(t, VerifyPayloadSignature([]byte("other"), "receipts/u1/file.png:1700000000", sig))
}

func TestTimingSafeVerifyUnknownAccount(t *testing.T) {
	ok, upgraded, err := VerifyPasswordTimingSafe("anything", nil)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, upgraded)
}

func TestRehashOnWeakerParams(t *testing.T) {
	weak := "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$"
	assert.True(t, needsRehash(weak+"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"))

	hash, err := HashPassword("pw")
	require.NoError(t, err)
	assert.False(t, needsRehash(hash))
	assert.True(t, needsRehash("not-a-hash"))
}

func TestSampleRateFallsBack(t *testing.T) {
	assert.Equal(t, defaultSampleRate, sampleRate(0))
	assert.Equal(t, defaultSampleRate, sampleRate(1.5))
	assert.Equal(t, 0.25, sampleRate(0.25))
}

func TestTraceIDEmptyWithoutSpan(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))
}
