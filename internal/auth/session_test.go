// AngelaMos | 2026
// session_test.go

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/musicdesk/internal/access"
	"github.com/angelamos/musicdesk/internal/core"
)

var tokenRowColumns = []string{
	"id", "user_id", "token_hash", "family_id", "expires_at", "created_at",
	"is_used", "used_at", "revoked_at", "replaced_by_id", "user_agent", "ip_address",
}

func TestSessionState(t *testing.T) {
	now := time.Now()
	revoked := now.Add(-time.Minute)

	tests := []struct {
		name  string
		token RefreshToken
		want  SessionState
	}{
		{"active", RefreshToken{ExpiresAt: now.Add(time.Hour)}, SessionActive},
		{"expired", RefreshToken{ExpiresAt: now}, SessionExpired},
		{"revoked", RefreshToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}, SessionRevoked},
		{"rotated beats expired", RefreshToken{ExpiresAt: now.Add(-time.Hour), IsUsed: true}, SessionRotated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.token.State(now))
		})
	}
}

func newSessionService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, m, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	users := &stubUsers{user: &UserInfo{
		ID:            "u1",
		Email:         "ana@example.com",
		Role:          access.RoleUser,
		AccountStatus: access.StatusApproved,
	}}

	svc := NewService(
		NewRepository(sqlx.NewDb(mockDB, "sqlmock")),
		newTestJWTManager(t, time.Minute),
		users,
		newMemoryBlacklist(),
	)
	return svc, m
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, m := newSessionService(t)
	now := time.Now()

	m.ExpectQuery("FROM refresh_tokens WHERE token_hash").
		WithArgs(core.HashToken("old-token")).
		WillReturnRows(sqlmock.NewRows(tokenRowColumns).AddRow(
			"t1", "u1", "h", "fam", now.Add(time.Hour), now,
			false, nil, nil, nil, "", "",
		))
	m.ExpectExec("UPDATE refresh_tokens").
		WithArgs("t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	m.ExpectQuery("INSERT INTO refresh_tokens").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	resp, err := svc.Refresh(context.Background(), "old-token", "ua", "127.0.0.1")

	require.NoError(t, err)
	assert.NotEmpty(t, resp.Tokens.RefreshToken)
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestRefreshLosingRotationRevokesFamily(t *testing.T) {
	svc, m := newSessionService(t)
	now := time.Now()

	m.ExpectQuery("FROM refresh_tokens WHERE token_hash").
		WillReturnRows(sqlmock.NewRows(tokenRowColumns).AddRow(
			"t1", "u1", "h", "fam", now.Add(time.Hour), now,
			false, nil, nil, nil, "", "",
		))
	m.ExpectExec("UPDATE refresh_tokens").
		WithArgs("t1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	m.ExpectExec("UPDATE refresh_tokens").
		WithArgs("fam").
		WillReturnResult(sqlmock.NewResult(0, 2))

	_, err := svc.Refresh(context.Background(), "old-token", "", "")

	assert.ErrorIs(t, err, ErrTokenReuse)
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestRefreshReusedTokenRevokesFamily(t *testing.T) {
	svc, m := newSessionService(t)
	now := time.Now()

	m.ExpectQuery("FROM refresh_tokens WHERE token_hash").
		WillReturnRows(sqlmock.NewRows(tokenRowColumns).AddRow(
			"t1", "u1", "h", "fam", now.Add(time.Hour), now,
			true, now, nil, "t2", "", "",
		))
	m.ExpectExec("UPDATE refresh_tokens").
		WithArgs("fam").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := svc.Refresh(context.Background(), "old-token", "", "")

	assert.ErrorIs(t, err, ErrTokenReuse)
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestPurgeExpiredSessionsKeepsRetentionWindow(t *testing.T) {
	svc, m := newSessionService(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	m.ExpectExec("DELETE FROM refresh_tokens").
		WithArgs(fixed.Add(-sessionRetention)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	removed, err := svc.PurgeExpiredSessions(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(4), removed)
}
