// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/musicdesk/internal/access"
	"github.com/angelamos/musicdesk/internal/config"
	"github.com/angelamos/musicdesk/internal/core"
	"github.com/angelamos/musicdesk/internal/middleware"
)

func newTestJWTManager(t *testing.T, ttl time.Duration) *JWTManager {
	t.Helper()

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")
	require.NoError(t, GenerateKeyPair(privPath, pubPath))

	m, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:     privPath,
		PublicKeyPath:      pubPath,
		AccessTokenExpire:  ttl,
		RefreshTokenExpire: 24 * time.Hour,
		Issuer:             "musicdesk-test",
		Audience:           "musicdesk-portal",
	})
	require.NoError(t, err)
	return m
}

type memoryBlacklist struct {
	mu   sync.Mutex
	keys map[string]time.Duration
}

func newMemoryBlacklist() *memoryBlacklist {
	return &memoryBlacklist{keys: map[string]time.Duration{}}
}

func (b *memoryBlacklist) Set(
	_ context.Context,
	key string,
	_ any,
	ttl time.Duration,
) *redis.StatusCmd {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (b *memoryBlacklist) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := b.keys[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type stubUsers struct {
	user *UserInfo
}

func (s *stubUsers) GetByEmail(_ context.Context, _ string) (*UserInfo, error) {
	if s.user == nil {
		return nil, core.ErrNotFound
	}
	return s.user, nil
}

func (s *stubUsers) GetByID(_ context.Context, _ string) (*UserInfo, error) {
	if s.user == nil {
		return nil, core.ErrNotFound
	}
	return s.user, nil
}

func (s *stubUsers) Create(_ context.Context, in NewUser) (*UserInfo, error) {
	s.user = &UserInfo{
		ID:            "u1",
		Email:         in.Email,
		FullName:      in.FullName,
		Role:          access.RoleUser,
		AccountStatus: access.StatusPending,
	}
	return s.user, nil
}

func (s *stubUsers) IncrementTokenVersion(_ context.Context, _ string) error {
	s.user.TokenVersion++
	return nil
}

func (s *stubUsers) UpdatePassword(_ context.Context, _, hash string) error {
	s.user.PasswordHash = hash
	return nil
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestJWTManager(t, 15*time.Minute)

	signed, err := m.CreateAccessToken(AccessTokenClaims{
		UserID:        "u1",
		Role:          access.RoleAdmin,
		AccountStatus: access.StatusApproved,
		TokenVersion:  4,
	})
	require.NoError(t, err)
	require.NotEmpty(t, signed.JTI)

	claims, err := m.ParseAccessToken(context.Background(), signed.Token)
	require.NoError(t, err)

	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, access.RoleAdmin, claims.Role)
	assert.Equal(t, access.StatusApproved, claims.AccountStatus)
	assert.Equal(t, 4, claims.TokenVersion)
	assert.Equal(t, signed.JTI, claims.JTI)
	assert.WithinDuration(t, signed.ExpiresAt, claims.ExpiresAt, time.Second)
}

func TestParseAccessTokenRejectsForeignKey(t *testing.T) {
	issuer := newTestJWTManager(t, time.Minute)
	verifier := newTestJWTManager(t, time.Minute)

	signed, err := issuer.CreateAccessToken(AccessTokenClaims{UserID: "u1"})
	require.NoError(t, err)

	_, err = verifier.ParseAccessToken(context.Background(), signed.Token)
	require.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestVerifyAccessTokenUsesStoredAccount(t *testing.T) {
	m := newTestJWTManager(t, time.Minute)
	users := &stubUsers{user: &UserInfo{
		ID:            "u1",
		Role:          access.RoleUser,
		AccountStatus: access.StatusSuspended,
		TokenVersion:  1,
	}}
	svc := NewService(nil, m, users, newMemoryBlacklist())

	signed, err := m.CreateAccessToken(AccessTokenClaims{
		UserID:        "u1",
		Role:          access.RoleUser,
		AccountStatus: access.StatusApproved,
		TokenVersion:  1,
	})
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(context.Background(), signed.Token)
	require.NoError(t, err)
	assert.Equal(t, access.StatusSuspended, claims.AccountStatus)
}

func TestVerifyAccessTokenRejectsOldVersion(t *testing.T) {
	m := newTestJWTManager(t, time.Minute)
	users := &stubUsers{user: &UserInfo{ID: "u1", TokenVersion: 3}}
	svc := NewService(nil, m, users, newMemoryBlacklist())

	signed, err := m.CreateAccessToken(AccessTokenClaims{UserID: "u1", TokenVersion: 2})
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(context.Background(), signed.Token)
	require.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestLogoutBlacklistsAccessToken(t *testing.T) {
	m := newTestJWTManager(t, time.Minute)
	users := &stubUsers{user: &UserInfo{ID: "u1"}}
	blacklist := newMemoryBlacklist()
	svc := NewService(nil, m, users, blacklist)

	signed, err := m.CreateAccessToken(AccessTokenClaims{UserID: "u1"})
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(context.Background(), signed.Token)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), "", claims))
	assert.Contains(t, blacklist.keys, "blacklist:"+signed.JTI)

	_, err = svc.VerifyAccessToken(context.Background(), signed.Token)
	require.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestAccessRoutesForPendingUser(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)

	resp := svc.AccessRoutes(access.Subject{
		Authenticated: true,
		AccountStatus: access.StatusPending,
		Role:          access.RoleUser,
	})

	byLabel := map[string]RouteAccess{}
	for _, r := range resp.Routes {
		byLabel[r.Label] = r
	}

	assert.True(t, byLabel["pending"].Allowed)
	assert.False(t, byLabel["dashboard"].Allowed)
	assert.Equal(t, access.PathPending, byLabel["dashboard"].Redirect)
	assert.Equal(t, access.PathPending, byLabel["admin"].Redirect)
}

var _ middleware.TokenVerifier = (*Service)(nil)

func TestEnsureKeyPairKeepsExistingKeys(t *testing.T) {
	dir := t.TempDir()
	privPath := filepath.Join(dir, "keys", "private.pem")
	pubPath := filepath.Join(dir, "keys", "public.pem")

	created, err := EnsureKeyPair(privPath, pubPath)
	require.NoError(t, err)
	assert.True(t, created)

	cfg := config.JWTConfig{
		PrivateKeyPath:    privPath,
		PublicKeyPath:     pubPath,
		AccessTokenExpire: time.Minute,
	}
	first, err := NewJWTManager(cfg)
	require.NoError(t, err)

	created, err = EnsureKeyPair(privPath, pubPath)
	require.NoError(t, err)
	assert.False(t, created)

	second, err := NewJWTManager(cfg)
	require.NoError(t, err)
	assert.Equal(t, first.GetKeyID(), second.GetKeyID())
}

func TestChangePasswordRejectsSamePassword(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)

	err := svc.ChangePassword(context.Background(), "u1", "segredo-123", "segredo-123")
	assert.ErrorIs(t, err, ErrPasswordUnchanged)
}

func TestRevokeAccessTokenSkipsExpiredTokens(t *testing.T) {
	blacklist := newMemoryBlacklist()
	svc := NewService(nil, nil, nil, blacklist)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.RevokeAccessToken(context.Background(), "old", now.Add(-time.Second)))
	require.NoError(t, svc.RevokeAccessToken(context.Background(), "live", now.Add(10*time.Minute)))

	assert.NotContains(t, blacklist.keys, "blacklist:old")
	assert.Equal(t, 10*time.Minute, blacklist.keys["blacklist:live"])
}
