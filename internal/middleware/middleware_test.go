// AngelaMos | 2026
// middleware_test.go

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/musicdesk/internal/access"
	"github.com/angelamos/musicdesk/internal/config"
	"github.com/angelamos/musicdesk/internal/core"
)

type stubVerifier struct {
	claims *AccessTokenClaims
	err    error
}

func (s stubVerifier) VerifyAccessToken(
	_ context.Context,
	_ string,
) (*AccessTokenClaims, error) {
	return s.claims, s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	return errBody
}

func TestAuthenticatorRejectsMissingToken(t *testing.T) {
	h := Authenticator(stubVerifier{})(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticatorMapsExpiredToken(t *testing.T) {
	h := Authenticator(stubVerifier{err: core.ErrTokenExpired})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_EXPIRED", decodeError(t, rec)["code"])
}

func TestAuthenticatorStoresClaims(t *testing.T) {
	claims := &AccessTokenClaims{
		UserID:        "u-1",
		Role:          access.RoleUser,
		AccountStatus: access.StatusApproved,
	}

	var seen access.Subject
	h := Authenticator(stubVerifier{claims: claims})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = SubjectFromContext(r.Context())
			assert.Equal(t, claims, GetClaims(r.Context()))
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer abc")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, access.Subject{
		Authenticated: true,
		AccountStatus: access.StatusApproved,
		Role:          access.RoleUser,
	}, seen)
}

func TestRequireAccessCarriesRedirect(t *testing.T) {
	tests := []struct {
		name     string
		claims   *AccessTokenClaims
		class    access.RouteClass
		status   int
		redirect string
	}{
		{
			name:     "pending member",
			claims:   &AccessTokenClaims{UserID: "u", Role: "user", AccountStatus: "pending"},
			class:    access.Member,
			status:   http.StatusForbidden,
			redirect: access.PathPending,
		},
		{
			name:     "suspended member",
			claims:   &AccessTokenClaims{UserID: "u", Role: "user", AccountStatus: "suspended"},
			class:    access.Member,
			status:   http.StatusForbidden,
			redirect: access.PathSuspended,
		},
		{
			name:     "approved user on admin",
			claims:   &AccessTokenClaims{UserID: "u", Role: "user", AccountStatus: "approved"},
			class:    access.Admin,
			status:   http.StatusForbidden,
			redirect: access.PathHome,
		},
		{
			name:     "session without status",
			claims:   &AccessTokenClaims{UserID: "u", Role: "admin"},
			class:    access.Admin,
			status:   http.StatusForbidden,
			redirect: access.PathAuth,
		},
		{
			name:     "anonymous",
			class:    access.Member,
			status:   http.StatusUnauthorized,
			redirect: access.PathAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.claims != nil {
				req = req.WithContext(ContextWithClaims(req.Context(), tt.claims))
			}

			rec := httptest.NewRecorder()
			RequireAccess(tt.class)(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			details := decodeError(t, rec)["details"].(map[string]any)
			assert.Equal(t, tt.redirect, details["redirect"])
		})
	}
}

func TestRequireAdminAllowsApprovedAdmin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithClaims(req.Context(), &AccessTokenClaims{
		UserID:        "a",
		Role:          access.RoleAdmin,
		AccountStatus: access.StatusApproved,
	}))

	rec := httptest.NewRecorder()
	RequireAdmin(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

type memoryStore struct {
	mu      sync.Mutex
	keys    map[string]bool
	failErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]bool{}}
}

func (m *memoryStore) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	if m.failErr != nil {
		return false, m.failErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func TestIdempotencyRejectsReplay(t *testing.T) {
	calls := 0
	h := Idempotency(newMemoryStore(), time.Hour)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.WriteHeader(http.StatusCreated)
		}),
	)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/v1/admin/users/u1/balance", nil)
		req.Header.Set(IdempotencyHeader, "key-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, send())
	assert.Equal(t, http.StatusConflict, send())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyWithoutHeaderRunsEveryTime(t *testing.T) {
	calls := 0
	h := Idempotency(newMemoryStore(), time.Hour)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls++
		}),
	)

	for range 2 {
		h.ServeHTTP(httptest.NewRecorder(),
			httptest.NewRequest(http.MethodPost, "/v1/admin/users/u1/balance", nil))
	}

	assert.Equal(t, 2, calls)
}

func TestIdempotencyReleasesOnFailure(t *testing.T) {
	store := newMemoryStore()
	status := http.StatusInternalServerError
	h := Idempotency(store, time.Hour)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}),
	)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/v1/deposits", nil)
		req.Header.Set(IdempotencyHeader, "key-2")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusInternalServerError, send())
	status = http.StatusCreated
	assert.Equal(t, http.StatusCreated, send())
}

func TestIdempotencyFailsOpenWhenStoreDown(t *testing.T) {
	store := newMemoryStore()
	store.failErr = errors.New("redis down")

	calls := 0
	h := Idempotency(store, time.Hour)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { calls++ }),
	)

	req := httptest.NewRequest(http.MethodPost, "/v1/deposits", nil)
	req.Header.Set(IdempotencyHeader, "key-3")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1, calls)
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(config.CORSConfig{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v1/requests", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key")

	req = httptest.NewRequest(http.MethodOptions, "/v1/requests", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestKeyByUserFallsBackToIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "ratelimit:ip:10.0.0.1", KeyByUser(req))

	req = req.WithContext(ContextWithClaims(req.Context(), &AccessTokenClaims{UserID: "u9"}))
	assert.Equal(t, "ratelimit:user:u9", KeyByUser(req))
}

func TestMatchRoutes(t *testing.T) {
	applies := MatchRoutes(http.MethodPost, "/analyze")

	assert.True(t, applies(httptest.NewRequest(http.MethodPost, "/v1/requests/r1/analyze", nil)))
	assert.True(t, applies(httptest.NewRequest(http.MethodPost, "/v1/requests/r1/analyze/", nil)))
	assert.False(t, applies(httptest.NewRequest(http.MethodGet, "/v1/requests/r1/analyze", nil)))
	assert.False(t, applies(httptest.NewRequest(http.MethodPost, "/v1/requests", nil)))
}

func TestKeyBySessionUsesTokenDigest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	assert.Equal(t, "ratelimit:ip:10.0.0.2", KeyBySession(req))

	req.Header.Set("Authorization", "Bearer abc")
	key := KeyBySession(req)
	assert.Contains(t, key, "ratelimit:session:")
	assert.NotContains(t, key, "abc")
}

func TestLocalLimiterBlocksAfterBurst(t *testing.T) {
	l := &localLimiter{}
	limit := PerHour(1, 1)

	first, err := l.allow("k", limit)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Allowed)

	second, err := l.allow("k", limit)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Allowed)
	assert.Positive(t, second.RetryAfter)
}
