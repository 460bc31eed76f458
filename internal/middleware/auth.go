// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/angelamos/musicdesk/internal/access"
	"github.com/angelamos/musicdesk/internal/core"
)

const sessionKey contextKey = "session"

type TokenVerifier interface {
	VerifyAccessToken(
		ctx context.Context,
		token string,
	) (*AccessTokenClaims, error)
}

// AccessTokenClaims is the resolved session of a request. Role and
// AccountStatus reflect the stored account, not only the signed token.
type AccessTokenClaims struct {
	UserID        string
	Role          string
	AccountStatus string
	TokenVersion  int
	JTI           string
	ExpiresAt     time.Time
}

// ContextWithClaims attaches a resolved session. The Authenticator is the
// only production caller.
func ContextWithClaims(ctx context.Context, claims *AccessTokenClaims) context.Context {
	return context.WithValue(ctx, sessionKey, claims)
}

// Authenticator verifies the bearer token once and stores the session on
// the request context for every later guard and handler.
func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				core.JSONError(w, core.UnauthorizedError("missing authorization token").
					WithDetails(map[string]any{"redirect": access.PathAuth}))
				return
			}

			claims, err := verifier.VerifyAccessToken(r.Context(), token)
			if err != nil {
				writeTokenError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// RequireAccess applies the portal's route guards to an API group. A
// denial carries the client redirect in the error details.
func RequireAccess(class access.RouteClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := access.Decide(SubjectFromContext(r.Context()), class)
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			details := map[string]any{
				"redirect": decision.Redirect,
				"reason":   string(decision.Reason),
			}

			if decision.Reason == access.ReasonUnauthenticated {
				core.JSONError(w, core.UnauthorizedError("").WithDetails(details))
				return
			}

			core.JSONError(w, core.ForbiddenError(denialMessage(decision.Reason)).
				WithDetails(details))
		})
	}
}

func RequireApproved(next http.Handler) http.Handler {
	return RequireAccess(access.Member)(next)
}

func RequireAdmin(next http.Handler) http.Handler {
	return RequireAccess(access.Admin)(next)
}

func denialMessage(reason access.Reason) string {
	switch reason {
	case access.ReasonPending:
		return "account is awaiting approval"
	case access.ReasonSuspended:
		return "account is suspended"
	case access.ReasonRejected:
		return "account registration was rejected"
	case access.ReasonNotAdmin:
		return "insufficient permissions"
	case access.ReasonUnknownStatus:
		return "account status is not recognised"
	default:
		return "access denied"
	}
}

func ExtractToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeTokenError(w http.ResponseWriter, err error) {
	if core.IsAppError(err) {
		core.JSONError(w, err)
		return
	}

	switch {
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenRevoked):
		core.JSONError(w, core.TokenRevokedError())
	default:
		core.JSONError(w, core.TokenInvalidError())
	}
}

func GetClaims(ctx context.Context) *AccessTokenClaims {
	claims, _ := ctx.Value(sessionKey).(*AccessTokenClaims)
	return claims
}

func SubjectFromContext(ctx context.Context) access.Subject {
	claims := GetClaims(ctx)
	if claims == nil {
		return access.Subject{}
	}
	return access.Subject{
		Authenticated: claims.UserID != "",
		AccountStatus: claims.AccountStatus,
		Role:          claims.Role,
	}
}

func GetUserID(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}

func GetUserRole(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.Role
	}
	return ""
}

func IsAdmin(ctx context.Context) bool {
	return GetUserRole(ctx) == access.RoleAdmin
}
