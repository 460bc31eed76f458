// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelamos/musicdesk/internal/access"
	"github.com/angelamos/musicdesk/internal/core"
	"github.com/angelamos/musicdesk/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("token reuse detected")
	ErrEmailExists        = errors.New("email already exists")
	ErrPasswordUnchanged  = errors.New("new password matches the current one")
)

type UserInfo struct {
	ID            string
	Email         string
	FullName      string
	Phone         string
	PasswordHash  string
	Role          string
	AccountStatus string
	TokenVersion  int
	CreatedAt     time.Time
}

// NewUser is a self-service signup handed to the UserProvider.
type NewUser struct {
	Email        string
	PasswordHash string
	FullName     string
	Phone        string
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(ctx context.Context, in NewUser) (*UserInfo, error)
	IncrementTokenVersion(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// Blacklist is the subset of the redis client used for revoked access
// tokens.
type Blacklist interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

type Service struct {
	repo         Repository
	jwt          *JWTManager
	userProvider UserProvider
	blacklist    Blacklist
	now          func() time.Time
}

func NewService(
	repo Repository,
	jwt *JWTManager,
	userProvider UserProvider,
	blacklist Blacklist,
) *Service {
	return &Service{
		repo:         repo,
		jwt:          jwt,
		userProvider: userProvider,
		blacklist:    blacklist,
		now:          time.Now,
	}
}

// VerifyAccessToken resolves a bearer token into the request session.
// Role and account status come from the stored account so admin changes
// apply without waiting for the token to expire.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.ParseAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if claims.JTI != "" {
		revoked, err := s.IsAccessTokenBlacklisted(ctx, claims.JTI)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
		}
	}

	user, err := s.userProvider.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if claims.TokenVersion < user.TokenVersion {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	claims.Role = user.Role
	claims.AccountStatus = user.AccountStatus
	return claims, nil
}

// Login opens a new session family. Rejected and suspended accounts may
// still sign in; the access gate decides where the client lands.
func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	return s.createAuthResponse(ctx, user, userAgent, ipAddress, "", uuid.New().String())
}

// authenticate resolves the account behind email and checks password.
// Unknown emails still pay the argon2 cost, and a hash made with older
// parameters is upgraded in place.
func (s *Service) authenticate(
	ctx context.Context,
	email, password string,
) (*UserInfo, error) {
	user, err := s.userProvider.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, core.ErrNotFound):
		//nolint:errcheck // equalises timing for unknown emails
		_, _, _ = core.VerifyPasswordTimingSafe(password, nil)
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, fmt.Errorf("get user: %w", err)
	}

	hash := user.PasswordHash
	valid, upgraded, err := core.VerifyPasswordTimingSafe(password, &hash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return nil, ErrInvalidCredentials
	}

	if upgraded != "" {
		//nolint:errcheck // rehash is opportunistic
		_ = s.userProvider.UpdatePassword(ctx, user.ID, upgraded)
	}

	return user, nil
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userProvider.Create(ctx, NewUser{
		Email:        req.Email,
		PasswordHash: passwordHash,
		FullName:     req.FullName,
		Phone:        req.Phone,
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.createAuthResponse(ctx, user, userAgent, ipAddress, "", uuid.New().String())
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	tokenHash := core.HashToken(refreshToken)

	storedToken, err := s.repo.FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	switch storedToken.State(s.now()) {
	case SessionRotated:
		//nolint:errcheck // security revocation continues regardless
		_ = s.repo.RevokeByFamilyID(ctx, storedToken.FamilyID)
		return nil, ErrTokenReuse
	case SessionRevoked:
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
	case SessionExpired:
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	user, err := s.userProvider.GetByID(ctx, storedToken.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	// Claim the old token before issuing a new one. Losing the claim means
	// another refresh already rotated it.
	newTokenID := uuid.New().String()
	if err := s.repo.MarkAsUsed(ctx, storedToken.ID, newTokenID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // security revocation continues regardless
			_ = s.repo.RevokeByFamilyID(ctx, storedToken.FamilyID)
			return nil, ErrTokenReuse
		}
		return nil, err
	}

	return s.createAuthResponse(
		ctx,
		user,
		userAgent,
		ipAddress,
		storedToken.FamilyID,
		newTokenID,
	)
}

// Logout blacklists the presented access token and, when given, revokes
// the refresh token of the same session.
func (s *Service) Logout(
	ctx context.Context,
	refreshToken string,
	session *middleware.AccessTokenClaims,
) error {
	if session.JTI != "" {
		if err := s.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt); err != nil {
			return err
		}
	}

	if refreshToken == "" {
		return nil
	}

	token, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find token: %w", err)
	}

	return s.revokeOwned(ctx, session.UserID, token)
}

// LogoutAll revokes every refresh token and bumps the token version so
// access tokens already issued stop verifying.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if _, err := s.repo.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	if err := s.userProvider.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	return nil
}

func revokedKey(jti string) string {
	return "blacklist:" + jti
}

// RevokeAccessToken keeps jti blacklisted until the token would have
// expired anyway.
func (s *Service) RevokeAccessToken(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	if err := s.blacklist.Set(ctx, revokedKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	return nil
}

func (s *Service) IsAccessTokenBlacklisted(
	ctx context.Context,
	jti string,
) (bool, error) {
	n, err := s.blacklist.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}

	return n > 0, nil
}

// PurgeExpiredSessions drops refresh tokens that expired more than a day
// ago.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now().Add(-sessionRetention))
}

func (s *Service) GetActiveSessions(
	ctx context.Context,
	userID string,
) ([]SessionInfo, error) {
	tokens, err := s.repo.GetActiveSessionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	sessions := make([]SessionInfo, len(tokens))
	for i := range tokens {
		sessions[i] = toSessionInfo(&tokens[i])
	}

	return sessions, nil
}

func (s *Service) RevokeSession(
	ctx context.Context,
	userID, sessionID string,
) error {
	token, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}

	return s.revokeOwned(ctx, userID, token)
}

// revokeOwned revokes token after checking it belongs to userID. Revoking
// a session that is already closed is not an error.
func (s *Service) revokeOwned(
	ctx context.Context,
	userID string,
	token *RefreshToken,
) error {
	if token.UserID != userID {
		return fmt.Errorf("revoke session %s: %w", token.ID, core.ErrForbidden)
	}

	err := s.repo.RevokeByID(ctx, token.ID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("revoke session %s: %w", token.ID, err)
	}

	return nil
}

// ChangePassword replaces the password and ends every session, the
// caller's included.
func (s *Service) ChangePassword(
	ctx context.Context,
	userID, currentPassword, newPassword string,
) error {
	if currentPassword == newPassword {
		return ErrPasswordUnchanged
	}

	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	valid, err := core.VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return ErrInvalidCredentials
	}

	hash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.userProvider.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return s.LogoutAll(ctx, userID)
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

// AccessRoutes evaluates the client route table for the caller's session.
func (s *Service) AccessRoutes(subject access.Subject) AccessRoutesResponse {
	decisions := access.Evaluate(subject)

	routes := make([]RouteAccess, 0, len(decisions))
	for _, d := range decisions {
		routes = append(routes, RouteAccess{
			Path:     d.Path,
			Label:    d.Label,
			Class:    d.Class.String(),
			Allowed:  d.Allowed,
			Redirect: d.Redirect,
			Reason:   string(d.Reason),
		})
	}

	return AccessRoutesResponse{
		AccountStatus: subject.AccountStatus,
		Role:          subject.Role,
		Routes:        routes,
	}
}

func toUserResponse(user *UserInfo) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		FullName:      user.FullName,
		Phone:         user.Phone,
		Role:          user.Role,
		AccountStatus: user.AccountStatus,
		CreatedAt:     user.CreatedAt,
	}
}

func (s *Service) createAuthResponse(
	ctx context.Context,
	user *UserInfo,
	userAgent, ipAddress, familyID, newTokenID string,
) (*AuthResponse, error) {
	accessToken, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID:        user.ID,
		Role:          user.Role,
		AccountStatus: user.AccountStatus,
		TokenVersion:  user.TokenVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshData, err := s.jwt.CreateRefreshToken(familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	refreshTokenEntity := &RefreshToken{
		ID:        newTokenID,
		UserID:    user.ID,
		TokenHash: refreshData.Hash,
		FamilyID:  refreshData.FamilyID,
		ExpiresAt: refreshData.ExpiresAt,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	if err := s.repo.Create(ctx, refreshTokenEntity); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &AuthResponse{
		User: toUserResponse(user),
		Tokens: TokenResponse{
			AccessToken:  accessToken.Token,
			RefreshToken: refreshData.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(s.jwt.AccessTokenTTL() / time.Second),
			ExpiresAt:    accessToken.ExpiresAt,
		},
	}, nil
}
