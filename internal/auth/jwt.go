// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/angelamos/musicdesk/internal/config"
	"github.com/angelamos/musicdesk/internal/core"
	"github.com/angelamos/musicdesk/internal/middleware"
)

const (
	claimType          = "type"
	claimRole          = "role"
	claimAccountStatus = "account_status"
	claimTokenVersion  = "token_version"

	tokenTypeAccess = "access"
)

// JWTManager signs portal access tokens with an ES256 key and publishes
// the public half as a JWKS.
type JWTManager struct {
	privateKey jwk.Key
	publicKey  jwk.Key
	publicJWKS jwk.Set
	keyID      string
	config     config.JWTConfig
}

func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	privateKeyPEM, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	privateKey, err := jwk.ParseKey(privateKeyPEM, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	// The key id is the key thumbprint so it stays stable across restarts
	// and replicas sharing the same key file.
	thumbprint, err := privateKey.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("key thumbprint: %w", err)
	}
	keyID := base64.RawURLEncoding.EncodeToString(thumbprint)[:16]

	for name, value := range map[string]any{
		jwk.AlgorithmKey: jwa.ES256(),
		jwk.KeyIDKey:     keyID,
	} {
		if err := privateKey.Set(name, value); err != nil {
			return nil, fmt.Errorf("set %s: %w", name, err)
		}
	}

	publicKey, err := privateKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	if err := publicKey.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("set key usage: %w", err)
	}

	publicJWKS := jwk.NewSet()
	if err := publicJWKS.AddKey(publicKey); err != nil {
		return nil, fmt.Errorf("add key to set: %w", err)
	}

	return &JWTManager{
		privateKey: privateKey,
		publicKey:  publicKey,
		publicJWKS: publicJWKS,
		keyID:      keyID,
		config:     cfg,
	}, nil
}

// EnsureKeyPair writes a fresh P-256 key pair unless the private key file
// already exists. It reports whether keys were generated.
func EnsureKeyPair(privateKeyPath, publicKeyPath string) (bool, error) {
	if _, err := os.Stat(privateKeyPath); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat private key: %w", err)
	}

	for _, dir := range []string{filepath.Dir(privateKeyPath), filepath.Dir(publicKeyPath)} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return false, fmt.Errorf("create key directory: %w", err)
		}
	}

	if err := GenerateKeyPair(privateKeyPath, publicKeyPath); err != nil {
		return false, err
	}
	return true, nil
}

func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	private, err := jwk.Import(raw)
	if err != nil {
		return fmt.Errorf("import private key: %w", err)
	}

	privatePEM, err := jwk.Pem(private)
	if err != nil {
		return fmt.Errorf("encode private key: %w", err)
	}

	public, err := private.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	publicPEM, err := jwk.Pem(public)
	if err != nil {
		return fmt.Errorf("encode public key: %w", err)
	}

	if err := os.WriteFile(privateKeyPath, privatePEM, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}

	//nolint:gosec // G306: public key is meant to be readable
	if err := os.WriteFile(publicKeyPath, publicPEM, 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}

	return nil
}

// AccessTokenClaims are the private claims of an access token. Role and
// account status are a snapshot; the session resolver re-reads them.
type AccessTokenClaims struct {
	UserID        string `json:"sub"`
	Role          string `json:"role"`
	AccountStatus string `json:"account_status"`
	TokenVersion  int    `json:"token_version"`
}

type SignedAccessToken struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

func (m *JWTManager) CreateAccessToken(
	claims AccessTokenClaims,
) (*SignedAccessToken, error) {
	now := time.Now()
	jti := uuid.New().String()
	expiresAt := now.Add(m.config.AccessTokenExpire)

	token, err := jwt.NewBuilder().
		JwtID(jti).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(claims.UserID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(expiresAt).
		Claim(claimType, tokenTypeAccess).
		Claim(claimRole, claims.Role).
		Claim(claimAccountStatus, claims.AccountStatus).
		Claim(claimTokenVersion, claims.TokenVersion).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), m.privateKey))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &SignedAccessToken{
		Token:     string(signed),
		JTI:       jti,
		ExpiresAt: expiresAt,
	}, nil
}

// AccessTokenTTL is the lifetime of newly minted access tokens.
func (m *JWTManager) AccessTokenTTL() time.Duration {
	return m.config.AccessTokenExpire
}

// ParseAccessToken checks signature, issuer, audience and lifetime. It
// does not consult the blacklist or the stored account.
func (m *JWTManager) ParseAccessToken(
	_ context.Context,
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.ES256(), m.publicKey),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
	)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, invalidClaim("sub")
	}

	var tokenType, role, status string
	for name, dst := range map[string]*string{
		claimType:          &tokenType,
		claimRole:          &role,
		claimAccountStatus: &status,
	} {
		if err := token.Get(name, dst); err != nil {
			return nil, invalidClaim(name)
		}
	}
	if tokenType != tokenTypeAccess {
		return nil, invalidClaim(claimType)
	}

	// JSON numbers decode as float64.
	var version float64
	if err := token.Get(claimTokenVersion, &version); err != nil {
		return nil, invalidClaim(claimTokenVersion)
	}

	jti, _ := token.JwtID()
	expiresAt, _ := token.Expiration()

	return &middleware.AccessTokenClaims{
		UserID:        subject,
		Role:          role,
		AccountStatus: status,
		TokenVersion:  int(version),
		JTI:           jti,
		ExpiresAt:     expiresAt,
	}, nil
}

func invalidClaim(name string) error {
	return fmt.Errorf("verify token: bad %s claim: %w", name, core.ErrTokenInvalid)
}

func isTokenExpiredError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "exp") && strings.Contains(msg, "not satisfied")
}

func (m *JWTManager) GetJWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")

		if err := json.NewEncoder(w).Encode(m.publicJWKS); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}

func (m *JWTManager) GetKeyID() string {
	return m.keyID
}

type RefreshTokenData struct {
	Token     string
	Hash      string
	ExpiresAt time.Time
	FamilyID  string
}

// CreateRefreshToken mints an opaque refresh secret. An empty familyID
// starts a new login chain.
func (m *JWTManager) CreateRefreshToken(familyID string) (*RefreshTokenData, error) {
	token, err := core.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	if familyID == "" {
		familyID = uuid.New().String()
	}

	return &RefreshTokenData{
		Token:     token,
		Hash:      core.HashToken(token),
		ExpiresAt: time.Now().Add(m.config.RefreshTokenExpire),
		FamilyID:  familyID,
	}, nil
}
