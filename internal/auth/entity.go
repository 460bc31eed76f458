// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// sessionRetention is how long an expired refresh token row is kept
// before the cleanup job removes it.
const sessionRetention = 24 * time.Hour

type SessionState string

const (
	SessionActive  SessionState = "active"
	SessionRotated SessionState = "rotated"
	SessionRevoked SessionState = "revoked"
	SessionExpired SessionState = "expired"
)

// RefreshToken is one stored login session. Rotating it marks the row
// used and links it to the token that replaced it.
type RefreshToken struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	TokenHash    string     `db:"token_hash"`
	FamilyID     string     `db:"family_id"`
	ExpiresAt    time.Time  `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
	IsUsed       bool       `db:"is_used"`
	UsedAt       *time.Time `db:"used_at"`
	RevokedAt    *time.Time `db:"revoked_at"`
	ReplacedByID *string    `db:"replaced_by_id"`
	UserAgent    string     `db:"user_agent"`
	IPAddress    string     `db:"ip_address"`
}

// State reports the session state at now. A rotated token wins over
// revoked and expired so reuse is always detected.
func (t *RefreshToken) State(now time.Time) SessionState {
	switch {
	case t.IsUsed:
		return SessionRotated
	case t.RevokedAt != nil:
		return SessionRevoked
	case !now.Before(t.ExpiresAt):
		return SessionExpired
	default:
		return SessionActive
	}
}
