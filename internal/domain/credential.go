package domain

import (
	"strings"
	"time"
)

// Credential is replaced as a whole on refresh, never mutated in place.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id,omitempty"`
}

func (c Credential) Valid() bool {
	return strings.TrimSpace(c.AccessToken) != ""
}

func (c Credential) CanRefresh() bool {
	return strings.TrimSpace(c.RefreshToken) != ""
}

// ShouldRefresh reports whether the remaining lifetime dropped below threshold.
func (c Credential) ShouldRefresh(now time.Time, threshold time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}

	return c.ExpiresAt.Sub(now) < threshold
}

func (c Credential) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}

	return !now.Before(c.ExpiresAt)
}

// Supersedes is true only for a strictly later expiry.
func (c Credential) Supersedes(current Credential) bool {
	return c.ExpiresAt.After(current.ExpiresAt)
}
