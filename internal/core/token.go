package core

import "time"

// TokenPair is an access/refresh token pair and the instant the access token expires.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// NewTokenPair derives ExpiresAt as issue time plus the server-declared lifetime.
func NewTokenPair(access, refresh string, issuedAt time.Time, lifetime time.Duration) TokenPair {
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    issuedAt.Add(lifetime),
	}
}

// IsZero reports whether the pair carries no access token.
func (p TokenPair) IsZero() bool {
	return p.AccessToken == ""
}

// CanRefresh reports whether the pair can renew itself.
func (p TokenPair) CanRefresh() bool {
	return p.RefreshToken != ""
}

// ExpiredAt reports whether the access token is stale at now, treating
// anything within leeway of ExpiresAt as already expired.
func (p TokenPair) ExpiredAt(now time.Time, leeway time.Duration) bool {
	return !now.Add(leeway).Before(p.ExpiresAt)
}
