package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// CodeVerifierLength is the length of the PKCE code verifier.
// Spotify requires 43-128 characters; we use 64 for good entropy.
const CodeVerifierLength = 64

// NewVerifier generates a PKCE code verifier from the base64url alphabet
// (A-Z, a-z, 0-9, -, _).
func NewVerifier() (string, error) {
	return generateRandomString(CodeVerifierLength)
}

// Challenge returns the S256 code challenge for a verifier.
// challenge = base64url(sha256(verifier))
func Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// generateRandomString creates a cryptographically secure random string
// using URL-safe base64 characters.
func generateRandomString(length int) (string, error) {
	// base64 expands the data, so length bytes always yields enough characters
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	encoded := base64.RawURLEncoding.EncodeToString(bytes)
	return encoded[:length], nil
}
