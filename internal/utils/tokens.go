package utils

import (
	"crypto/rand"
	"encoding/base64"
	"io"
)

// sessionIDBytes yields a 32 character id.
const sessionIDBytes = 24

// GenerateSecureToken returns length random bytes, base64url encoded without padding.
func GenerateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// NewSessionID mints an assessment session id.
func NewSessionID() (string, error) {
	return GenerateSecureToken(sessionIDBytes)
}
