package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateSecureToken returns a 64-character hex bearer secret.
func GenerateSecureToken() (string, error) {
	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		return "", err
	}
	return hex.EncodeToString(token), nil
}

// GenerateID returns a short opaque identifier used as the public key
// for teams, sessions, messages and invites.
func GenerateID() (string, error) {
	id := make([]byte, 4)
	if _, err := rand.Read(id); err != nil {
		return "", err
	}
	return hex.EncodeToString(id), nil
}
