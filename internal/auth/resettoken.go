package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// ResetTokenBytes is the entropy of a password reset token.
const ResetTokenBytes = 32

// NewResetToken reads ResetTokenBytes from random (crypto/rand when nil) and
// returns the hex token handed to the user together with the digest that is
// persisted.
func NewResetToken(random io.Reader) (token, digest string, err error) {
	if random == nil {
		random = rand.Reader
	}
	buf := make([]byte, ResetTokenBytes)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", "", fmt.Errorf("read reset token entropy: %w", err)
	}
	token = hex.EncodeToString(buf)
	return token, DigestResetToken(token), nil
}

// DigestResetToken returns the hex SHA-256 of token.
func DigestResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IsWellFormedResetToken reports whether token has the length and alphabet
// NewResetToken produces.
func IsWellFormedResetToken(token string) bool {
	if len(token) != 2*ResetTokenBytes {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
