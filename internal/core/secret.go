package core

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const minSecretLen = 4

// SecretCost is the bcrypt work factor. Tests lower it.
var SecretCost = bcrypt.DefaultCost

// HashSecret hashes a plain text secret using bcrypt
func HashSecret(plain string) (string, error) {
	if len(strings.TrimSpace(plain)) < minSecretLen {
		return "", fmt.Errorf("%w: secret must be at least %d characters", ErrValidation, minSecretLen)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), SecretCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CompareSecret compares a bcrypt hash with a plain secret
func CompareSecret(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
