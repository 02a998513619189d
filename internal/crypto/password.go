// Package crypto provides the password collaborator used when registering
// users and changing credentials.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"tenant-rbac/internal/domain"
)

const saltBytes = 16

// BcryptHasher hashes passwords with bcrypt. Each user gets a random salt,
// hex encoded and stored alongside the hash. The salted password is reduced
// with SHA-256 first so long passwords stay within bcrypt's 72 byte limit.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. A cost of zero selects
// bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

var _ domain.PasswordHasher = (*BcryptHasher)(nil)

// Hash rejects weak passwords and passwords equal to the username, then
// returns the bcrypt hash and the hex encoded salt.
func (h *BcryptHasher) Hash(username, password string) (string, string, error) {
	if password == "" {
		return "", "", domain.ErrValidation("password is required")
	}
	if password == username {
		return "", "", domain.ErrValidation("username and password must not be the same")
	}
	if IsWeak(password) {
		return "", "", domain.ErrValidation("the password is too weak")
	}

	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)

	hash, err := bcrypt.GenerateFromPassword(prehash(saltHex, password), h.cost)
	if err != nil {
		return "", "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), saltHex, nil
}

// Verify reports whether password matches hash under saltHex.
func (h *BcryptHasher) Verify(password, hash, saltHex string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(saltHex, password)) == nil
}

func prehash(saltHex, password string) []byte {
	sum := sha256.Sum256([]byte(saltHex + password))
	return []byte(hex.EncodeToString(sum[:]))
}
