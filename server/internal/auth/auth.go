// Package auth issues and verifies API keys. A key embeds the user ID so
// lookup is direct; only a bcrypt hash of the secret half is stored.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tokgraph/tokgraph/server/internal/database"
)

const keyPrefix = "tg"

// ErrInvalidKey covers malformed, unknown and mismatched API keys. The
// same error is returned for all three so callers cannot probe which part
// failed.
var ErrInvalidKey = errors.New("invalid API key")

// GenerateKey creates a new API key for a user. Returns the plaintext key
// (shown once) and the hash to store.
func GenerateKey(userID string) (key, hash string, err error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	secret := hex.EncodeToString(raw)

	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return keyPrefix + "_" + userID + "_" + secret, string(hashed), nil
}

// Verify checks an API key and returns the matching user.
func Verify(db *database.DB, key string) (*database.User, error) {
	parts := strings.SplitN(key, "_", 3)
	if len(parts) != 3 || parts[0] != keyPrefix || parts[1] == "" || parts[2] == "" {
		return nil, ErrInvalidKey
	}

	user, err := db.GetUserByID(parts[1])
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidKey
	}

	if bcrypt.CompareHashAndPassword([]byte(user.APIKeyHash), []byte(parts[2])) != nil {
		return nil, ErrInvalidKey
	}
	return user, nil
}
