package account

import (
	"errors"
	"fmt"
	"strings"

	"github.com/matthewhartstonge/argon2"
	"golang.org/x/crypto/bcrypt"
)

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// HashPassword hashes a password with argon2id.
func HashPassword(password string) (string, error) {
	cfg := argon2.DefaultConfig()
	raw, err := cfg.Hash([]byte(password), nil)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(raw.Encode()), nil
}

// VerifyPassword checks password against an argon2 or legacy bcrypt hash.
// needsRehash is set for legacy hashes that matched.
func VerifyPassword(hash, password string) (ok, needsRehash bool, err error) {
	if isBcrypt(hash) {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		switch {
		case err == nil:
			return true, true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, false, nil
		default:
			return false, false, fmt.Errorf("checking bcrypt hash: %w", err)
		}
	}

	raw, err := argon2.Decode([]byte(hash))
	if err != nil {
		return false, false, fmt.Errorf("decoding password hash: %w", err)
	}
	ok, err = raw.Verify([]byte(password))
	if err != nil {
		return false, false, fmt.Errorf("verifying password: %w", err)
	}
	return ok, false, nil
}

func isBcrypt(hash string) bool {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(hash, p) {
			return true
		}
	}
	return false
}
