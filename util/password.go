package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Prefix  = "argon2id$"
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16
)

var (
	jwtSecretValue = getEnv("JWTSECRET", "")
	jwtSecretByte  = []byte(jwtSecretValue)
	jwtMutex       sync.RWMutex
)

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	return value
}

// HashToken returns the HMAC-SHA256 of a session token keyed with the JWT
// secret. Session records are stored under this digest, never the raw token.
func HashToken(token string) string {
	h := hmac.New(sha256.New, GetJWTSecretByte())
	h.Write([]byte(token))
	return hex.EncodeToString(h.Sum(nil))
}

// SetJWTSecret allows tests or runtime code to update the JWT secret used
// for both token signing and token hashing. This function is thread-safe.
func SetJWTSecret(secret string) {
	jwtMutex.Lock()
	defer jwtMutex.Unlock()
	jwtSecretByte = []byte(secret)
}

// GetJWTSecretByte returns a copy of the current JWT secret bytes in a thread-safe manner.
func GetJWTSecretByte() []byte {
	jwtMutex.RLock()
	defer jwtMutex.RUnlock()
	return append([]byte(nil), jwtSecretByte...)
}

// GenerateSalt returns a random hex encoded salt.
func GenerateSalt() (string, error) {
	b := make([]byte, saltLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashPasswordArgon2 derives an argon2id key from password and the hex salt.
func HashPasswordArgon2(password, salt string) (string, error) {
	saltBytes, err := hex.DecodeString(salt)
	if err != nil || len(saltBytes) == 0 {
		return "", fmt.Errorf("invalid salt")
	}
	key := argon2.IDKey([]byte(password), saltBytes, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return argon2Prefix + base64.RawStdEncoding.EncodeToString(key), nil
}

// IsLegacyPassword reports whether stored was written without hashing.
func IsLegacyPassword(stored string) bool {
	return !strings.HasPrefix(stored, argon2Prefix)
}

// VerifyPassword checks plain against the stored value. Legacy records keep
// the password as plain text and are compared directly.
func VerifyPassword(plain, stored, salt string) (bool, error) {
	if IsLegacyPassword(stored) {
		return subtle.ConstantTimeCompare([]byte(plain), []byte(stored)) == 1, nil
	}
	hashed, err := HashPasswordArgon2(plain, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(hashed), []byte(stored)) == 1, nil
}
