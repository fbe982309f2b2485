package util

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret-123")

	token, expires, err := CreateSessionToken("ana", time.Hour)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := ParseSessionToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "ana", claims.Username)
	assert.NotEmpty(t, claims.ID)
}

func TestSessionTokensAreUnique(t *testing.T) {
	SetJWTSecret("test-secret-123")

	t1, _, err := CreateSessionToken("ana", time.Hour)
	assert.NoError(t, err)
	t2, _, err := CreateSessionToken("ana", time.Hour)
	assert.NoError(t, err)
	assert.NotEqual(t, t1, t2)
}

func TestParseSessionToken_Rejects(t *testing.T) {
	SetJWTSecret("test-secret-123")

	expired, _, err := CreateSessionToken("ana", -time.Minute)
	assert.NoError(t, err)
	_, err = ParseSessionToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseSessionToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	signed, _, err := CreateSessionToken("ana", time.Hour)
	assert.NoError(t, err)
	SetJWTSecret("rotated-secret")
	_, err = ParseSessionToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
	SetJWTSecret("test-secret-123")

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	s, err := noUser.SignedString(GetJWTSecretByte())
	assert.NoError(t, err)
	_, err = ParseSessionToken(s)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
