package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariebrainware/agendamento/store"
	"github.com/ariebrainware/agendamento/util"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// SessionRecord is what the store keeps for one login.
type SessionRecord struct {
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Sessions issues and checks session tokens. A record lives under
// "session-" plus the token digest, so the raw token never reaches storage.
type Sessions struct {
	kv  store.KV
	ttl time.Duration
}

func NewSessions(kv store.KV, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{kv: kv, ttl: ttl}
}

func sessionKey(tokenHash string) string {
	return "session-" + tokenHash
}

// Create signs a token for username and stores its record.
func (s *Sessions) Create(ctx context.Context, username string) (string, SessionRecord, error) {
	token, expires, err := util.CreateSessionToken(username, s.ttl)
	if err != nil {
		return "", SessionRecord{}, err
	}
	rec := SessionRecord{Username: username, ExpiresAt: expires.UTC()}
	hash := util.HashToken(token)
	if err := store.SetJSON(ctx, s.kv, sessionKey(hash), rec); err != nil {
		return "", SessionRecord{}, fmt.Errorf("save session: %w", err)
	}
	if err := util.AddSessionToUserSet(ctx, username, hash, s.ttl); err != nil {
		return "", SessionRecord{}, fmt.Errorf("track session: %w", err)
	}
	return token, rec, nil
}

// Validate checks the token signature and that its record still exists and
// has not expired.
func (s *Sessions) Validate(ctx context.Context, token string) (SessionRecord, error) {
	claims, err := util.ParseSessionToken(token)
	if err != nil {
		return SessionRecord{}, err
	}

	var rec SessionRecord
	key := sessionKey(util.HashToken(token))
	err = store.GetJSON(ctx, s.kv, key, &rec)
	if errors.Is(err, store.ErrNotFound) {
		return SessionRecord{}, ErrSessionNotFound
	}
	if err != nil {
		return SessionRecord{}, err
	}
	if rec.Username != claims.Username {
		return SessionRecord{}, util.ErrInvalidToken
	}
	if time.Now().After(rec.ExpiresAt) {
		_ = s.kv.Delete(ctx, key)
		return SessionRecord{}, ErrSessionExpired
	}
	return rec, nil
}

// Revoke deletes the record of token. Revoking an unknown token is not an
// error.
func (s *Sessions) Revoke(ctx context.Context, username, token string) error {
	hash := util.HashToken(token)
	if err := s.kv.Delete(ctx, sessionKey(hash)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return util.RemoveSessionTokenFromUserSet(ctx, username, hash)
}

// RevokeAll deletes every tracked session of username. Tracking needs Redis;
// without it only the caller's own token can be revoked.
func (s *Sessions) RevokeAll(ctx context.Context, username string) error {
	return util.InvalidateUserSessions(ctx, username, func(hash string) error {
		return s.kv.Delete(ctx, sessionKey(hash))
	})
}
