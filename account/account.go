// Package account is the credential store behind registration and login.
// Credentials live in the key-value store under "user-" + username.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariebrainware/agendamento/store"
	"github.com/ariebrainware/agendamento/util"
)

var (
	ErrMissingField       = errors.New("username and password are required")
	ErrUserExists         = errors.New("username already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrReservedUsername   = errors.New("username uses a reserved prefix")
)

// Key prefixes owned by credential and session records. Schedules live under
// the bare username, so no username may start with one of these.
var reservedPrefixes = []string{"user-", "session-"}

// CheckUsername reports ErrReservedUsername when username would share a key
// with a credential or session record.
func CheckUsername(username string) error {
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(username, p) {
			return fmt.Errorf("%w: %q", ErrReservedUsername, p)
		}
	}
	return nil
}

// Credential is the stored record for one user. Records written by older
// clients carry the password in plain text and no salt.
type Credential struct {
	Username    string    `json:"username"`
	Password    string    `json:"password"`
	Salt        string    `json:"salt,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// Store registers and authenticates users.
type Store struct {
	kv store.KV
}

func NewStore(kv store.KV) *Store {
	return &Store{kv: kv}
}

func credentialKey(username string) string {
	return "user-" + username
}

// Register creates a credential for username. The password is stored as an
// argon2id hash.
func (s *Store) Register(ctx context.Context, username, password, displayName string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return ErrMissingField
	}
	if err := CheckUsername(username); err != nil {
		return err
	}

	_, err := s.Lookup(ctx, username)
	if err == nil {
		return ErrUserExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("lookup %s: %w", username, err)
	}

	salt, err := util.GenerateSalt()
	if err != nil {
		return err
	}
	hashed, err := util.HashPasswordArgon2(password, salt)
	if err != nil {
		return err
	}
	cred := Credential{
		Username:    username,
		Password:    hashed,
		Salt:        salt,
		DisplayName: util.NormalizeName(displayName),
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.SetJSON(ctx, s.kv, credentialKey(username), cred); err != nil {
		return fmt.Errorf("save credential %s: %w", username, err)
	}
	return nil
}

// Authenticate checks username and password. An unknown user and a wrong
// password both yield ErrInvalidCredentials. A legacy plain text record is
// rehashed after a successful check.
func (s *Store) Authenticate(ctx context.Context, username, password string) (Credential, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Credential{}, ErrMissingField
	}
	if CheckUsername(username) != nil {
		return Credential{}, ErrInvalidCredentials
	}

	cred, err := s.Lookup(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return Credential{}, ErrInvalidCredentials
	}
	if err != nil {
		return Credential{}, fmt.Errorf("lookup %s: %w", username, err)
	}

	ok, err := util.VerifyPassword(password, cred.Password, cred.Salt)
	if err != nil {
		return Credential{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return Credential{}, ErrInvalidCredentials
	}

	if util.IsLegacyPassword(cred.Password) {
		if upgraded, err := s.upgrade(ctx, cred, password); err == nil {
			cred = upgraded
		}
	}
	return cred, nil
}

// Lookup returns the stored credential for username.
func (s *Store) Lookup(ctx context.Context, username string) (Credential, error) {
	var cred Credential
	if err := store.GetJSON(ctx, s.kv, credentialKey(username), &cred); err != nil {
		return Credential{}, err
	}
	if cred.Username == "" {
		cred.Username = username
	}
	return cred, nil
}

// DisplayName resolves the name to greet username with.
func (s *Store) DisplayName(ctx context.Context, username string) (string, error) {
	cred, err := s.Lookup(ctx, username)
	if err != nil {
		return "", err
	}
	return cred.DisplayName, nil
}

func (s *Store) upgrade(ctx context.Context, cred Credential, password string) (Credential, error) {
	salt, err := util.GenerateSalt()
	if err != nil {
		return cred, err
	}
	hashed, err := util.HashPasswordArgon2(password, salt)
	if err != nil {
		return cred, err
	}
	cred.Password = hashed
	cred.Salt = salt
	if err := store.SetJSON(ctx, s.kv, credentialKey(cred.Username), cred); err != nil {
		return cred, err
	}
	util.LogSecurityEvent(util.SecurityEvent{
		EventType: util.EventPasswordUpgraded,
		Username:  cred.Username,
		Message:   "Legacy password rehashed",
	})
	return cred, nil
}
