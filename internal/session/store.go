// Package session owns the signed-in identity of the client: the bearer
// token and the user profile, persisted together in durable storage.
package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// Keys under which the pair is persisted.
const (
	TokenKey = "token"
	UserKey  = "user"
)

// ErrIncompleteSession is returned by Save when the token or the user is missing.
var ErrIncompleteSession = errors.New("session: token and user must be saved together")

// Store is the single source of truth for who is signed in. It never
// caches: every call goes to storage.
type Store struct {
	storage Storage
	log     *log.Logger
}

func NewStore(storage Storage, logger *log.Logger) *Store {
	return &Store{storage: storage, log: logger.WithPrefix("session")}
}

// Load returns the persisted session. It never fails: unreadable or
// inconsistent state is cleared and reported as anonymous.
func (s *Store) Load() Session {
	token, hasToken, err := s.storage.GetItem(TokenKey)
	if err != nil {
		s.recover("read token", err)
		return Session{}
	}
	raw, hasUser, err := s.storage.GetItem(UserKey)
	if err != nil {
		s.recover("read user", err)
		return Session{}
	}

	switch {
	case !hasToken && !hasUser:
		return Session{}
	case hasToken != hasUser || token == "":
		s.recover("mismatched pair", fmt.Errorf("token present=%t user present=%t", hasToken && token != "", hasUser))
		return Session{}
	}

	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.recover("decode user", err)
		return Session{}
	}
	if !user.identified() {
		s.recover("decode user", errors.New("empty user record"))
		return Session{}
	}
	return Session{Token: token, User: &user}
}

// Save persists token and user as one write.
func (s *Store) Save(token string, user User) error {
	if token == "" || !user.identified() {
		return ErrIncompleteSession
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("session: encode user: %w", err)
	}
	if err := s.storage.SetItems(map[string]string{
		TokenKey: token,
		UserKey:  string(raw),
	}); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	s.log.Debug("session saved", "user", user.Username)
	return nil
}

// Clear removes both persisted fields. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	if err := s.storage.RemoveItems(TokenKey, UserKey); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}

// Token returns the current bearer token, or "" when anonymous.
func (s *Store) Token() string {
	return s.Load().Token
}

func (s *Store) recover(reason string, cause error) {
	s.log.Warn("discarding persisted session", "reason", reason, "err", cause)
	if err := s.storage.RemoveItems(TokenKey, UserKey); err != nil {
		s.log.Error("failed to clear persisted session", "err", err)
	}
}
