package shell

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"testai/internal/session"
)

// SessionStore is the capability the shell and its pages need from the
// session store. *session.Store satisfies it.
type SessionStore interface {
	Load() session.Session
	Save(token string, user session.User) error
	Clear() error
}

// Shell holds the session state machine. A Shell starts Initializing and
// leaves that state exactly once, through Init or SignedIn.
type Shell struct {
	store SessionStore
	log   *log.Logger

	mu          sync.Mutex
	initialized bool
	state       State
	user        *session.User
}

func New(store SessionStore, logger *log.Logger) *Shell {
	return &Shell{
		store: store,
		log:   logger.WithPrefix("shell"),
		state: Initializing,
	}
}

// Init rehydrates the session from the store. Only the first call loads;
// later calls return the current state.
func (s *Shell) Init() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return s.state
	}
	s.initialized = true

	sess := s.store.Load()
	if sess.Anonymous() {
		s.state = Anonymous
		s.user = nil
	} else {
		s.state = Authenticated
		s.user = sess.User
	}
	s.log.Debug("initialized", "state", s.state)
	return s.state
}

// SignedIn records a successful login or registration. The caller has
// already saved the session.
func (s *Shell) SignedIn(user session.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	s.state = Authenticated
	s.user = &user
	s.log.Info("signed in", "user", user.Username)
}

// Logout clears the persisted session and returns the forced navigation to
// the login view. The shell is anonymous afterwards even when clearing
// storage fails.
func (s *Shell) Logout() (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	s.state = Anonymous
	s.user = nil

	to := Decision{Kind: Redirect, Path: LoginPath, Location: LoginPath}
	if err := s.store.Clear(); err != nil {
		return to, fmt.Errorf("logout: %w", err)
	}
	s.log.Info("signed out")
	return to, nil
}

// Navigate resolves path against the current state.
func (s *Shell) Navigate(path string) Decision {
	return Resolve(s.State(), path)
}

func (s *Shell) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns a copy of the signed-in user, or nil.
func (s *Shell) User() *session.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}
