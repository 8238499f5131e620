package ota

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// SessionState is what a TokenStore persists between runs.
type SessionState struct {
	Token        string `toml:"token"`
	Username     string `toml:"username"`
	Unauthorized bool   `toml:"unauthorized"`
}

// TokenStore persists the session between runs.
type TokenStore interface {
	Load() (SessionState, error)
	Save(SessionState) error
}

// Session holds the bearer token used by every request-issuing component.
// It is safe for concurrent use; fetch commands run off the event loop.
type Session struct {
	mu    sync.RWMutex
	store TokenStore
	state SessionState
}

// NewSession loads any persisted session from store. A nil store keeps the
// session in memory only.
func NewSession(store TokenStore) (*Session, error) {
	if store == nil {
		store = &MemoryStore{}
	}
	st, err := store.Load()
	if err != nil {
		return &Session{store: store}, fmt.Errorf("load session: %w", err)
	}
	return &Session{store: store, state: st}, nil
}

// Token returns the current bearer token.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// Username returns the operator that owns the token.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Username
}

// Authorized reports whether a token is held.
func (s *Session) Authorized() bool {
	return s.Token() != ""
}

// SetToken stores a freshly issued token and clears the unauthorized flag.
func (s *Session) SetToken(username, token string) error {
	s.mu.Lock()
	s.state = SessionState{Token: strings.TrimSpace(token), Username: username}
	st := s.state
	s.mu.Unlock()
	return s.store.Save(st)
}

// Invalidate drops the token and flags the session as rejected by the backend.
func (s *Session) Invalidate() error {
	s.mu.Lock()
	s.state.Token = ""
	s.state.Unauthorized = true
	st := s.state
	s.mu.Unlock()
	return s.store.Save(st)
}

// Logout drops the token without flagging an authorization failure.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.state = SessionState{}
	s.mu.Unlock()
	return s.store.Save(SessionState{})
}

// ConsumeUnauthorized reports whether the last session ended with an
// authorization failure, clearing the flag so it is surfaced once.
func (s *Session) ConsumeUnauthorized() bool {
	s.mu.Lock()
	flagged := s.state.Unauthorized
	s.state.Unauthorized = false
	st := s.state
	s.mu.Unlock()
	if flagged {
		_ = s.store.Save(st)
	}
	return flagged
}

// AuthorizationHeader returns the Authorization header value, empty when logged out.
func (s *Session) AuthorizationHeader() string {
	token := s.Token()
	if token == "" {
		return ""
	}
	if strings.Contains(token, " ") {
		return token
	}
	return "Bearer " + token
}

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	state SessionState
}

func (m *MemoryStore) Load() (SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *MemoryStore) Save(st SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = st
	return nil
}

// FileStore persists the session as TOML, readable only by the owner.
type FileStore struct {
	Path string
}

func (f FileStore) Load() (SessionState, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SessionState{}, nil
		}
		return SessionState{}, fmt.Errorf("read session: %w", err)
	}
	var st SessionState
	if err := toml.Unmarshal(data, &st); err != nil {
		return SessionState{}, fmt.Errorf("parse session: %w", err)
	}
	return st, nil
}

func (f FileStore) Save(st SessionState) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}
