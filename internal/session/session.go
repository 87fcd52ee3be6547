// Package session holds the authenticated operator's session and persists it
// between runs.
package session

import (
	"strings"
	"sync"
	"time"
)

// Session is the identity established at login.
type Session struct {
	Token       string    `toml:"token"`
	DisplayName string    `toml:"display_name"`
	Role        string    `toml:"role"`
	TenantID    int       `toml:"tenant_id"`
	TenantCode  string    `toml:"tenant_code,omitempty"`
	Email       string    `toml:"email,omitempty"`
	IssuedAt    time.Time `toml:"issued_at,omitempty"`
}

// Valid reports whether the session can authorize requests.
func (s Session) Valid() bool {
	return strings.TrimSpace(s.Token) != "" && s.TenantID > 0
}

// Store is the in-memory session shared by every component. It is written
// only at login and logout.
type Store struct {
	mu      sync.RWMutex
	current Session
}

// NewStore returns a Store pre-populated with s. A zero Session yields an
// empty store.
func NewStore(s Session) *Store {
	return &Store{current: s}
}

// Populate replaces the current session.
func (st *Store) Populate(s Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.current = s
}

// Clear drops every session field.
func (st *Store) Clear() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.current = Session{}
}

// Current returns the session and whether it is valid.
func (st *Store) Current() (Session, bool) {
	if st == nil {
		return Session{}, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current, st.current.Valid()
}

// Token returns the bearer token or "".
func (st *Store) Token() string {
	s, _ := st.Current()
	return s.Token
}

// TenantID returns the tenant id or 0.
func (st *Store) TenantID() int {
	s, _ := st.Current()
	return s.TenantID
}
