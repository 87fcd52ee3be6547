package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Load reads a persisted session. A missing file yields an empty session.
func Load(path string) (Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := toml.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("parse session: %w", err)
	}
	return s, nil
}

// Save writes the session readable by the owner only.
func Save(path string, s Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Chmod(path, 0o600)
}

// Remove deletes the session file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Manager ties a Store to its file on disk.
type Manager struct {
	Store *Store
	Path  string
}

// NewManager builds a Manager over a fresh store.
func NewManager(path string) *Manager {
	return &Manager{Store: &Store{}, Path: path}
}

// Restore loads the persisted session into the store. An invalid session on
// disk leaves the store empty.
func (m *Manager) Restore() (Session, bool, error) {
	s, err := Load(m.Path)
	if err != nil {
		return Session{}, false, err
	}
	if !s.Valid() {
		m.Store.Clear()
		return Session{}, false, nil
	}
	m.Store.Populate(s)
	return s, true, nil
}

// Login populates the store and persists the session.
func (m *Manager) Login(s Session) error {
	m.Store.Populate(s)
	if m.Path == "" {
		return nil
	}
	return Save(m.Path, s)
}

// Logout clears the store and deletes the persisted session.
func (m *Manager) Logout() error {
	m.Store.Clear()
	if m.Path == "" {
		return nil
	}
	return Remove(m.Path)
}
