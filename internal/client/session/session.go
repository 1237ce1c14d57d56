// Package session persists the operator's bearer token between runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TokenKey is the well-known key the token is stored under.
const TokenKey = "token"

// Store is a file-backed holder of a single bearer token. The file is the
// only source of truth: absence of the key means the operator must log in.
// A Store is safe for concurrent use; the token is only ever replaced whole
// or cleared.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a Store persisting to path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Token returns the stored token and whether one is present.
func (s *Store) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return "", false
	}
	tok := data[TokenKey]
	return tok, tok != ""
}

// SetToken replaces the stored token.
func (s *Store) SetToken(token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		data = map[string]string{}
	}
	data[TokenKey] = token
	return s.save(data)
}

// Clear removes the token. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return nil
	}
	if _, ok := data[TokenKey]; !ok {
		return nil
	}
	delete(data, TokenKey)
	if len(data) == 0 {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	}
	return s.save(data)
}

func (s *Store) load() (map[string]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data := map[string]string{}
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return data, nil
}

func (s *Store) save(data map[string]string) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create session dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(data); err != nil {
		f.Close()
		return fmt.Errorf("encode session file: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
