// Package credstore keeps API credentials out of profile files: a
// file-backed secret store plus the authenticators that inject resolved
// secrets into outgoing requests.
package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"specli/internal/usecase"
)

// Store implements usecase.CredentialStore on a single JSON file with
// 0600 permissions. It is not safe for concurrent writers; the CLI is a
// single-shot process so that never arises.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Get(name string) (string, error) {
	creds, err := s.load()
	if err != nil {
		return "", err
	}
	value, ok := creds[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", usecase.ErrCredentialNotFound, name)
	}
	return value, nil
}

func (s *Store) Set(name, value string) error {
	creds, err := s.load()
	if err != nil {
		return err
	}
	creds[name] = value
	return s.save(creds)
}

func (s *Store) Delete(name string) error {
	creds, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := creds[name]; !ok {
		return fmt.Errorf("%w: %s", usecase.ErrCredentialNotFound, name)
	}
	delete(creds, name)
	return s.save(creds)
}

// List returns credential names only, sorted. Values never leave the store
// in bulk.
func (s *Store) List() ([]string, error) {
	creds, err := s.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(creds))
	for name := range creds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credential store: %w", err)
	}

	creds := map[string]string{}
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("credential store %s is corrupt: %w", s.path, err)
	}
	return creds, nil
}

func (s *Store) save(creds map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	return os.WriteFile(s.path, data, 0o600)
}
