package prefs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

type fileDocument struct {
	Accounts map[string]Preferences `yaml:"accounts"`
}

// FileStore keeps preferences of several accounts in one YAML file.
type FileStore struct {
	path    string
	account string
	mu      sync.Mutex
}

// NewFileStore creates a store for account backed by path.
func NewFileStore(path, account string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("prefs: file path required")
	}
	return &FileStore{path: path, account: accountOrDefault(account)}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return Preferences{}, err
	}
	return doc.Accounts[s.account], nil
}

func (s *FileStore) Save(ctx context.Context, p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Accounts[s.account] = p

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("prefs: marshal %s: %w", s.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("prefs: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".prefs-*.yaml")
	if err != nil {
		return fmt.Errorf("prefs: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("prefs: write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("prefs: chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("prefs: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("prefs: replace %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) read() (fileDocument, error) {
	doc := fileDocument{}
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return doc, fmt.Errorf("prefs: read %s: %w", s.path, err)
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return doc, fmt.Errorf("prefs: parse %s: %w", s.path, err)
		}
	}
	if doc.Accounts == nil {
		doc.Accounts = make(map[string]Preferences)
	}
	return doc, nil
}
