// Package prefs persists the connector preferences: the account credentials
// entered by the user and the state the gateway rotates (customer id and host
// cursor).
package prefs

import (
	"context"
	"strings"
	"sync"

	"github.com/wolfman30/gmx-sms-connector/internal/gateway"
)

// Preference keys, shared by every backend.
const (
	KeyEnabled    = "enabled"
	KeyUsername   = "username"
	KeyPassword   = "password"
	KeyCustomerID = "customer_id"
	KeyHostCursor = "host_cursor"
)

// DefaultAccount is used when no account name is configured.
const DefaultAccount = "default"

// Preferences is the stored connector state of one account.
type Preferences struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Username   string `yaml:"username" json:"username"`
	Password   string `yaml:"password" json:"-"`
	CustomerID string `yaml:"customer_id,omitempty" json:"customer_id,omitempty"`
	HostCursor int    `yaml:"host_cursor" json:"host_cursor"`
}

// HasCredentials reports whether username and password are set.
func (p Preferences) HasCredentials() bool {
	return strings.TrimSpace(p.Username) != "" && p.Password != ""
}

// Account projects the credentials the gateway needs.
func (p Preferences) Account() gateway.Account {
	return gateway.Account{
		Username:   strings.TrimSpace(p.Username),
		Password:   p.Password,
		CustomerID: strings.TrimSpace(p.CustomerID),
	}
}

// Store loads and saves preferences. Loading an unknown account returns zero
// preferences and no error.
type Store interface {
	Load(ctx context.Context) (Preferences, error)
	Save(ctx context.Context, p Preferences) error
}

// MemoryStore keeps preferences in process.
type MemoryStore struct {
	mu    sync.Mutex
	prefs Preferences
}

// NewMemoryStore seeds a store with p.
func NewMemoryStore(p Preferences) *MemoryStore {
	return &MemoryStore{prefs: p}
}

func (s *MemoryStore) Load(ctx context.Context) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs, nil
}

func (s *MemoryStore) Save(ctx context.Context, p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
	return nil
}

func accountOrDefault(account string) string {
	account = strings.TrimSpace(account)
	if account == "" {
		return DefaultAccount
	}
	return account
}
