// Package credstore keeps backend tokens in the operating system keyring so
// that interactive runs do not need them in the environment.
package credstore

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Service is the keyring service name every entry is stored under.
const Service = "provisioner"

// Accounts for the three backends.
const (
	GitLab = "gitlab"
	Vault  = "vault"
	Consul = "consul"
)

// ErrNotFound is returned when no token is stored for an account.
var ErrNotFound = errors.New("no token stored in keyring")

// Store reads and writes backend tokens.
type Store interface {
	Get(account string) (string, error)
	Set(account, token string) error
	Delete(account string) error
}

// Keyring is the Store backed by the OS keyring (Keychain, Secret Service,
// Windows Credential Manager).
type Keyring struct {
	service string
}

// NewKeyring returns a Store using the default service name.
func NewKeyring() *Keyring {
	return &Keyring{service: Service}
}

func (k *Keyring) Get(account string) (string, error) {
	token, err := keyring.Get(k.service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("keyring lookup for %s failed: %w", account, err)
	}
	return token, nil
}

func (k *Keyring) Set(account, token string) error {
	if token == "" {
		return fmt.Errorf("refusing to store empty token for %s", account)
	}
	if err := keyring.Set(k.service, account, token); err != nil {
		return fmt.Errorf("keyring write for %s failed: %w", account, err)
	}
	return nil
}

func (k *Keyring) Delete(account string) error {
	err := keyring.Delete(k.service, account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete for %s failed: %w", account, err)
	}
	return nil
}

// IsKnownAccount reports whether account names one of the backends.
func IsKnownAccount(account string) bool {
	switch account {
	case GitLab, Vault, Consul:
		return true
	}
	return false
}

var _ Store = (*Keyring)(nil)
