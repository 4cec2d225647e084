// Package credentials resolves account secrets: the OS keyring first, then an
// optional age-encrypted secrets file.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"filippo.io/age"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"github.com/melih-ucgun/integra/internal/core"
)

// Store looks up a secret by account name. Implementations must be safe for
// concurrent use and return an error wrapping core.ErrSecretNotFound when the
// account has no secret.
type Store interface {
	Secret(account string) (string, error)
}

// Keyring reads secrets from the OS keyring under one service name.
type Keyring struct {
	Service string
}

// NewKeyring creates a keyring store for service.
func NewKeyring(service string) *Keyring {
	return &Keyring{Service: service}
}

func (k *Keyring) Secret(account string) (string, error) {
	secret, err := keyring.Get(k.Service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", core.ErrSecretNotFound, account)
	}
	if err != nil {
		return "", fmt.Errorf("keyring lookup for %s: %w", account, err)
	}
	return secret, nil
}

// Set stores a secret.
func (k *Keyring) Set(account, secret string) error {
	return keyring.Set(k.Service, account, secret)
}

// AgeFile reads secrets from an age-encrypted YAML mapping of account to
// secret. The file is decrypted once, on first use.
type AgeFile struct {
	Path         string
	IdentityPath string

	once    sync.Once
	secrets map[string]string
	err     error
}

// NewAgeFile creates a store for an encrypted secrets file and the X25519
// identity file that decrypts it.
func NewAgeFile(path, identityPath string) *AgeFile {
	return &AgeFile{Path: path, IdentityPath: identityPath}
}

func (a *AgeFile) Secret(account string) (string, error) {
	a.once.Do(func() { a.secrets, a.err = a.load() })
	if a.err != nil {
		return "", a.err
	}
	secret, ok := a.secrets[account]
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrSecretNotFound, account)
	}
	return secret, nil
}

func (a *AgeFile) load() (map[string]string, error) {
	idData, err := os.ReadFile(a.IdentityPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity file: %w", err)
	}
	identities, err := age.ParseIdentities(bytes.NewReader(idData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse identity file: %w", err)
	}

	f, err := os.Open(a.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open secrets file: %w", err)
	}
	defer f.Close()

	r, err := age.Decrypt(f, identities...)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secrets file: %w", err)
	}

	secrets := make(map[string]string)
	if err := yaml.NewDecoder(r).Decode(&secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secrets file: %w", err)
	}
	return secrets, nil
}

// Chain asks each store in order and returns the first secret found. A store
// that fails, such as a keyring without a backend on a headless host, is
// skipped; its error is returned alongside ErrSecretNotFound when no later
// store has the secret.
type Chain []Store

func (c Chain) Secret(account string) (string, error) {
	var errs []error
	for _, s := range c {
		secret, err := s.Secret(account)
		if err == nil {
			return secret, nil
		}
		if !errors.Is(err, core.ErrSecretNotFound) {
			slog.Debug("secret store failed", "account", account, "error", err)
			errs = append(errs, err)
		}
	}
	notFound := fmt.Errorf("%w: %s", core.ErrSecretNotFound, account)
	if len(errs) > 0 {
		return "", errors.Join(append([]error{notFound}, errs...)...)
	}
	return "", notFound
}

// Static is a fixed in-memory store.
type Static map[string]string

func (s Static) Secret(account string) (string, error) {
	secret, ok := s[account]
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrSecretNotFound, account)
	}
	return secret, nil
}
