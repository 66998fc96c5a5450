// Package credentials resolves the Gemini API key from the environment, the
// config file or the operating system keyring.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	KeyringService = "meetscope"
	KeyringUser    = "gemini"
	EnvAPIKey      = "GEMINI_API_KEY"
)

var ErrNoCredential = errors.New("no Gemini API key configured")

type Source string

const (
	SourceEnv     Source = "environment"
	SourceConfig  Source = "config file"
	SourceKeyring Source = "keyring"
)

type Store struct {
	service string
	user    string
}

func NewStore() *Store {
	return &Store{service: KeyringService, user: KeyringUser}
}

func (s *Store) Save(apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("api key is empty")
	}
	if err := keyring.Set(s.service, s.user, apiKey); err != nil {
		return fmt.Errorf("failed to store api key in keyring: %w", err)
	}
	return nil
}

func (s *Store) Load() (string, error) {
	key, err := keyring.Get(s.service, s.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("failed to read api key from keyring: %w", err)
	}
	return key, nil
}

func (s *Store) Delete() error {
	err := keyring.Delete(s.service, s.user)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete api key from keyring: %w", err)
	}
	return nil
}

// Resolve returns the first key found in: environment, configured value,
// keyring. Keyring failures (no secret service on headless hosts) are
// reported as ErrNoCredential.
func (s *Store) Resolve(configured string) (string, Source, error) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		return v, SourceEnv, nil
	}
	if v := strings.TrimSpace(configured); v != "" {
		return v, SourceConfig, nil
	}
	key, err := s.Load()
	if err != nil {
		if errors.Is(err, ErrNoCredential) {
			return "", "", err
		}
		return "", "", fmt.Errorf("%w: %v", ErrNoCredential, err)
	}
	return key, SourceKeyring, nil
}

func Mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
