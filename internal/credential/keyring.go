package credential

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"
)

const serviceName = "agri-advisor"

// TokenKey is the single slot holding the session bearer token.
const TokenKey = "access-token"

// ErrNotFound is returned by Get when the slot is empty.
var ErrNotFound = errors.New("credential not found")

// TokenStore is durable storage for the session token. Set and Delete
// are single-key writes; Delete on an empty slot is not an error.
type TokenStore interface {
	Get() (string, error)
	Set(token string) error
	Delete() error
}

// KeyringStore keeps the token in one keyring item.
type KeyringStore struct {
	ring keyring.Keyring
	key  string
}

// OpenKeyring returns a configured system keyring. Credentials that fall
// back to the file backend live under dir.
func OpenKeyring(dir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(dir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("agri-advisor-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// NewKeyringStore wraps ring as a TokenStore using TokenKey.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring, key: TokenKey}
}

// NewMemoryStore returns a TokenStore backed by an in-memory keyring.
func NewMemoryStore() *KeyringStore {
	return NewKeyringStore(keyring.NewArrayKeyring(nil))
}

// Get retrieves the token from the keyring.
func (s *KeyringStore) Get() (string, error) {
	item, err := s.ring.Get(s.key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("getting credential %q: %w", s.key, err)
	}
	if len(item.Data) == 0 {
		return "", ErrNotFound
	}

	return string(item.Data), nil
}

// Set stores the token in the keyring.
func (s *KeyringStore) Set(token string) error {
	err := s.ring.Set(keyring.Item{
		Key:   s.key,
		Label: "agri-advisor session token",
		Data:  []byte(token),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", s.key, err)
	}

	return nil
}

// Delete removes the token from the keyring.
func (s *KeyringStore) Delete() error {
	err := s.ring.Remove(s.key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", s.key, err)
	}

	return nil
}
