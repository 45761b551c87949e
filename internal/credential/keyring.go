// Package credential keeps mail server passwords in the OS keyring.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/nhle/audit-mailer/internal/model"
)

const serviceName = "auditmailer"

// Server kinds a password can be stored for.
const (
	KindSMTP = "smtp"
	KindIMAP = "imap"
)

// Key returns the keyring key for the given server kind and username.
func Key(kind, username string) string {
	return kind + "-" + username
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/auditmailer/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("auditmailer-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Store reads and writes credentials in a keyring.
type Store struct {
	ring keyring.Keyring
}

// Open opens the system keyring.
func Open() (*Store, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}
	return NewStore(ring), nil
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Get retrieves a credential value by key.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key.
func (s *Store) Set(key string, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "auditmailer " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key.
func (s *Store) Delete(key string) error {
	err := s.ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// FillPasswords sets the SMTP and IMAP passwords that are empty in cfg
// from the keyring. Passwords already present in cfg are left alone, and
// a password missing from the keyring stays empty.
func (s *Store) FillPasswords(cfg *model.AppConfig) error {
	fill := func(kind, username string, password *string) error {
		if *password != "" || username == "" {
			return nil
		}
		v, err := s.Get(Key(kind, username))
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		*password = v
		return nil
	}

	if err := fill(KindSMTP, cfg.SMTP.Username, &cfg.SMTP.Password); err != nil {
		return err
	}
	return fill(KindIMAP, cfg.IMAP.Username, &cfg.IMAP.Password)
}
