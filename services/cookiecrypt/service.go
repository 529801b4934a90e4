// Package cookiecrypt wraps signed session tokens in Fernet tokens so the
// cookie value is opaque to the browser while the server can still recover
// the literal token for revocation and inspection.
package cookiecrypt

import (
	"errors"
	"fmt"

	"github.com/fernet/fernet-go"
	"github.com/tech-arch1tect/backyard/config"
)

var ErrInvalidCiphertext = errors.New("invalid encrypted token")

type Service struct {
	key *fernet.Key
}

func NewService(cfg *config.Config) (*Service, error) {
	return NewWithKey(cfg.Cookie.EncryptionKey)
}

// NewWithKey accepts a base64 encoded 32-byte Fernet key.
func NewWithKey(encoded string) (*Service, error) {
	key, err := fernet.DecodeKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid cookie encryption key: %w", err)
	}
	return &Service{key: key}, nil
}

func (s *Service) Encrypt(raw string) (string, error) {
	token, err := fernet.EncryptAndSign([]byte(raw), s.key)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt token: %w", err)
	}
	return string(token), nil
}

// Decrypt fails with ErrInvalidCiphertext for tampered, foreign-key or
// malformed values. Token age is not checked here; the wrapped JWT carries
// its own expiry.
func (s *Service) Decrypt(value string) (string, error) {
	if value == "" {
		return "", ErrInvalidCiphertext
	}
	msg := fernet.VerifyAndDecrypt([]byte(value), 0, []*fernet.Key{s.key})
	if msg == nil {
		return "", ErrInvalidCiphertext
	}
	return string(msg), nil
}
