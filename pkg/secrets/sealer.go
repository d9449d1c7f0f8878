package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of master keys (AES-256).
const KeySize = 32

const hkdfInfo = "authkit-credentials-v1"

// Sealer encrypts short strings with AES-256-GCM. The cipher key is derived
// from a master key and a scope with HKDF-SHA256, so one master key yields
// unrelated keys for different stores.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the cipher key for scope from masterKey.
func NewSealer(masterKey []byte, scope string) (*Sealer, error) {
	if len(masterKey) != KeySize {
		return nil, ErrInvalidKey
	}

	key := make([]byte, KeySize)
	defer clear(key)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, []byte(scope), []byte(hkdfInfo)), key); err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal returns base64(nonce || ciphertext || tag).
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Join(ErrEncryptionFailed, err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", errors.Join(ErrInvalidCiphertext, err)
	}
	n := s.aead.NonceSize()
	if len(raw) < n+s.aead.Overhead() {
		return "", ErrInvalidCiphertext
	}
	plain, err := s.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", errors.Join(ErrDecryptionFailed, err)
	}
	return string(plain), nil
}

// GenerateKey returns a random master key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// ParseKey decodes a base64 (standard or URL alphabet) master key.
func ParseKey(encoded string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(encoded); err == nil {
			if len(key) != KeySize {
				return nil, ErrInvalidKey
			}
			return key, nil
		}
	}
	return nil, ErrInvalidKey
}
