// Package crypto encrypts the Gmail OAuth access tokens this pipeline
// stores alongside each user (core/domain.User.EncryptedAccessToken) so a
// database dump alone never hands out a live credential.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	// globalEncryptor backs the package-level Encrypt/Decrypt helpers.
	globalEncryptor *Encryptor
	once            sync.Once

	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

// Encryptor handles AES-256-GCM encryption/decryption of stored tokens.
type Encryptor struct {
	gcm cipher.AEAD
	mu  sync.RWMutex
}

// NewEncryptor builds an encryptor from key material of any length; a key
// that isn't already 32 bytes is stretched to AES-256 size with SHA-256.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != 32 {
		hash := sha256.Sum256(key)
		key = hash[:]
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("build cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("build GCM: %w", err)
	}

	return &Encryptor{gcm: gcm}, nil
}

// Init builds the global encryptor from the ENCRYPTION_KEY environment
// variable. Call it once at process startup; subsequent calls are no-ops.
func Init() error {
	var initErr error
	once.Do(func() {
		key := os.Getenv("ENCRYPTION_KEY")
		if key == "" {
			initErr = errors.New("ENCRYPTION_KEY must be set")
			return
		}

		enc, err := NewEncryptor([]byte(key))
		if err != nil {
			initErr = err
			return
		}
		globalEncryptor = enc
	})
	return initErr
}

// Encrypt encrypts plaintext and returns base64-encoded ciphertext.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts base64-encoded ciphertext produced by Encrypt.
func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	nonceSize := e.gcm.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	nonce, encrypted := data[:nonceSize], data[nonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// EncryptToken encrypts an OAuth access token before it's persisted.
func (e *Encryptor) EncryptToken(token string) (string, error) {
	return e.Encrypt(token)
}

// DecryptToken decrypts a stored OAuth access token.
func (e *Encryptor) DecryptToken(encryptedToken string) (string, error) {
	return e.Decrypt(encryptedToken)
}

// Encrypt encrypts plaintext using the global encryptor, initializing it
// from the environment on first use if Init was never called explicitly.
func Encrypt(plaintext string) (string, error) {
	if globalEncryptor == nil {
		if err := Init(); err != nil {
			return "", err
		}
	}
	return globalEncryptor.Encrypt(plaintext)
}

// Decrypt decrypts ciphertext using the global encryptor.
func Decrypt(ciphertext string) (string, error) {
	if globalEncryptor == nil {
		if err := Init(); err != nil {
			return "", err
		}
	}
	return globalEncryptor.Decrypt(ciphertext)
}

// EncryptToken encrypts an OAuth access token using the global encryptor.
func EncryptToken(token string) (string, error) {
	return Encrypt(token)
}

// DecryptToken decrypts a user's stored Gmail access token using the
// global encryptor; the sync scheduler calls this once per user before
// attaching the token to that user's sync context.
func DecryptToken(encryptedToken string) (string, error) {
	return Decrypt(encryptedToken)
}
