package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrNoMasterKey is returned when sealing is attempted without a configured key
var ErrNoMasterKey = errors.New("encryption master key is required")

// EncryptionService seals per-user secrets (provider API keys) at rest
type EncryptionService struct {
	masterKey []byte
}

// NewEncryptionService creates a new encryption service with the given master key.
// masterKey must be 32 bytes hex-encoded (64 characters).
func NewEncryptionService(masterKeyHex string) (*EncryptionService, error) {
	if masterKeyHex == "" {
		return nil, ErrNoMasterKey
	}

	masterKey, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid master key format (must be hex): %w", err)
	}
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes (64 hex characters), got %d bytes", len(masterKey))
	}

	return &EncryptionService{masterKey: masterKey}, nil
}

// userCipher derives the user's AES-256 key with HKDF and wraps it in GCM
func (e *EncryptionService) userCipher(userID string) (cipher.AEAD, error) {
	if userID == "" {
		return nil, errors.New("user ID is required for key derivation")
	}

	reader := hkdf.New(sha256.New, e.masterKey, []byte(userID), []byte("advisorjournal-user-secret"))
	userKey := make([]byte, 32)
	if _, err := io.ReadFull(reader, userKey); err != nil {
		return nil, fmt.Errorf("failed to derive user key: %w", err)
	}

	block, err := aes.NewCipher(userKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// SealString encrypts a secret for one user. The nonce is prepended and the result base64-encoded.
func (e *EncryptionService) SealString(userID, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	gcm, err := e.userCipher(userID)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenString reverses SealString. Sealed values are bound to the user they were sealed for.
func (e *EncryptionService) OpenString(userID, sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	gcm, err := e.userCipher(userID)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

// GenerateMasterKey generates a new random 32-byte master key (for setup)
func GenerateMasterKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}
