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

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KDFIterations is the PBKDF2 iteration count used for key derivation.
	KDFIterations = 100000

	saltBytes = 16
	keyBytes  = 32
)

var (
	randomRead                  = rand.Read
	cipherNonceReader io.Reader = rand.Reader
)

// ErrMasterKeyEmpty is returned when a cipher is constructed without a key.
var ErrMasterKeyEmpty = errors.New("master key must not be empty")

// CredentialCipher encrypts and decrypts credential secrets. Each Encrypt
// call draws a fresh salt; the AES-256-GCM key is derived from the
// process-wide master key plus that salt via PBKDF2-HMAC-SHA256.
type CredentialCipher struct {
	masterKey []byte
}

// NewCredentialCipher creates a cipher bound to the given master key.
func NewCredentialCipher(masterKey string) (*CredentialCipher, error) {
	if masterKey == "" {
		return nil, ErrMasterKeyEmpty
	}
	return &CredentialCipher{masterKey: []byte(masterKey)}, nil
}

// GenerateSalt returns a fresh random 128-bit salt, hex encoded.
func GenerateSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := randomRead(b); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Encrypt encrypts a secret under a key derived from the master key and a
// fresh salt. Returns the base64 ciphertext (nonce prepended) and the salt.
func (c *CredentialCipher) Encrypt(secret string) (string, string, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return "", "", err
	}

	gcm, err := c.aead(salt)
	if err != nil {
		return "", "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(cipherNonceReader, nonce); err != nil {
		return "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(secret), nil)
	return base64.StdEncoding.EncodeToString(sealed), salt, nil
}

// Decrypt reverses Encrypt using the stored salt. Any malformed ciphertext,
// wrong key or authentication failure yields an error; callers map it to the
// decryption-failure branch of their error taxonomy.
func (c *CredentialCipher) Decrypt(ciphertext, salt string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("malformed ciphertext: %w", err)
	}

	gcm, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("malformed ciphertext: too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}

	return string(plaintext), nil
}

func (c *CredentialCipher) aead(salt string) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.masterKey, []byte(salt), KDFIterations, keyBytes, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
