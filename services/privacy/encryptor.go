// Package privacy covers encryption at rest, pseudonymizing anonymization
// for analytics, and the compliance audit trail with retention reporting.
package privacy

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"os"

	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"

	"github.com/healthassess/secure-gateway/services"
)

const (
	keySize        = 32
	pbkdf2Rounds   = 100000
	pbkdf2SaltSize = 16
)

// Encryptor encrypts field values with AES-256-GCM under a master key
// loaded from a key file. The file is created with 0600 permissions on
// first use and reused afterwards, so ciphertexts survive restarts.
type Encryptor struct {
	aead   cipher.AEAD
	logger *zap.Logger
}

// NewEncryptor loads or creates the master key at keyFile and prepares the
// cipher. Key material problems surface as EncryptionFailure.
func NewEncryptor(keyFile string, logger *zap.Logger) (*Encryptor, error) {
	key, err := loadOrCreateKey(keyFile)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeEncryption, "key material unavailable", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeEncryption, "cipher init failed", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeEncryption, "cipher init failed", err)
	}

	return &Encryptor{aead: aead, logger: logger}, nil
}

func loadOrCreateKey(keyFile string) ([]byte, error) {
	if raw, err := os.ReadFile(keyFile); err == nil {
		key, decErr := base64.StdEncoding.DecodeString(string(raw))
		if decErr != nil || len(key) != keySize {
			return nil, services.ErrEncryptionFailure
		}
		return key, nil
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(keyFile, []byte(encoded), 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		e.logger.Error("encryption failed", zap.Error(err))
		return "", services.ErrEncryptionFailure
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Tampered or truncated input yields
// EncryptionFailure without detail about which check failed.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) < e.aead.NonceSize() {
		return "", services.ErrEncryptionFailure
	}
	nonce, ciphertext := raw[:e.aead.NonceSize()], raw[e.aead.NonceSize():]
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", services.ErrEncryptionFailure
	}
	return string(plaintext), nil
}

// HashPII derives a storage-safe hash of a PII value with PBKDF2-SHA256.
// When salt is empty a fresh random one is generated; the same value and
// salt always produce the same hash.
func (e *Encryptor) HashPII(value, salt string) (hash string, usedSalt string, err error) {
	if salt == "" {
		raw := make([]byte, pbkdf2SaltSize)
		if _, err := rand.Read(raw); err != nil {
			return "", "", services.ErrEncryptionFailure
		}
		salt = hex.EncodeToString(raw)
	}
	derived := pbkdf2.Key([]byte(value), []byte(salt), pbkdf2Rounds, keySize, sha256.New)
	return base64.StdEncoding.EncodeToString(derived), salt, nil
}
