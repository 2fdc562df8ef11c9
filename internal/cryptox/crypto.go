// Package cryptox implements passphrase-based authenticated encryption for
// stored payloads: argon2id key derivation and AES-256-GCM.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gradekeeper/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// SaltSize is the length of the random argon2 salt stored next to each
	// encrypted payload.
	SaltSize = 16
	// NonceSize is the AES-GCM standard nonce length.
	NonceSize = 12
	// KeySize selects AES-256.
	KeySize = 32
)

var (
	ErrEmptyPassphrase = errors.New("empty passphrase")
	ErrDecrypt         = errors.New("decryption failed")
)

// DeriveMasterKey stretches password with argon2id (t=1, m=64MiB, p=4) into a
// 32-byte key. The same password and salt always yield the same key.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
}

// Encrypt seals plaintext with AES-GCM under key using a fresh random nonce.
// The key must be 16, 24 or 32 bytes long.
func Encrypt(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("nonce: %w", err)
	}

	return aesgcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Decrypt opens ciphertext produced by Encrypt. Any authentication failure
// (wrong key, tampered bytes, wrong nonce) is reported as ErrDecrypt.
func Decrypt(ciphertext, nonce, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aesgcm.NonceSize() {
		return nil, fmt.Errorf("%w: nonce size %d", ErrDecrypt, len(nonce))
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}

// Sealed is the result of SealWithPassphrase. Salt and Nonce must be kept
// alongside Ciphertext to decrypt it later.
type Sealed struct {
	Ciphertext []byte
	Nonce      []byte
	Salt       []byte
}

// SealWithPassphrase derives a key from passphrase and a fresh random salt,
// then encrypts plaintext with it.
func SealWithPassphrase(plaintext []byte, passphrase string) (*Sealed, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}

	salt := common.GenerateRandByteArray(SaltSize)
	key := DeriveMasterKey([]byte(passphrase), salt)
	defer common.WipeByteArray(key)

	ciphertext, nonce, err := Encrypt(plaintext, key)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	return &Sealed{Ciphertext: ciphertext, Nonce: nonce, Salt: salt}, nil
}

// OpenWithPassphrase reverses SealWithPassphrase.
func OpenWithPassphrase(ciphertext, nonce, salt []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}

	key := DeriveMasterKey([]byte(passphrase), salt)
	defer common.WipeByteArray(key)

	return Decrypt(ciphertext, nonce, key)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return aesgcm, nil
}
