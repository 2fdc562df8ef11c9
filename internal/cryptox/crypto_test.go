package cryptox

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveMasterKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveMasterKey(password, salt)
	key2 := DeriveMasterKey(password, salt)

	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same result for same inputs, got different")
	}

	// snapshot of argon2id(t=1, m=64MiB, p=4)
	expectedHex := "34f7a1c64df63ab1ad5b5ee06e64db5713b35f81839823304db63e8e5e6a6a39"
	if hex.EncodeToString(key1) != expectedHex {
		t.Errorf("expected %s, got %s", expectedHex, hex.EncodeToString(key1))
	}
}

func TestDeriveMasterKey_DifferentInputs(t *testing.T) {
	password := []byte("secret-password")

	key1 := DeriveMasterKey(password, []byte("salt-1"))
	key2 := DeriveMasterKey(password, []byte("salt-2"))

	if bytes.Equal(key1, key2) {
		t.Errorf("expected different results for different salts, got same")
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{7}, KeySize)
	plaintext := []byte(`{"subject":"Mathematics"}`)

	ct, nonce, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	require.Len(t, nonce, NonceSize)
	require.NotEqual(t, plaintext, ct)

	got, err := Decrypt(ct, nonce, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	key := bytes.Repeat([]byte{1}, KeySize)

	ct1, n1, err := Encrypt([]byte("same"), key)
	require.NoError(t, err)
	ct2, n2, err := Encrypt([]byte("same"), key)
	require.NoError(t, err)

	assert.NotEqual(t, n1, n2)
	assert.NotEqual(t, ct1, ct2)
}

func TestEncrypt_BadKeyLength(t *testing.T) {
	_, _, err := Encrypt([]byte("x"), []byte("short"))
	require.Error(t, err)
}

func TestDecrypt_TamperedAndWrongKey(t *testing.T) {
	key := bytes.Repeat([]byte{2}, KeySize)
	ct, nonce, err := Encrypt([]byte("payload"), key)
	require.NoError(t, err)

	tampered := append([]byte(nil), ct...)
	tampered[0] ^= 0xFF
	_, err = Decrypt(tampered, nonce, key)
	require.ErrorIs(t, err, ErrDecrypt)

	_, err = Decrypt(ct, nonce, bytes.Repeat([]byte{3}, KeySize))
	require.ErrorIs(t, err, ErrDecrypt)

	_, err = Decrypt(ct, nonce[:4], key)
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestSealOpenWithPassphrase(t *testing.T) {
	sealed, err := SealWithPassphrase([]byte("grades"), "correct horse")
	require.NoError(t, err)
	require.Len(t, sealed.Salt, SaltSize)
	require.Len(t, sealed.Nonce, NonceSize)

	plain, err := OpenWithPassphrase(sealed.Ciphertext, sealed.Nonce, sealed.Salt, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, []byte("grades"), plain)

	_, err = OpenWithPassphrase(sealed.Ciphertext, sealed.Nonce, sealed.Salt, "wrong")
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestSealWithPassphrase_Empty(t *testing.T) {
	_, err := SealWithPassphrase([]byte("x"), "")
	require.ErrorIs(t, err, ErrEmptyPassphrase)

	_, err = OpenWithPassphrase([]byte("x"), nil, nil, "")
	require.ErrorIs(t, err, ErrEmptyPassphrase)
}
