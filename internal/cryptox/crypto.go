// Package cryptox seals and opens response payloads with AES-GCM.
//
// A sealed payload is the standard base64 encoding of nonce||ciphertext,
// where the nonce is 12 bytes. Keys are 16, 24 or 32 bytes; ParseKey accepts
// them hex-encoded or derives a 32-byte key from a passphrase with argon2id.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/shiftdesk/internal/common"
	"golang.org/x/crypto/argon2"
)

const nonceSize = 12

// DefaultSalt is used by ParseKey when a passphrase is given without a salt.
const DefaultSalt = "shiftdesk-payload"

// DeriveKey stretches a passphrase into a 32-byte AES-256 key.
func DeriveKey(passphrase []byte, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// ParseKey turns a configured key into raw AES key bytes. A value of the
// form "hex:<digits>" or a bare 32/48/64-digit hex string is decoded as-is;
// anything else is treated as a passphrase for DeriveKey. An empty value
// yields a nil key, meaning decryption is disabled.
func ParseKey(value string, salt string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}

	raw, explicit := strings.CutPrefix(value, "hex:")
	if b, err := hex.DecodeString(raw); err == nil {
		switch len(b) {
		case 16, 24, 32:
			return b, nil
		}
		if explicit {
			return nil, fmt.Errorf("%w: %d-byte key", common.ErrInvalidKey, len(b))
		}
	} else if explicit {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidKey, err)
	}

	if salt == "" {
		salt = DefaultSalt
	}
	return DeriveKey([]byte(value), []byte(salt)), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidKey, err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under key and returns the base64 payload.
func Seal(plaintext, key []byte) (string, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aesgcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Any malformed input is reported as
// common.ErrDecryption.
func Open(payload string, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	if len(data) < nonceSize+aesgcm.Overhead() {
		return nil, fmt.Errorf("%w: payload too short", common.ErrDecryption)
	}

	plaintext, err := aesgcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}
	return plaintext, nil
}

// Wipe overwrites b with zeros. Use it on key material and secrets once
// they are no longer needed.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
