package cryptox

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/dmitrijs2005/shiftdesk/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveKey(password, salt)
	key2 := DeriveKey(password, salt)

	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same result for same inputs, got different")
	}

	expectedHex := "9290403300158e19f27e48e7087f7383b03065bf5b25ef23ebc40229616cd8b3"
	if hex.EncodeToString(key1) != expectedHex {
		t.Errorf("expected %s, got %s", expectedHex, hex.EncodeToString(key1))
	}
}

func TestDeriveKey_DifferentSalts(t *testing.T) {
	key1 := DeriveKey([]byte("secret-password"), []byte("salt-1"))
	key2 := DeriveKey([]byte("secret-password"), []byte("salt-2"))

	if bytes.Equal(key1, key2) {
		t.Errorf("expected different results for different salts, got same")
	}
}

func TestParseKey(t *testing.T) {
	hex32 := strings.Repeat("ab", 32)

	tests := []struct {
		name    string
		value   string
		salt    string
		wantLen int
		wantErr bool
	}{
		{name: "empty disables", value: "", wantLen: 0},
		{name: "bare hex 32", value: hex32, wantLen: 32},
		{name: "prefixed hex 16", value: "hex:" + strings.Repeat("01", 16), wantLen: 16},
		{name: "prefixed hex wrong size", value: "hex:0102", wantErr: true},
		{name: "prefixed hex garbage", value: "hex:zz", wantErr: true},
		{name: "passphrase", value: "correct horse battery staple", salt: "s", wantLen: 32},
		{name: "short hex is a passphrase", value: "0102", wantLen: 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseKey(tt.value, tt.salt)
			if tt.wantErr {
				require.ErrorIs(t, err, common.ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Len(t, key, tt.wantLen)
		})
	}
}

func TestParseKey_PassphraseUsesDefaultSalt(t *testing.T) {
	key, err := ParseKey("pass", "")
	require.NoError(t, err)
	assert.Equal(t, DeriveKey([]byte("pass"), []byte(DefaultSalt)), key)
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := DeriveKey([]byte("k"), []byte("s"))
	plaintext := []byte(`{"data":{"id":1}}`)

	payload, err := Seal(plaintext, key)
	require.NoError(t, err)

	got, err := Open(payload, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestOpen_Failures(t *testing.T) {
	key := DeriveKey([]byte("k"), []byte("s"))
	other := DeriveKey([]byte("other"), []byte("s"))

	payload, err := Seal([]byte("hello"), key)
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload string
		key     []byte
	}{
		{name: "wrong key", payload: payload, key: other},
		{name: "not base64", payload: `{"plain":"json"}`, key: key},
		{name: "too short", payload: "AAAA", key: key},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.payload, tt.key)
			require.ErrorIs(t, err, common.ErrDecryption)
		})
	}
}

func TestSeal_InvalidKey(t *testing.T) {
	_, err := Seal([]byte("x"), []byte("short"))
	require.ErrorIs(t, err, common.ErrInvalidKey)
}

func TestWipe(t *testing.T) {
	b := []byte("sid=42")
	Wipe(b)
	assert.Equal(t, make([]byte, 6), b)

	assert.NotPanics(t, func() { Wipe(nil) })
}
