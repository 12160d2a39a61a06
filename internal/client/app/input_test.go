package app

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("  access_token=abc  \n"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Cookie?", &out)
	require.NoError(t, err)
	assert.Equal(t, "access_token=abc", got)
	assert.Equal(t, "Cookie?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("lastline"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)
}

func TestGetSimpleTextEmptyEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader(""))
	var out bytes.Buffer
	_, err := GetSimpleText(in, "Name?", &out)
	assert.Error(t, err)
}

func TestGetSecret(t *testing.T) {
	old := readSecret
	t.Cleanup(func() { readSecret = old })
	readSecret = func(int) ([]byte, error) { return []byte("sid=42\n"), nil }

	var out bytes.Buffer
	got, err := GetSecret("Session cookie", &out)
	require.NoError(t, err)
	assert.Equal(t, "sid=42", got)
	assert.Equal(t, "Session cookie: \n", out.String())
}

func TestGetSecret_Error(t *testing.T) {
	old := readSecret
	t.Cleanup(func() { readSecret = old })
	readSecret = func(int) ([]byte, error) { return nil, errors.New("boom") }

	var out bytes.Buffer
	_, err := GetSecret("Session cookie", &out)
	assert.EqualError(t, err, "boom")
}

func TestStdinIsTerminal(t *testing.T) {
	old := isTerminal
	t.Cleanup(func() { isTerminal = old })

	isTerminal = func(int) bool { return true }
	assert.True(t, stdinIsTerminal())
	isTerminal = func(int) bool { return false }
	assert.False(t, stdinIsTerminal())
}
