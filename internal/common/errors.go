// Package common defines shared constants and sentinel errors used across
// the client layers of shiftdesk. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Session errors.
	ErrNoIdentity     = errors.New("no user identity")
	ErrInvalidToken   = errors.New("invalid token")
	ErrSessionExpired = errors.New("session expired")

	// Payload errors.
	ErrDecryption = errors.New("payload decryption failed")

	// Configuration errors.
	ErrInvalidKey = errors.New("invalid payload key")
)
