// Package common contains shared constants and sentinel errors used across
// shiftdesk client components.
package common

// Header names set by the transport decoration step.
const (
	LanguageHeaderName    = "Accept-Language"
	ContentTypeHeaderName = "Content-Type"
	RequestIDHeaderName   = "X-Request-ID"
)

// AccessTokenCookieName is the session cookie carrying the access token.
// The client never reads it for authorization, only to resolve the current
// user identity.
const AccessTokenCookieName = "access_token"

// RefreshPath is the credential refresh endpoint, relative to the API base URL.
const RefreshPath = "/users/refresh"

const JSONContentType = "application/json"
