package transport

import (
	"errors"
	"fmt"
)

// Kind classifies a normalised failure.
type Kind string

const (
	KindAuthExpired       Kind = "auth_expired"
	KindAuthRefreshFailed Kind = "auth_refresh_failed"
	KindClientValidation  Kind = "client_validation"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindNetwork           Kind = "network_unreachable"
	KindServerFault       Kind = "server_fault"
	KindBlobDecode        Kind = "blob_decode_failure"
)

var (
	ErrAuthExpired       = errors.New("authentication expired")
	ErrAuthRefreshFailed = errors.New("credential refresh failed")
	ErrClientValidation  = errors.New("client validation error")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrNetwork           = errors.New("network unreachable")
	ErrServerFault       = errors.New("server fault")
	ErrBlobDecode        = errors.New("binary error response could not be decoded")
)

var kindErrors = map[Kind]error{
	KindAuthExpired:       ErrAuthExpired,
	KindAuthRefreshFailed: ErrAuthRefreshFailed,
	KindClientValidation:  ErrClientValidation,
	KindForbidden:         ErrForbidden,
	KindNotFound:          ErrNotFound,
	KindNetwork:           ErrNetwork,
	KindServerFault:       ErrServerFault,
	KindBlobDecode:        ErrBlobDecode,
}

// Error codes assigned when the server did not provide one.
const (
	CodeNetworkError      = "NETWORK_ERROR"
	CodeUnknownError      = "UNKNOWN_ERROR"
	CodeAuthRefreshFailed = "AUTH_REFRESH_FAILED"
	CodeBlobDecodeFailure = "BLOB_DECODE_FAILURE"
	CodeDecryptionFailed  = "DECRYPTION_FAILED"
	CodeInvalidRequest    = "INVALID_REQUEST"
)

// APIError is the single shape every transport failure is normalised into.
type APIError struct {
	Message    string         `json:"message"`
	StatusCode int            `json:"statusCode"`
	Code       string         `json:"code"`
	Meta       map[string]any `json:"meta,omitempty"`

	Kind Kind  `json:"-"`
	Err  error `json:"-"`
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Unwrap exposes the kind sentinel and the underlying cause.
func (e *APIError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if sentinel, ok := kindErrors[e.Kind]; ok {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// AsAPIError extracts the envelope from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// ErrorBody is the structured HTTP error envelope sent by the server:
//
//	{ "error": { "message": "...", "code": "...", "meta": {...} } }
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func kindForStatus(status int) Kind {
	switch {
	case status == 401:
		return KindAuthExpired
	case status == 403:
		return KindForbidden
	case status == 404:
		return KindNotFound
	case status >= 400 && status < 500:
		return KindClientValidation
	default:
		return KindServerFault
	}
}
