package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/shiftdesk/internal/client/i18n"
	"github.com/dmitrijs2005/shiftdesk/internal/client/toast"
	"github.com/dmitrijs2005/shiftdesk/internal/logging"
	"github.com/tidwall/gjson"
)

// Catalog keys used by the classifier.
const (
	msgNetwork        = "errors.network"
	msgUnknown        = "errors.unknown"
	msgForbidden      = "errors.forbidden"
	msgSessionExpired = "errors.session_expired"
)

// ForbiddenHandler receives every 403 instead of the default notice.
type ForbiddenHandler func(ctx context.Context, err *APIError, skipToast bool)

// Failure is a failed round trip as seen by the classifier. A zero
// StatusCode means no response was received.
type Failure struct {
	StatusCode int
	Body       []byte
	Err        error
	SkipToast  bool
}

// Classifier normalises failures into *APIError and decides which ones
// reach the user.
type Classifier struct {
	notifier    toast.Notifier
	catalog     *i18n.Catalog
	language    string
	onForbidden ForbiddenHandler
	logger      logging.Logger
}

func NewClassifier(notifier toast.Notifier, catalog *i18n.Catalog, language string, onForbidden ForbiddenHandler, logger logging.Logger) *Classifier {
	return &Classifier{
		notifier:    notifier,
		catalog:     catalog,
		language:    language,
		onForbidden: onForbidden,
		logger:      logger,
	}
}

// Classify builds the envelope for f and raises the matching notice.
func (c *Classifier) Classify(ctx context.Context, f Failure) *APIError {
	if f.StatusCode == 0 {
		e := &APIError{
			Message: c.text(msgNetwork, "network error"),
			Code:    CodeNetworkError,
			Kind:    KindNetwork,
			Err:     f.Err,
		}
		c.logger.Warn(ctx, "request failed without response", "error", f.Err)
		c.surface(ctx, e.Message, msgNetwork, f.SkipToast)
		return e
	}

	detail, structured := parseErrorBody(f.Body)
	if !structured {
		return c.unstructured(ctx, f)
	}

	e := &APIError{
		Message:    detail.Message,
		StatusCode: f.StatusCode,
		Code:       detail.Code,
		Meta:       detail.Meta,
		Kind:       kindForStatus(f.StatusCode),
	}
	if e.Code == "" {
		e.Code = "HTTP_" + strconv.Itoa(f.StatusCode)
	}
	c.logger.Debug(ctx, "classified error response", "status", f.StatusCode, "code", e.Code)

	switch {
	case f.StatusCode == http.StatusConflict:
		// rendered inline by the caller
		return e
	case f.StatusCode == http.StatusForbidden:
		c.forbidden(ctx, e, f.SkipToast)
		return e
	default:
		c.surface(ctx, c.localize(e), "errors."+e.Code, f.SkipToast)
		return e
	}
}

func (c *Classifier) unstructured(ctx context.Context, f Failure) *APIError {
	if f.StatusCode >= 500 {
		e := &APIError{
			Message:    c.text(msgUnknown, "unknown error"),
			StatusCode: f.StatusCode,
			Code:       CodeUnknownError,
			Kind:       KindServerFault,
		}
		c.logger.Warn(ctx, "server fault without error body", "status", f.StatusCode)
		c.surface(ctx, e.Message, msgUnknown, f.SkipToast)
		return e
	}

	e := &APIError{
		Message:    http.StatusText(f.StatusCode),
		StatusCode: f.StatusCode,
		Code:       "HTTP_" + strconv.Itoa(f.StatusCode),
		Kind:       kindForStatus(f.StatusCode),
	}
	switch f.StatusCode {
	case http.StatusConflict:
	case http.StatusForbidden:
		c.forbidden(ctx, e, f.SkipToast)
	default:
		c.surface(ctx, e.Message, "errors."+e.Code, f.SkipToast)
	}
	return e
}

// RefreshFailure builds the envelope returned to every caller affected by a
// failed credential refresh.
func (c *Classifier) RefreshFailure(status int, body []byte, cause error) *APIError {
	e := &APIError{
		Message:    c.text(msgSessionExpired, "session expired"),
		StatusCode: status,
		Code:       CodeAuthRefreshFailed,
		Kind:       KindAuthRefreshFailed,
		Err:        cause,
	}
	if detail, ok := parseErrorBody(body); ok {
		e.Meta = detail.Meta
	}
	return e
}

func (c *Classifier) forbidden(ctx context.Context, e *APIError, skip bool) {
	if c.onForbidden != nil {
		c.onForbidden(ctx, e, skip)
		return
	}
	c.surface(ctx, c.text(msgForbidden, e.Message), msgForbidden, skip)
}

func (c *Classifier) localize(e *APIError) string {
	return c.text("errors."+e.Code, e.Message)
}

func (c *Classifier) text(key, fallback string) string {
	if c.catalog != nil {
		if msg, ok := c.catalog.Lookup(c.language, key); ok {
			return msg
		}
	}
	return fallback
}

func (c *Classifier) surface(ctx context.Context, msg, key string, skip bool) {
	if skip || c.notifier == nil {
		return
	}
	c.notifier.Notify(ctx, toast.Notice{Level: toast.LevelError, Key: key, Message: msg})
}

// parseErrorBody recognises the structured error envelope.
func parseErrorBody(body []byte) (ErrorDetail, bool) {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ErrorDetail{}, false
	}
	errNode := gjson.GetBytes(body, "error")
	if !errNode.IsObject() || !errNode.Get("message").Exists() {
		return ErrorDetail{}, false
	}

	var eb ErrorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ErrorDetail{
			Message: errNode.Get("message").String(),
			Code:    errNode.Get("code").String(),
		}, true
	}
	return eb.Error, true
}
