// Package notifications reconciles notifications queued by the server while
// the client was offline.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/shiftdesk/internal/client/events"
	"github.com/dmitrijs2005/shiftdesk/internal/client/i18n"
	"github.com/dmitrijs2005/shiftdesk/internal/client/toast"
	"github.com/dmitrijs2005/shiftdesk/internal/client/transport"
	"github.com/dmitrijs2005/shiftdesk/internal/common"
	"github.com/dmitrijs2005/shiftdesk/internal/logging"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const (
	checkPath   = "/notifications/check/"
	listPath    = "/notifications/user/"
	deliverPath = "/notifications/deliver/"
)

// Catalog keys.
const (
	msgPending = "notifications.pending"
	msgView    = "notifications.view"
)

// Sender issues API requests.
type Sender interface {
	Send(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// Identity resolves the signed-in user from local session state.
type Identity interface {
	UserID() (string, error)
}

// Publisher dispatches local events.
type Publisher interface {
	Publish(ctx context.Context, name events.Name, payload any) error
}

// PendingSummary is the answer of the pending-notifications check.
type PendingSummary struct {
	UserID                   string `json:"userId"`
	OfflineNotificationCount int    `json:"offlineNotificationCount"`
}

// NotificationEnvelope is one notification as dispatched to subscribers.
type NotificationEnvelope struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	DeliveredAt *time.Time      `json:"deliveredAt,omitempty"`
}

type deliverResult struct {
	Delivered bool `json:"delivered"`
}

// Reconciler checks for and delivers offline notifications.
type Reconciler struct {
	api      Sender
	identity Identity
	bus      Publisher
	notifier toast.Notifier
	catalog  *i18n.Catalog
	language string
	logger   logging.Logger
}

// NewReconciler builds a Reconciler. Without a notifier, prompts are only
// logged.
func NewReconciler(api Sender, identity Identity, bus Publisher, notifier toast.Notifier, catalog *i18n.Catalog, language string, logger logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.Nop()
	}
	if notifier == nil {
		notifier = &toast.LogNotifier{Logger: logger}
	}
	return &Reconciler{
		api:      api,
		identity: identity,
		bus:      bus,
		notifier: notifier,
		catalog:  catalog,
		language: language,
		logger:   logger,
	}
}

// CheckPending asks the server for notifications queued while offline and
// shows one aggregate prompt when there are any. Accepting the prompt
// publishes show-notifications. Without a signed-in user it does nothing.
func (r *Reconciler) CheckPending(ctx context.Context) (PendingSummary, error) {
	userID, ok := r.userID(ctx)
	if !ok {
		return PendingSummary{}, nil
	}

	resp, err := r.api.Send(ctx, &transport.Request{
		Method:         http.MethodGet,
		Path:           checkPath + url.PathEscape(userID),
		SkipErrorToast: true,
	})
	if err != nil {
		return PendingSummary{}, fmt.Errorf("check pending notifications: %w", err)
	}

	var summary PendingSummary
	if err := resp.Decode(&summary); err != nil {
		return PendingSummary{}, err
	}
	if summary.UserID == "" {
		summary.UserID = userID
	}

	r.logger.Debug(ctx, "pending notifications checked", "user", userID, "count", summary.OfflineNotificationCount)
	if summary.OfflineNotificationCount <= 0 {
		return summary, nil
	}

	notice := toast.Notice{
		Level:   toast.LevelInfo,
		Key:     msgPending,
		Message: r.text(msgPending, map[string]any{"count": summary.OfflineNotificationCount}),
	}
	r.notifier.Prompt(ctx, notice, r.text(msgView, nil), func(ctx context.Context) {
		if err := r.bus.Publish(ctx, events.ShowNotifications, summary); err != nil {
			r.logger.Error(ctx, "publish show-notifications", "error", err)
		}
	})
	return summary, nil
}

// ForceDeliver asks the server to deliver queued notifications and, once it
// confirms, publishes one notification-received event per notification. It
// returns how many were published.
func (r *Reconciler) ForceDeliver(ctx context.Context) (int, error) {
	userID, ok := r.userID(ctx)
	if !ok {
		return 0, nil
	}

	resp, err := r.api.Send(ctx, &transport.Request{
		Method:         http.MethodPost,
		Path:           deliverPath + url.PathEscape(userID),
		SkipErrorToast: true,
	})
	if err != nil {
		return 0, fmt.Errorf("deliver notifications: %w", err)
	}

	var result deliverResult
	if err := resp.Decode(&result); err != nil {
		return 0, err
	}
	if !result.Delivered {
		r.logger.Info(ctx, "server did not deliver notifications", "user", userID)
		return 0, nil
	}

	items, err := r.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, n := range items {
		if err := r.bus.Publish(ctx, events.NotificationReceived, n); err != nil {
			return 0, fmt.Errorf("publish notification %s: %w", n.ID, err)
		}
	}
	r.logger.Info(ctx, "offline notifications delivered", "user", userID, "count", len(items))
	return len(items), nil
}

// List fetches the notifications of userID. The endpoint may answer with a
// bare array or wrap it in "data" or "notifications".
func (r *Reconciler) List(ctx context.Context, userID string) ([]NotificationEnvelope, error) {
	resp, err := r.api.Send(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   listPath + url.PathEscape(userID),
	})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return parseList(resp.Body)
}

func parseList(body []byte) ([]NotificationEnvelope, error) {
	list := gjson.ParseBytes(body)
	if !list.IsArray() {
		for _, key := range []string{"data", "notifications", "items"} {
			if v := list.Get(key); v.IsArray() {
				list = v
				break
			}
		}
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("list notifications: unexpected body %.64q", body)
	}

	items := make([]NotificationEnvelope, 0, len(list.Array()))
	for i, node := range list.Array() {
		var n NotificationEnvelope
		if err := json.Unmarshal([]byte(node.Raw), &n); err != nil {
			return nil, fmt.Errorf("notification %d: %w", i, err)
		}
		if n.ID == "" {
			n.ID = node.Get("_id").String()
		}
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if len(n.Payload) == 0 {
			if data := node.Get("data"); data.Exists() {
				n.Payload = json.RawMessage(data.Raw)
			}
		}
		items = append(items, n)
	}
	return items, nil
}

func (r *Reconciler) userID(ctx context.Context) (string, bool) {
	id, err := r.identity.UserID()
	if err != nil {
		if errors.Is(err, common.ErrNoIdentity) || errors.Is(err, common.ErrInvalidToken) {
			r.logger.Debug(ctx, "no signed-in user, skipping notification reconciliation")
		} else {
			r.logger.Warn(ctx, "resolve user identity", "error", err)
		}
		return "", false
	}
	return id, true
}

func (r *Reconciler) text(key string, args map[string]any) string {
	if r.catalog == nil {
		return key
	}
	return r.catalog.T(r.language, key, args)
}
