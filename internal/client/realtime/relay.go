package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/dmitrijs2005/shiftdesk/internal/client/events"
	"github.com/dmitrijs2005/shiftdesk/internal/client/notifications"
	"github.com/dmitrijs2005/shiftdesk/internal/client/toast"
	"github.com/dmitrijs2005/shiftdesk/internal/metrics"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const notificationPrefix = "notification:"

// Domains whose notification:<domain>:<event> pushes are relayed.
var relayedDomains = map[string]bool{
	"work-shift":            true,
	"time-off":              true,
	"reschedule":            true,
	"contract-signing":      true,
	"branch-working-config": true,
}

// Contract lifecycle events get a notice and a delayed local dispatch.
var contractNotices = map[events.Name]string{
	events.ContractSignerSigned: "contract.signed",
	events.ContractCompleted:    "contract.completed",
}

// IsDomainNotification reports whether name is a relayed
// notification:<domain>:<event> push.
func IsDomainNotification(name string) bool {
	rest, ok := strings.CutPrefix(name, notificationPrefix)
	if !ok {
		return false
	}
	domain, event, ok := strings.Cut(rest, ":")
	return ok && event != "" && relayedDomains[domain]
}

func (m *Manager) relay(ctx context.Context, f Frame) {
	name := events.Name(f.Event)

	switch {
	case IsDomainNotification(f.Event):
		metrics.RelayedEvents.WithLabelValues(f.Event).Inc()
		m.logger.Debug(ctx, "relaying notification", "event", f.Event, "listeners", m.bus.Subscribers(name))
		m.publish(ctx, name, f.Data)
		m.publish(ctx, events.NotificationReceived, envelope(f))

	case contractNotices[name] != "":
		metrics.RelayedEvents.WithLabelValues(f.Event).Inc()
		m.notify(ctx, toast.LevelSuccess, contractNotices[name])
		m.publishLater(name, f.Data)

	default:
		m.logger.Debug(ctx, "ignoring realtime event", "event", f.Event)
	}
}

// publishLater dispatches after the contract delay so the backend state has
// settled when subscribers refetch. Disconnect cancels pending dispatches.
func (m *Manager) publishLater(name events.Name, data json.RawMessage) {
	lifetime := m.currentLifetime()
	if lifetime == nil {
		return
	}
	go func() {
		timer := time.NewTimer(m.contractDelay)
		defer timer.Stop()

		select {
		case <-lifetime.Done():
		case <-timer.C:
			m.publish(lifetime, name, data)
		}
	}()
}

func (m *Manager) publish(ctx context.Context, name events.Name, payload any) {
	if err := m.bus.Publish(ctx, name, payload); err != nil {
		m.logger.Error(ctx, "publish local event", "event", name, "error", err)
	}
}

func envelope(f Frame) notifications.NotificationEnvelope {
	now := time.Now().UTC()
	n := notifications.NotificationEnvelope{
		Type:        f.Event,
		Payload:     f.Data,
		DeliveredAt: &now,
	}
	if len(f.Data) > 0 {
		n.ID = gjson.GetBytes(f.Data, "id").String()
		if n.ID == "" {
			n.ID = gjson.GetBytes(f.Data, "_id").String()
		}
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return n
}
