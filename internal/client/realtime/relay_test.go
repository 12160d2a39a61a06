package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/shiftdesk/internal/client/events"
	"github.com/dmitrijs2005/shiftdesk/internal/client/notifications"
	"github.com/dmitrijs2005/shiftdesk/internal/client/transport"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *eventSink) handle(_ context.Context, e events.Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *eventSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *eventSink) get(i int) events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[i]
}

func TestIsDomainNotification(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"notification:work-shift:assigned", true},
		{"notification:time-off:approved", true},
		{"notification:reschedule:requested", true},
		{"notification:contract-signing:pending", true},
		{"notification:branch-working-config:updated", true},
		{"notification:billing:paid", false},
		{"notification:work-shift:", false},
		{"notification:work-shift", false},
		{"work-shift:assigned", false},
		{"contract:completed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDomainNotification(tt.name))
		})
	}
}

func TestRelay_DomainNotification(t *testing.T) {
	h := newHarness(t, nil)
	specific := &eventSink{}
	received := &eventSink{}
	h.manager.Bus().Subscribe("notification:work-shift:assigned", specific.handle)
	h.manager.Bus().Subscribe(events.NotificationReceived, received.handle)
	require.NoError(t, h.manager.Connect(context.Background()))

	gw := h.gw.latest()
	require.NoError(t, gw.send("notification:billing:paid", map[string]string{"id": "ignored"}))
	require.NoError(t, gw.send("notification:work-shift:assigned", map[string]string{"id": "n-1", "shiftId": "s-9"}))

	require.Eventually(t, func() bool { return received.len() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, specific.len())

	var data map[string]string
	require.NoError(t, specific.get(0).Decode(&data))
	assert.Equal(t, "s-9", data["shiftId"])

	var n notifications.NotificationEnvelope
	require.NoError(t, received.get(0).Decode(&n))
	assert.Equal(t, "n-1", n.ID)
	assert.Equal(t, "notification:work-shift:assigned", n.Type)
	assert.JSONEq(t, `{"id":"n-1","shiftId":"s-9"}`, string(n.Payload))
	assert.NotNil(t, n.DeliveredAt)

	// domain pushes are not toasted
	assert.Empty(t, h.toasts.Notices())
}

func TestRelay_ContractEventDelayed(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.ContractEventDelay = 100 * time.Millisecond })
	completed := &eventSink{}
	h.manager.Bus().Subscribe(events.ContractCompleted, completed.handle)
	require.NoError(t, h.manager.Connect(context.Background()))

	require.NoError(t, h.gw.latest().send(string(events.ContractCompleted), map[string]string{"contractId": "c-1"}))

	require.Eventually(t, func() bool { return h.toasts.Count("contract.completed") == 1 }, time.Second, 2*time.Millisecond)
	assert.Zero(t, completed.len())

	require.Eventually(t, func() bool { return completed.len() == 1 }, time.Second, 5*time.Millisecond)
	var data map[string]string
	require.NoError(t, completed.get(0).Decode(&data))
	assert.Equal(t, "c-1", data["contractId"])
}

func TestRelay_ContractEventDroppedOnDisconnect(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.ContractEventDelay = 200 * time.Millisecond })
	signed := &eventSink{}
	h.manager.Bus().Subscribe(events.ContractSignerSigned, signed.handle)
	require.NoError(t, h.manager.Connect(context.Background()))

	require.NoError(t, h.gw.latest().send(string(events.ContractSignerSigned), nil))
	require.Eventually(t, func() bool { return h.toasts.Count("contract.signed") == 1 }, time.Second, 2*time.Millisecond)

	require.NoError(t, h.manager.Disconnect())
	time.Sleep(300 * time.Millisecond)

	assert.Zero(t, signed.len())
}

func TestRelay_ServerReauthentication(t *testing.T) {
	h := newHarness(t, nil)
	auth := &eventSink{}
	h.manager.Bus().Subscribe(events.SocketAuthenticated, auth.handle)
	require.NoError(t, h.manager.Connect(context.Background()))

	require.NoError(t, h.gw.latest().send(eventConnected, map[string]string{"sid": "s-2"}))

	require.Eventually(t, func() bool { return auth.len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateConnected, h.manager.State())
}

func TestProbeHealth(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/socket/health", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "healthy", "connections": 12})
	})
	r.Get("/down/socket/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	api, err := transport.New(transport.Options{BaseURL: srv.URL + "/api"})
	require.NoError(t, err)

	h, err := ProbeHealth(context.Background(), api)
	require.NoError(t, err)
	assert.Equal(t, Health{Status: "healthy", Connections: 12}, h)

	down, err := transport.New(transport.Options{BaseURL: srv.URL + "/down"})
	require.NoError(t, err)
	_, err = ProbeHealth(context.Background(), down)
	assert.ErrorIs(t, err, transport.ErrServerFault)
}
