package realtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/shiftdesk/internal/client/toast"
	"github.com/dmitrijs2005/shiftdesk/internal/client/transport"
	"github.com/dmitrijs2005/shiftdesk/internal/metrics"
)

// healthLoop pings the server every interval while c is current. A pong
// that does not arrive in time is reported as a warning; the connection
// state is left alone, only the socket's own close signal drops it.
func (m *Manager) healthLoop(ctx context.Context, c *connection) {
	ticker := time.NewTicker(m.healthInterval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		seq++
		ping, err := newFrame(eventPing, pingData{Seq: seq})
		if err != nil {
			m.logger.Error(ctx, "encode ping", "error", err)
			continue
		}
		if err := c.write(ping); err != nil {
			m.logger.Debug(ctx, "send ping", "seq", seq, "error", err)
			continue
		}

		if !m.awaitPong(ctx, c, seq) && ctx.Err() == nil {
			m.missed(ctx, seq)
		}
	}
}

// awaitPong waits for the pong answering seq. Stale pongs are skipped; a
// pong without a sequence number counts for the current ping.
func (m *Manager) awaitPong(ctx context.Context, c *connection, seq uint64) bool {
	timer := time.NewTimer(m.healthTimeout)
	defer timer.Stop()

	for {
		select {
		case got := <-c.pongs:
			if got == 0 || got >= seq {
				return true
			}
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func (m *Manager) missed(ctx context.Context, seq uint64) {
	metrics.HealthCheckMisses.Inc()
	m.logger.Warn(ctx, "realtime health check missed", "seq", seq, "timeout", m.healthTimeout)
	m.notify(ctx, toast.LevelWarning, msgUnstable)
}

// HealthPath is the liveness probe of the realtime gateway.
const HealthPath = "/socket/health"

// Health is the answer of the liveness probe.
type Health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections,omitempty"`
}

// Sender issues API requests.
type Sender interface {
	Send(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// ProbeHealth calls the realtime gateway's liveness endpoint. It is meant
// for the surrounding application; the manager relies on ping/pong.
func ProbeHealth(ctx context.Context, api Sender) (Health, error) {
	resp, err := api.Send(ctx, &transport.Request{
		Method:         http.MethodGet,
		Path:           HealthPath,
		SkipErrorToast: true,
	})
	if err != nil {
		return Health{}, fmt.Errorf("probe realtime health: %w", err)
	}

	var h Health
	if err := resp.Decode(&h); err != nil {
		return Health{}, err
	}
	if h.Status == "" {
		h.Status = "ok"
	}
	return h, nil
}
