// Package realtime manages the websocket channel to the dashboard backend:
// connection lifecycle, reconnection with linear backoff, an active
// ping/pong health check and the relay of server events onto a local bus.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/shiftdesk/internal/client/events"
	"github.com/dmitrijs2005/shiftdesk/internal/client/i18n"
	"github.com/dmitrijs2005/shiftdesk/internal/client/notifications"
	"github.com/dmitrijs2005/shiftdesk/internal/client/toast"
	"github.com/dmitrijs2005/shiftdesk/internal/logging"
	"github.com/dmitrijs2005/shiftdesk/internal/metrics"
	"github.com/gorilla/websocket"
)

var (
	ErrConnectTimeout     = errors.New("realtime connect timed out")
	ErrConnectRejected    = errors.New("realtime connection rejected")
	ErrReconnectExhausted = errors.New("realtime reconnect attempts exhausted")
	ErrInProgress         = errors.New("realtime connection attempt in progress")
	ErrClosed             = errors.New("realtime connection closed")
)

const writeWait = 10 * time.Second

// Defaults for zero Options fields.
const (
	DefaultConnectTimeout      = 20 * time.Second
	DefaultReconnectBaseDelay  = time.Second
	DefaultMaxAttempts         = 5
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultHealthCheckTimeout  = 5 * time.Second
)

// Catalog keys.
const (
	msgReconnected = "realtime.reconnected"
	msgUnstable    = "realtime.unstable"
	msgLost        = "realtime.lost"
)

// Reconciler is run after every successful (re)connection.
type Reconciler interface {
	CheckPending(ctx context.Context) (notifications.PendingSummary, error)
}

type Options struct {
	URL string
	// Jar supplies the session cookies for the handshake.
	Jar http.CookieJar
	// Dialer overrides the default websocket dialer.
	Dialer *websocket.Dialer

	ConnectTimeout      time.Duration
	ReconnectBaseDelay  time.Duration
	MaxAttempts         int
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
	ReconcileDelay      time.Duration
	ContractEventDelay  time.Duration

	Reconciler Reconciler
	Notifier   toast.Notifier
	Catalog    *i18n.Catalog
	Language   string
	// Bus receives relayed events. A private bus is created when nil.
	Bus    *events.Bus
	Logger logging.Logger
}

// connection is one established socket and the goroutines bound to it.
type connection struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	pongs   chan uint64
	cancel  context.CancelFunc
}

func (c *connection) write(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(f)
}

// shutdown sends a normal close frame and closes the socket.
func (c *connection) shutdown() error {
	c.cancel()

	c.writeMu.Lock()
	err := c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()

	if cerr := c.ws.Close(); err == nil {
		err = cerr
	}
	if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Manager owns the realtime channel. Create one per application with
// NewManager; it is safe for concurrent use.
type Manager struct {
	url    string
	dialer *websocket.Dialer

	connectTimeout time.Duration
	baseDelay      time.Duration
	maxAttempts    int
	healthInterval time.Duration
	healthTimeout  time.Duration
	reconcileDelay time.Duration
	contractDelay  time.Duration
	reconciler     Reconciler
	notifier       toast.Notifier
	catalog        *i18n.Catalog
	language       string
	bus            *events.Bus
	logger         logging.Logger

	mu       sync.Mutex
	state    State
	attempts int
	conn     *connection
	lifetime context.Context
	stop     context.CancelFunc
}

func NewManager(opts Options) *Manager {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReconnectBaseDelay <= 0 {
		opts.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = DefaultHealthCheckInterval
	}
	if opts.HealthCheckTimeout <= 0 {
		opts.HealthCheckTimeout = DefaultHealthCheckTimeout
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.ConnectTimeout,
		}
	} else {
		d := *dialer
		dialer = &d
	}
	if opts.Jar != nil && dialer.Jar == nil {
		dialer.Jar = opts.Jar
	}

	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	m := &Manager{
		url:            opts.URL,
		dialer:         dialer,
		connectTimeout: opts.ConnectTimeout,
		baseDelay:      opts.ReconnectBaseDelay,
		maxAttempts:    opts.MaxAttempts,
		healthInterval: opts.HealthCheckInterval,
		healthTimeout:  opts.HealthCheckTimeout,
		reconcileDelay: opts.ReconcileDelay,
		contractDelay:  opts.ContractEventDelay,
		reconciler:     opts.Reconciler,
		notifier:       opts.Notifier,
		catalog:        opts.Catalog,
		language:       opts.Language,
		bus:            bus,
		logger:         logger.With("component", "realtime"),
		state:          StateDisconnected,
	}
	metrics.SetConnectionState(string(m.state), stateNames())
	return m
}

// Bus returns the bus relayed events are published on.
func (m *Manager) Bus() *events.Bus { return m.bus }

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the number of reconnect attempts since the last
// successful connection.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect opens the channel and waits until the server confirms the session
// with a connected event, rejects it, or the connect timeout elapses.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		return nil
	case StateConnecting, StateReconnecting:
		m.mu.Unlock()
		return ErrInProgress
	}
	tr, err := m.transition(StateConnecting)
	if err != nil {
		m.mu.Unlock()
		m.logger.Warn(ctx, "connect refused", "error", err)
		return err
	}
	lifetime := m.ensureLifetime(ctx)
	m.mu.Unlock()
	m.announce(ctx, tr)

	if err := m.dial(ctx, lifetime); err != nil {
		m.logger.Warn(ctx, "realtime connect failed", "error", err)
		if !errors.Is(err, ErrClosed) {
			m.fail(ctx, StateConnecting)
		}
		return err
	}
	return nil
}

// Disconnect closes the channel and stops every timer and retry. It is
// valid from any state.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	c := m.conn
	m.conn = nil
	if m.stop != nil {
		m.stop()
		m.stop = nil
		m.lifetime = nil
	}
	m.attempts = 0
	var (
		tr      Transition
		changed = m.state != StateDisconnected
	)
	if changed {
		tr = m.force(StateDisconnected)
	}
	m.mu.Unlock()

	var err error
	if c != nil {
		err = c.shutdown()
	}
	if changed {
		m.announce(context.Background(), tr)
	}
	return err
}

// Reconnect restarts the reconnection sequence with a fresh attempt
// counter. It blocks until connected, the attempts are exhausted or ctx is
// done.
func (m *Manager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateReconnecting {
		m.mu.Unlock()
		return ErrInProgress
	}

	var (
		old     *connection
		dropped *Transition
	)
	if m.state == StateConnected {
		old = m.conn
		m.conn = nil
		tr, _ := m.transition(StateDisconnected)
		dropped = &tr
	}
	m.attempts = 0
	lifetime := m.ensureLifetime(ctx)
	m.mu.Unlock()

	if old != nil {
		_ = old.shutdown()
	}
	if dropped != nil {
		m.announce(ctx, *dropped)
	}
	return m.reconnectLoop(ctx, lifetime)
}

func (m *Manager) ensureLifetime(ctx context.Context) context.Context {
	if m.lifetime == nil {
		m.lifetime, m.stop = context.WithCancel(context.WithoutCancel(ctx))
	}
	return m.lifetime
}

// transition moves to next if the table allows it. Callers hold m.mu and
// announce the result after unlocking.
func (m *Manager) transition(next State) (Transition, error) {
	if !m.state.CanTransition(next) {
		return Transition{}, invalidTransition(m.state, next)
	}
	return m.force(next), nil
}

func (m *Manager) force(next State) Transition {
	tr := Transition{From: m.state, To: next, Attempt: m.attempts, At: time.Now()}
	m.state = next
	metrics.SetConnectionState(string(next), stateNames())
	return tr
}

func (m *Manager) announce(ctx context.Context, tr Transition) {
	m.logger.Info(ctx, "realtime state changed", "from", tr.From, "to", tr.To, "attempt", tr.Attempt)
	if err := m.bus.Publish(ctx, events.ConnectionState, tr); err != nil {
		m.logger.Error(ctx, "publish connection state", "error", err)
	}
}

// fail moves to the error state if the manager is still in from.
func (m *Manager) fail(ctx context.Context, from State) {
	m.mu.Lock()
	if m.state != from {
		m.mu.Unlock()
		return
	}
	tr, err := m.transition(StateError)
	m.mu.Unlock()
	if err == nil {
		m.announce(ctx, tr)
	}
}

// dial opens a socket and waits for the connected event. Goroutines of the
// new connection live under lifetime.
func (m *Manager) dial(ctx, lifetime context.Context) error {
	dctx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	defer cancel()

	ws, resp, err := m.dialer.DialContext(dctx, m.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if errors.Is(dctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrConnectTimeout, err)
		}
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %d)", m.url, err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", m.url, err)
	}

	data, err := awaitConnected(dctx, ws)
	if err != nil {
		ws.Close()
		return err
	}
	return m.established(lifetime, ws, data)
}

// awaitConnected reads frames until the server accepts or rejects the
// session.
func awaitConnected(ctx context.Context, ws *websocket.Conn) (json.RawMessage, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := ws.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = ws.SetReadDeadline(time.Now())
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
				return nil, ErrConnectTimeout
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("await connected: %w", err)
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		switch f.Event {
		case eventConnected:
			if !stop() {
				return nil, ErrConnectTimeout
			}
			if err := ws.SetReadDeadline(time.Time{}); err != nil {
				return nil, err
			}
			return f.Data, nil
		case eventConnectError:
			stop()
			return nil, fmt.Errorf("%w: %s", ErrConnectRejected, string(f.Data))
		}
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// established installs ws as the current connection. A dial started under a
// lifetime that Disconnect has since ended is refused with ErrClosed.
func (m *Manager) established(lifetime context.Context, ws *websocket.Conn, data json.RawMessage) error {
	connCtx, cancel := context.WithCancel(lifetime)
	c := &connection{ws: ws, pongs: make(chan uint64, 1), cancel: cancel}

	m.mu.Lock()
	if lifetime != m.lifetime || lifetime.Err() != nil {
		m.mu.Unlock()
		cancel()
		ws.Close()
		return ErrClosed
	}
	from := m.state
	tr, err := m.transition(StateConnected)
	if err != nil {
		m.mu.Unlock()
		cancel()
		ws.Close()
		return ErrClosed
	}
	m.conn = c
	m.attempts = 0
	m.mu.Unlock()

	m.announce(connCtx, tr)
	if from == StateReconnecting {
		m.notify(connCtx, toast.LevelSuccess, msgReconnected)
	}
	if err := m.bus.Publish(connCtx, events.SocketAuthenticated, data); err != nil {
		m.logger.Error(connCtx, "publish socket-authenticated", "error", err)
	}

	go m.readLoop(connCtx, c)
	go m.healthLoop(connCtx, c)
	go m.reconcileAfter(connCtx)
	return nil
}

func (m *Manager) readLoop(ctx context.Context, c *connection) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			m.dropped(ctx, c, err)
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
			m.logger.Warn(ctx, "malformed realtime frame", "error", err)
			continue
		}
		m.handleFrame(ctx, c, f)
	}
}

func (m *Manager) handleFrame(ctx context.Context, c *connection, f Frame) {
	switch f.Event {
	case eventPong:
		select {
		case c.pongs <- frameSeq(f.Data):
		default:
		}
	case eventPing:
		if err := c.write(Frame{Event: eventPong, Data: f.Data}); err != nil {
			m.logger.Debug(ctx, "answer server ping", "error", err)
		}
	case eventConnected:
		if err := m.bus.Publish(ctx, events.SocketAuthenticated, f.Data); err != nil {
			m.logger.Error(ctx, "publish socket-authenticated", "error", err)
		}
	case eventError, eventConnectError:
		m.logger.Warn(ctx, "realtime server error", "data", string(f.Data))
	default:
		m.relay(ctx, f)
	}
}

// dropped handles the socket's own disconnect signal.
func (m *Manager) dropped(ctx context.Context, c *connection, cause error) {
	m.mu.Lock()
	if m.conn != c {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	tr, err := m.transition(StateDisconnected)
	lifetime := m.lifetime
	m.mu.Unlock()

	c.cancel()
	c.ws.Close()
	m.logger.Warn(ctx, "realtime connection lost", "reason", closeReason(cause))
	if err != nil {
		return
	}
	m.announce(ctx, tr)

	if lifetime == nil {
		return
	}
	go func() {
		if err := m.reconnectLoop(lifetime, lifetime); err != nil {
			m.logger.Debug(lifetime, "reconnect loop ended", "error", err)
		}
	}()
}

func closeReason(err error) string {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if ce.Text != "" {
			return ce.Text
		}
		return fmt.Sprintf("close %d", ce.Code)
	}
	return err.Error()
}

// reconnectLoop retries with linear backoff until connected or the attempt
// cap is reached. It stops when either ctx or lifetime ends.
func (m *Manager) reconnectLoop(ctx, lifetime context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(lifetime, cancel)
	defer stop()

	m.mu.Lock()
	tr, err := m.transition(StateReconnecting)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.announce(ctx, tr)

	for {
		m.mu.Lock()
		if m.state != StateReconnecting {
			m.mu.Unlock()
			return ErrClosed
		}
		if m.attempts >= m.maxAttempts {
			tr, _ := m.transition(StateError)
			m.mu.Unlock()
			m.announce(ctx, tr)
			m.logger.Error(ctx, "realtime reconnect gave up", "attempts", m.maxAttempts)
			m.notify(ctx, toast.LevelError, msgLost)
			return ErrReconnectExhausted
		}
		m.attempts++
		attempt := m.attempts
		m.mu.Unlock()

		metrics.ReconnectAttempts.Inc()
		delay := m.baseDelay * time.Duration(attempt)
		m.logger.Info(ctx, "realtime reconnect scheduled", "attempt", attempt, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return m.abandon(ctx, lifetime)
		}

		err := m.dial(ctx, lifetime)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrClosed) {
			return err
		}
		if ctx.Err() != nil {
			return m.abandon(ctx, lifetime)
		}
		m.logger.Warn(ctx, "realtime reconnect attempt failed", "attempt", attempt, "error", err)
	}
}

// abandon ends a reconnect sequence whose context is done. A finished
// lifetime means Disconnect took over and the state is left alone.
func (m *Manager) abandon(ctx, lifetime context.Context) error {
	if lifetime.Err() != nil {
		return ErrClosed
	}
	m.fail(ctx, StateReconnecting)
	return ctx.Err()
}

func (m *Manager) reconcileAfter(ctx context.Context) {
	if m.reconciler == nil {
		return
	}
	timer := time.NewTimer(m.reconcileDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	if _, err := m.reconciler.CheckPending(ctx); err != nil {
		m.logger.Warn(ctx, "notification reconciliation failed", "error", err)
	}
}

func (m *Manager) notify(ctx context.Context, level toast.Level, key string) {
	if m.notifier == nil {
		return
	}
	msg := key
	if m.catalog != nil {
		msg = m.catalog.T(m.language, key, nil)
	}
	m.notifier.Notify(ctx, toast.Notice{Level: level, Key: key, Message: msg})
}

func (m *Manager) currentLifetime() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lifetime
}
