package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeGateway is a websocket server speaking the realtime protocol.
type fakeGateway struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	refuse      atomic.Bool  // answer upgrades with 503
	silent      atomic.Bool  // never confirm the session
	reject      atomic.Bool  // confirm with connect_error
	skipPings   atomic.Int32 // leave this many pings unanswered
	confirmIn   atomic.Int64 // delay before the connected event
	accepts     atomic.Int32
	pings       atomic.Int32
	clientPongs atomic.Int32

	mu      sync.Mutex
	conns   []*gatewayConn
	cookies []string
}

type gatewayConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *gatewayConn) send(event string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := map[string]any{"event": event}
	if data != nil {
		msg["data"] = data
	}
	return c.ws.WriteJSON(msg)
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{}
	g.srv = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(func() {
		g.closeAll()
		g.srv.Close()
	})
	return g
}

func (g *fakeGateway) wsURL() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http") + "/socket"
}

func (g *fakeGateway) serve(w http.ResponseWriter, r *http.Request) {
	if g.refuse.Load() {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	g.accepts.Add(1)

	c := &gatewayConn{ws: ws}
	g.mu.Lock()
	g.conns = append(g.conns, c)
	g.cookies = append(g.cookies, r.Header.Get("Cookie"))
	g.mu.Unlock()

	switch {
	case g.reject.Load():
		_ = c.send(eventConnectError, map[string]string{"message": "unauthorized"})
	case !g.silent.Load():
		if d := time.Duration(g.confirmIn.Load()); d > 0 {
			time.Sleep(d)
		}
		_ = c.send(eventConnected, map[string]string{"sid": "s-1"})
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if json.Unmarshal(data, &f) != nil {
			continue
		}
		switch f.Event {
		case eventPing:
			g.pings.Add(1)
			if g.skipPings.Load() > 0 {
				g.skipPings.Add(-1)
				continue
			}
			c.mu.Lock()
			_ = ws.WriteJSON(Frame{Event: eventPong, Data: f.Data})
			c.mu.Unlock()
		case eventPong:
			g.clientPongs.Add(1)
		}
	}
}

func (g *fakeGateway) latest() *gatewayConn {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.conns) == 0 {
		return nil
	}
	return g.conns[len(g.conns)-1]
}

// drop closes the newest connection the way a proxy restart would.
func (g *fakeGateway) drop(reason string) {
	c := g.latest()
	if c == nil {
		return
	}
	c.mu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, reason),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	_ = c.ws.Close()
}

func (g *fakeGateway) closeAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.conns {
		_ = c.ws.Close()
	}
}

func (g *fakeGateway) firstCookie() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.cookies) == 0 {
		return ""
	}
	return g.cookies[0]
}
