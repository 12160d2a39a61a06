package realtime

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Protocol events exchanged with the server.
const (
	eventConnected    = "connected"
	eventConnectError = "connect_error"
	eventPing         = "ping"
	eventPong         = "pong"
	eventError        = "error"
)

// Frame is one JSON text message on the socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func newFrame(event string, data any) (Frame, error) {
	if data == nil {
		return Frame{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: raw}, nil
}

type pingData struct {
	Seq uint64 `json:"seq"`
}

// frameSeq reads the ping sequence echoed in a pong; zero when absent.
func frameSeq(data json.RawMessage) uint64 {
	if len(data) == 0 {
		return 0
	}
	return gjson.GetBytes(data, "seq").Uint()
}
