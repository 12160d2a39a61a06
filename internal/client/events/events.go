// Package events is the in-process publish/subscribe registry the realtime
// layer uses to hand events to application collaborators.
//
// Each Bus is an independent instance; there is no package-level bus, so
// two managers (for example in tests) never see each other's events.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Name identifies a local event channel.
type Name string

// Local events dispatched by the client.
const (
	SocketAuthenticated  Name = "socket-authenticated"
	NotificationReceived Name = "notification-received"
	ShowNotifications    Name = "show-notifications"
	ContractSignerSigned Name = "contract:signer:signed"
	ContractCompleted    Name = "contract:completed"
	ConnectionState      Name = "connection-state"
)

// Event is a single dispatched event.
type Event struct {
	Name    Name
	Payload json.RawMessage
	At      time.Time
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// Handler receives events for the names it subscribed to.
type Handler func(ctx context.Context, e Event)

// Unsubscribe removes the subscription that returned it. It is safe to call
// more than once.
type Unsubscribe func()

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a typed publish/subscribe registry with one channel per event name.
// Handlers run synchronously on the publishing goroutine, in subscription
// order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Name][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Name][]subscription)}
}

// Subscribe registers h for events named name.
func (b *Bus) Subscribe(name Name, h Handler) Unsubscribe {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, id) })
	}
}

func (b *Bus) remove(name Name, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[name]
	for i, s := range subs {
		if s.id == id {
			b.subs[name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[name]) == 0 {
		delete(b.subs, name)
	}
}

// Publish dispatches payload under name. Payload may be nil, raw JSON or any
// JSON-marshalable value.
func (b *Bus) Publish(ctx context.Context, name Name, payload any) error {
	raw, err := toRaw(payload)
	if err != nil {
		return err
	}
	b.Dispatch(ctx, Event{Name: name, Payload: raw, At: time.Now()})
	return nil
}

// Dispatch delivers an already built event.
func (b *Bus) Dispatch(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[e.Name]))
	copy(subs, b.subs[e.Name])
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(ctx, e)
	}
}

// Subscribers reports how many handlers are registered for name.
func (b *Bus) Subscribers(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// Clear drops every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.subs = make(map[Name][]subscription)
	b.mu.Unlock()
}

func toRaw(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return json.RawMessage(p), nil
	default:
		return json.Marshal(p)
	}
}
