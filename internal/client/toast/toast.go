// Package toast models the transient user-facing notices raised by the
// transport and realtime layers. Rendering belongs to the application; this
// package only defines the contract and two plain implementations.
package toast

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/shiftdesk/internal/logging"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a single transient message.
type Notice struct {
	Level   Level
	Key     string
	Message string
}

// Action is invoked when the user accepts a prompt.
type Action func(ctx context.Context)

// Notifier surfaces notices to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
	// Prompt shows a notice with a call to action.
	Prompt(ctx context.Context, n Notice, label string, action Action)
}

// LogNotifier writes notices to a logger. Prompts are logged and their
// action runs immediately when AutoAccept is set.
type LogNotifier struct {
	Logger     logging.Logger
	AutoAccept bool
}

func (l *LogNotifier) Notify(ctx context.Context, n Notice) {
	args := []any{"level", string(n.Level), "key", n.Key}
	switch n.Level {
	case LevelError:
		l.Logger.Error(ctx, n.Message, args...)
	case LevelWarning:
		l.Logger.Warn(ctx, n.Message, args...)
	default:
		l.Logger.Info(ctx, n.Message, args...)
	}
}

func (l *LogNotifier) Prompt(ctx context.Context, n Notice, label string, action Action) {
	l.Logger.Info(ctx, n.Message, "level", string(n.Level), "key", n.Key, "action", label)
	if l.AutoAccept && action != nil {
		action(ctx)
	}
}

// Prompted is a prompt captured by Recorder.
type Prompted struct {
	Notice Notice
	Label  string
	Action Action
}

// Recorder keeps every notice in memory. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
	prompts []Prompted
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *Recorder) Prompt(_ context.Context, n Notice, label string, action Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, Prompted{Notice: n, Label: label, Action: action})
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Prompts returns a copy of the recorded prompts.
func (r *Recorder) Prompts() []Prompted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Prompted(nil), r.prompts...)
}

// Count returns how many notices carry key.
func (r *Recorder) Count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.notices {
		if x.Key == key {
			n++
		}
	}
	return n
}
