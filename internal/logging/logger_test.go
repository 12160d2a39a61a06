package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels_WriteExpectedOutput(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()

	tests := []struct {
		level string
		msg   string
		attr  string
	}{
		{"DEBUG", "dbg", "a=1"},
		{"INFO", "inf", "b=2"},
		{"WARN", "wrn", "c=3"},
		{"ERROR", "err", "d=4"},
	}

	for _, tc := range tests {
		assert.Contains(t, out, "level="+tc.level)
		assert.Contains(t, out, "msg="+tc.msg)
		assert.Contains(t, out, tc.attr)
	}
}

func TestSlogLogger_With_AddsAttributes(t *testing.T) {
	log, buf := newTestLogger(t)

	log.With("component", "realtime", "attempt", 2).Info(context.Background(), "hello", "k", "v")

	out := buf.String()
	for _, s := range []string{"level=INFO", "msg=hello", "component=realtime", "attempt=2", "k=v"} {
		assert.Contains(t, out, s)
	}
}

func TestNew_Backends(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		format  string
		level   string
		wantErr bool
		want    []string
	}{
		{name: "slog text", backend: "slog", format: "text", level: "info", want: []string{"msg=started", "port=8080"}},
		{name: "slog json", backend: "", format: "json", level: "info", want: []string{`"msg":"started"`, `"port":8080`}},
		{name: "zap json", backend: "zap", format: "json", level: "info", want: []string{`"msg":"started"`, `"port":8080`}},
		{name: "zap console", backend: "zap", format: "text", level: "debug", want: []string{"started"}},
		{name: "bad backend", backend: "logrus", level: "info", wantErr: true},
		{name: "bad slog level", backend: "slog", level: "loud", wantErr: true},
		{name: "bad zap level", backend: "zap", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := New(tt.backend, tt.format, tt.level, &buf)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			l.Info(context.Background(), "started", "port", 8080)
			if z, ok := l.(*ZapLogger); ok {
				_ = z.Sync()
			}

			for _, s := range tt.want {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("slog", "text", "warn", &buf)
	require.NoError(t, err)

	l.Debug(context.Background(), "hidden")
	l.Info(context.Background(), "hidden too")
	l.Warn(context.Background(), "shown")

	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.Contains(t, out, "shown")
}

func TestNop_DoesNotPanic(t *testing.T) {
	l := Nop().With("a", 1)
	ctx := context.TODO()
	l.Debug(ctx, "x")
	l.Info(ctx, "x")
	l.Warn(ctx, "x")
	l.Error(ctx, "x")
}

func TestRequestID_AddedFromContext(t *testing.T) {
	log, buf := newTestLogger(t)

	ctx := WithRequestID(context.Background(), "req-42")
	assert.Equal(t, "req-42", RequestID(ctx))

	log.Info(ctx, "request completed", "status", 200)
	assert.Contains(t, buf.String(), "request_id=req-42")
	assert.Contains(t, buf.String(), "status=200")

	buf.Reset()
	log.Info(context.Background(), "no id")
	assert.NotContains(t, buf.String(), "request_id")
}

func TestWithRequestID_EmptyKeepsContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithRequestID(ctx, ""))
	assert.Empty(t, RequestID(ctx))
}

func TestSlogLogger_NilContext(t *testing.T) {
	log, buf := newTestLogger(t)

	require.NotPanics(t, func() { log.Warn(nil, "no ctx", "k", 1) })
	assert.Contains(t, buf.String(), "msg=\"no ctx\"")
	assert.Contains(t, buf.String(), "k=1")
}
