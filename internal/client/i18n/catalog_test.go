package i18n

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LoadsBuiltinLocales(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	msg, ok := c.Lookup("en", "errors.network")
	require.True(t, ok)
	assert.Contains(t, msg, "server")

	msg, ok = c.Lookup("vi", "realtime.reconnected")
	require.True(t, ok)
	assert.Equal(t, "Đã kết nối lại.", msg)
}

func TestLookup_Fallbacks(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	tests := []struct {
		name   string
		lang   string
		key    string
		wantOK bool
		want   string
	}{
		{name: "regional tag falls back to base", lang: "vi-VN", key: "notifications.view", wantOK: true, want: "Xem"},
		{name: "unknown language falls back to english", lang: "fr", key: "notifications.view", wantOK: true, want: "View"},
		{name: "empty language", lang: "", key: "notifications.view", wantOK: true, want: "View"},
		{name: "missing key", lang: "en", key: "errors.NOPE", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Lookup(tt.lang, tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestT_Placeholders(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	assert.Equal(t, "You have 3 new notifications.", c.T("en", "notifications.pending", map[string]any{"count": 3}))
	assert.Equal(t, "errors.MISSING", c.T("en", "errors.MISSING", nil))
}

func TestMerge_OverridesAndAdds(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	require.NoError(t, c.Merge("en", []byte("errors:\n  network: offline\n  CUSTOM: custom text\n")))

	got, _ := c.Lookup("en", "errors.network")
	assert.Equal(t, "offline", got)
	got, _ = c.Lookup("en", "errors.CUSTOM")
	assert.Equal(t, "custom text", got)
}

func TestLoadFS_And_LoadFile(t *testing.T) {
	c := &Catalog{messages: map[string]map[string]string{}}

	fsys := fstest.MapFS{
		"loc/de.yaml":   {Data: []byte("notifications:\n  view: Ansehen\n")},
		"loc/readme.md": {Data: []byte("ignored")},
	}
	require.NoError(t, c.LoadFS(fsys, "loc"))
	got, ok := c.Lookup("de", "notifications.view")
	require.True(t, ok)
	assert.Equal(t, "Ansehen", got)

	file := filepath.Join(t.TempDir(), "es.yaml")
	require.NoError(t, os.WriteFile(file, []byte("errors:\n  network: sin red\n"), 0o600))
	require.NoError(t, c.LoadFile("es", file))
	got, _ = c.Lookup("es", "errors.network")
	assert.Equal(t, "sin red", got)

	require.Error(t, c.Merge("xx", []byte("[1, 2]")))
}
