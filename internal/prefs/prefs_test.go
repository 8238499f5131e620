package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePrefs(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prefs.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultPathUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, Prefs{Theme: defaultTheme, View: defaultView}, Load(""))

	dir := filepath.Join(home, ".config", "otadash")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prefs.toml"), []byte("theme = \"Slate\"\nview = \"Tasks\"\n"), 0o644))

	assert.Equal(t, Prefs{Theme: "Slate", View: "tasks"}, Load(""))
}

func TestLoad_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Prefs
	}{
		{"partial file keeps default view", "theme = \"Kanagawa\"\n", Prefs{Theme: "Kanagawa", View: defaultView}},
		{"blank theme", "theme = \"  \"\nview = \"firmware\"\n", Prefs{Theme: defaultTheme, View: "firmware"}},
		{"malformed toml", "not valid toml {{{\n", Prefs{Theme: defaultTheme, View: defaultView}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Load(writePrefs(t, tt.body)))
		})
	}
}

func TestSave_RoundTripsAndLeavesNoTempFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.toml")
	p := Prefs{Theme: "Slate", View: "activity"}

	require.NoError(t, Save(path, p))
	assert.Equal(t, p, Load(path))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
