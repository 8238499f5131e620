package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidewalk-ota/otadash/internal/config"
	"github.com/sidewalk-ota/otadash/internal/demo"
	"github.com/sidewalk-ota/otadash/internal/ota"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.SessionPath = filepath.Join(dir, "session.toml")
	cfg.LogDir = dir
	return cfg
}

func TestBuild_MockUsesDemoBackendWithoutSession(t *testing.T) {
	cfg := testConfig(t)
	opts, err := build(context.Background(), cfg, Options{Mock: true, PrefsPath: filepath.Join(t.TempDir(), "prefs.toml")})
	require.NoError(t, err)

	assert.IsType(t, &demo.Backend{}, opts.API)
	assert.Nil(t, opts.Session)
	assert.Nil(t, opts.Observer)
	assert.Nil(t, opts.Recorder)
	assert.Equal(t, "Nightfox", opts.ThemeName)
	assert.Equal(t, "devices", opts.StartView)
}

func TestBuild_RealBackendRestoresSession(t *testing.T) {
	cfg := testConfig(t)
	store := ota.FileStore{Path: cfg.SessionPath}
	require.NoError(t, store.Save(ota.SessionState{Username: "ops", Token: "tok"}))

	opts, err := build(context.Background(), cfg, Options{PrefsPath: filepath.Join(t.TempDir(), "prefs.toml")})
	require.NoError(t, err)

	assert.IsType(t, &ota.Client{}, opts.API)
	require.NotNil(t, opts.Session)
	assert.True(t, opts.Session.Authorized())
	assert.Equal(t, "ops", opts.Session.Username())
}

func TestBuild_PollOverridesIntervals(t *testing.T) {
	cfg := testConfig(t)
	opts, err := build(context.Background(), cfg, Options{Mock: true, PollEvery: 3})
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, opts.Config.DeviceInterval)
	assert.Equal(t, 3*time.Second, opts.Config.TaskInterval)
}

func TestBuild_BadAPIURLFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIURL = "://nope"
	_, err := build(context.Background(), cfg, Options{})
	require.Error(t, err)
}

func TestLogout_ClearsStoredSession(t *testing.T) {
	dir := t.TempDir()
	sessionPath := filepath.Join(dir, "session.toml")
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("session_path = \""+sessionPath+"\"\n"), 0o644))

	err := Logout(Options{ConfigPath: configPath})
	require.ErrorIs(t, err, ErrNotLoggedIn)

	require.NoError(t, ota.FileStore{Path: sessionPath}.Save(ota.SessionState{Username: "ops", Token: "tok"}))
	require.NoError(t, Logout(Options{ConfigPath: configPath}))

	st, err := ota.FileStore{Path: sessionPath}.Load()
	require.NoError(t, err)
	assert.Empty(t, st.Token)
}
