package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sidewalk-ota/otadash/internal/config"
	"github.com/sidewalk-ota/otadash/internal/demo"
	"github.com/sidewalk-ota/otadash/internal/logging"
	"github.com/sidewalk-ota/otadash/internal/metrics"
	"github.com/sidewalk-ota/otadash/internal/notify"
	"github.com/sidewalk-ota/otadash/internal/ota"
	"github.com/sidewalk-ota/otadash/internal/prefs"
	"github.com/sidewalk-ota/otadash/internal/ui"
)

// Options configure the otadash application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/otadash/prefs.toml
	Mock       bool   // serve an in-process demo backend instead of the API
	PollEvery  int    // seconds; zero keeps the configured intervals
}

// Run boots the otadash TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	if _, err := config.LoadDotEnv(); err != nil {
		log.Debug().Err(err).Msg("dotenv ignored")
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	closer, err := logging.ToFile(cfg.LogPath(), cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = closer.Close() }()

	uiOpts, err := build(ctx, cfg, opts)
	if err != nil {
		return err
	}

	log.Info().
		Str("api", cfg.APIURL).
		Bool("mock", uiOpts.Session == nil).
		Dur("device_interval", uiOpts.Config.DeviceInterval).
		Dur("task_interval", uiOpts.Config.TaskInterval).
		Msg("otadash starting")
	defer log.Info().Msg("otadash stopped")

	return ui.Run(uiOpts)
}

// build resolves everything the UI needs from the loaded config.
func build(ctx context.Context, cfg config.Config, opts Options) (ui.Options, error) {
	if opts.PollEvery > 0 {
		interval := time.Duration(opts.PollEvery) * time.Second
		cfg.DeviceInterval = interval
		cfg.TaskInterval = interval
	}

	userPrefs := prefs.Load(opts.PrefsPath)

	uiOpts := ui.Options{
		Context:   ctx,
		Config:    cfg,
		Notices:   notify.New(0),
		ThemeName: userPrefs.Theme,
		PrefsPath: opts.PrefsPath,
		StartView: userPrefs.View,
	}

	if opts.Mock || cfg.Mock {
		uiOpts.API = demo.NewBackend()
	} else {
		session, err := ota.NewSession(ota.FileStore{Path: cfg.SessionPath})
		if err != nil {
			return ui.Options{}, fmt.Errorf("load session: %w", err)
		}
		client, err := ota.NewClient(cfg.APIURL, session, cfg.RequestTimeout)
		if err != nil {
			return ui.Options{}, fmt.Errorf("init api client: %w", err)
		}
		uiOpts.API = client
		uiOpts.Session = session
	}

	if cfg.MetricsAddr != "" {
		m := metrics.New()
		uiOpts.Observer = m
		uiOpts.Recorder = m
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server stopped")
			}
		}()
	}

	return uiOpts, nil
}

// Logout forgets the stored session token without starting the UI.
func Logout(opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	session, err := ota.NewSession(ota.FileStore{Path: cfg.SessionPath})
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !session.Authorized() {
		return ErrNotLoggedIn
	}
	return session.Logout()
}

// ErrNotLoggedIn reports a logout without a stored session.
var ErrNotLoggedIn = errors.New("not logged in")

// ServeMock runs the demo backend over HTTP until ctx is done.
func ServeMock(ctx context.Context, addr, level string, creds demo.Credentials, out io.Writer) error {
	logger := logging.ToConsole(out, level)
	server := demo.NewHandler(demo.NewBackend(demo.WithCredentials(creds)), logger)
	return serveHTTP(ctx, addr, server, logger)
}
