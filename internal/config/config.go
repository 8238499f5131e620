package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the resolved dashboard configuration.
type Config struct {
	APIURL         string
	Mock           bool
	LogDir         string
	LogLevel       string
	RequestTimeout time.Duration
	MetricsAddr    string
	SessionPath    string
	Highlight      time.Duration

	DeviceInterval time.Duration
	TaskInterval   time.Duration

	// Sensor monitoring view
	SensorInterval      time.Duration
	MeasurementInterval time.Duration

	DevicesPageSize int
	TasksPageSize   int

	UploadMaxBytes   int64
	UploadExtensions []string
}

const (
	defaultConfigPath  = "~/.config/otadash/config.toml"
	defaultLogDir      = "~/.local/share/otadash/logs"
	defaultSessionPath = "~/.config/otadash/session.toml"
	defaultAPIURL      = "http://127.0.0.1:8080"
	defaultLogLevel    = "info"
	defaultPageSize    = 10
	defaultMaxBytes    = 1 << 20
)

// Environment overrides, applied after the file.
const (
	EnvAPIURL      = "OTADASH_API_URL"
	EnvMock        = "OTADASH_MOCK"
	EnvLogLevel    = "OTADASH_LOG_LEVEL"
	EnvMetricsAddr = "OTADASH_METRICS_ADDR"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL:              defaultAPIURL,
		LogDir:              mustExpand(defaultLogDir),
		LogLevel:            defaultLogLevel,
		RequestTimeout:      10 * time.Second,
		SessionPath:         mustExpand(defaultSessionPath),
		Highlight:           time.Second,
		DeviceInterval:      5 * time.Second,
		TaskInterval:        5 * time.Second,
		SensorInterval:      5 * time.Second,
		MeasurementInterval: 15 * time.Second,
		DevicesPageSize:     defaultPageSize,
		TasksPageSize:       defaultPageSize,
		UploadMaxBytes:      defaultMaxBytes,
		UploadExtensions:    []string{".bin", ".hex", ".nvm3", ".s37"},
	}
}

type rawConfig struct {
	APIURL         string `toml:"api_url"`
	Mock           *bool  `toml:"mock"`
	LogDir         string `toml:"log_dir"`
	LogLevel       string `toml:"log_level"`
	RequestTimeout string `toml:"request_timeout"`
	MetricsAddr    string `toml:"metrics_addr"`
	SessionPath    string `toml:"session_path"`
	Highlight      string `toml:"highlight"`
	Poll           struct {
		DeviceInterval string `toml:"device_interval"`
		TaskInterval   string `toml:"task_interval"`
		SensorInterval string `toml:"sensor_interval"`
		Measurements   string `toml:"measurement_interval"`
	} `toml:"poll"`
	Tables struct {
		DevicesPageSize int `toml:"devices_page_size"`
		TasksPageSize   int `toml:"tasks_page_size"`
	} `toml:"tables"`
	Upload struct {
		MaxBytes          int64    `toml:"max_bytes"`
		AllowedExtensions []string `toml:"allowed_extensions"`
	} `toml:"upload"`
}

// Load parses the config at path, falling back to defaults when the file is
// missing, then applies environment overrides.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		bytes, err := io.ReadAll(file)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		var raw rawConfig
		if err := toml.Unmarshal(bytes, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		if err := cfg.merge(raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) merge(raw rawConfig) error {
	if v := strings.TrimSpace(raw.APIURL); v != "" {
		c.APIURL = v
	}
	if raw.Mock != nil {
		c.Mock = *raw.Mock
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		c.LogDir = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.MetricsAddr); v != "" {
		c.MetricsAddr = v
	}
	if v := strings.TrimSpace(raw.SessionPath); v != "" {
		c.SessionPath = mustExpand(v)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"request_timeout", raw.RequestTimeout, &c.RequestTimeout},
		{"highlight", raw.Highlight, &c.Highlight},
		{"poll.device_interval", raw.Poll.DeviceInterval, &c.DeviceInterval},
		{"poll.task_interval", raw.Poll.TaskInterval, &c.TaskInterval},
		{"poll.sensor_interval", raw.Poll.SensorInterval, &c.SensorInterval},
		{"poll.measurement_interval", raw.Poll.Measurements, &c.MeasurementInterval},
	}
	for _, d := range durations {
		v := strings.TrimSpace(d.raw)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		if parsed <= 0 {
			return fmt.Errorf("%s: must be positive", d.key)
		}
		*d.dst = parsed
	}

	if raw.Tables.DevicesPageSize > 0 {
		c.DevicesPageSize = raw.Tables.DevicesPageSize
	}
	if raw.Tables.TasksPageSize > 0 {
		c.TasksPageSize = raw.Tables.TasksPageSize
	}
	if raw.Upload.MaxBytes > 0 {
		c.UploadMaxBytes = raw.Upload.MaxBytes
	}
	if len(raw.Upload.AllowedExtensions) > 0 {
		exts := make([]string, 0, len(raw.Upload.AllowedExtensions))
		for _, ext := range raw.Upload.AllowedExtensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			exts = append(exts, ext)
		}
		c.UploadExtensions = exts
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		c.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMock)); v != "" {
		mock, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMock, err)
		}
		c.Mock = mock
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvMetricsAddr)); v != "" {
		c.MetricsAddr = v
	}
	return nil
}

// LogPath returns the dashboard log file.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.LogDir) == "" {
		return mustExpand(defaultLogDir + "/otadash.log")
	}
	return filepath.Join(c.LogDir, "otadash.log")
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return ExpandPath(defaultConfigPath)
	}
	return ExpandPath(path)
}

func mustExpand(path string) string {
	expanded, err := ExpandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath resolves a leading ~ and returns an absolute path.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
