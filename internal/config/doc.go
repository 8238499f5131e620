// Package config loads the otadash configuration file.
//
// # Resolution
//
// Load reads ~/.config/otadash/config.toml unless a path is given. A missing
// file is not an error: Default values are used. Fields present in the file
// override the defaults, and the OTADASH_* environment variables override
// both. LoadDotEnv fills the environment from the nearest .env file first.
//
// # TOML Format
//
//	api_url = "https://ota.example.com"
//	mock = false
//	log_dir = "~/.local/share/otadash/logs"
//	log_level = "info"
//	request_timeout = "10s"
//	highlight = "1s"
//	metrics_addr = "127.0.0.1:9464"
//	session_path = "~/.config/otadash/session.toml"
//
//	[poll]
//	device_interval = "5s"
//	task_interval = "5s"
//
//	[tables]
//	devices_page_size = 10
//	tasks_page_size = 10
//
//	[upload]
//	max_bytes = 1048576
//	allowed_extensions = [".bin", ".hex", ".nvm3", ".s37"]
//
// Durations use time.ParseDuration syntax and must be positive. Paths accept
// a leading ~.
package config
