// Package app provides the orchestration layer for the otadash dashboard.
//
// # Overview
//
// This package wires together configuration, logging, the OTA backend client,
// metrics, and the UI. It is the composition root: every dependency is
// created here and handed to ui.Run.
//
// # Startup
//
//  1. Load the nearest .env file, then ~/.config/otadash/config.toml
//  2. Point the global zerolog logger at the dashboard log file
//  3. Load user preferences (theme, start view)
//  4. Restore the stored session and build the HTTP client, or use the
//     in-process demo backend when mock mode is on
//  5. Serve Prometheus metrics when metrics_addr is set
//  6. Start the TUI and block until the user quits or the context ends
//
// Polling is owned by the UI event loop (see internal/poll), so nothing here
// runs in the background besides the optional metrics listener.
//
// # Commands
//
// Besides Run, the package backs two CLI subcommands:
//
//   - Logout forgets the stored bearer token
//   - ServeMock exposes the demo backend over HTTP for client testing
//
// # Errors
//
// Config, session and client construction failures are returned from Run.
// Everything after the UI starts is reported through notices and the log.
package app
