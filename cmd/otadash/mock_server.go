package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sidewalk-ota/otadash/internal/app"
	"github.com/sidewalk-ota/otadash/internal/demo"
)

func newMockServerCmd() *cobra.Command {
	var (
		listen   string
		level    string
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve the demo backend over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds := demo.Credentials{Username: username, Password: password}
			return app.ServeMock(cmd.Context(), listen, level, creds, os.Stderr)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8080", "address to listen on")
	cmd.Flags().StringVar(&level, "log-level", "info", "log level")
	cmd.Flags().StringVar(&username, "username", "", "accepted username (empty accepts any)")
	cmd.Flags().StringVar(&password, "password", "", "accepted password")
	return cmd
}
