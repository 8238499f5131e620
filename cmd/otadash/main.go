package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sidewalk-ota/otadash/internal/app"
)

var (
	configPath  string
	mock        bool
	pollSeconds int
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "otadash: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "otadash",
		Short:         "Terminal dashboard for firmware-over-the-air transfers",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), app.Options{
				ConfigPath: configPath,
				Mock:       mock,
				PollEvery:  pollSeconds,
			})
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "override config path (optional)")
	root.Flags().BoolVar(&mock, "mock", false, "use the in-process demo backend")
	root.Flags().IntVar(&pollSeconds, "poll", 0, "poll interval in seconds for devices and tasks (optional)")

	root.AddCommand(newMockServerCmd(), newLogoutCmd())
	return root
}
