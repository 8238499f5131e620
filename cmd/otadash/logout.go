package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sidewalk-ota/otadash/internal/app"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := app.Logout(app.Options{ConfigPath: configPath})
			if errors.Is(err, app.ErrNotLoggedIn) {
				fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}
