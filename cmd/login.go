package cmd

import (
	"fmt"
	"strings"

	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newLoginCmd(app *app) *cobra.Command {
	var idp string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser",
		Long:  "login starts a PKCE browser login on a loopback port and stores the resulting credential.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.cfg.RequireLogin(); err != nil {
				return err
			}

			box, err := app.openMailbox(cmd.Context())
			if err != nil {
				return err
			}

			provider := domain.LoginProvider{}
			if idp = strings.TrimSpace(idp); idp != "" {
				provider = domain.LoginProvider{ID: idp, Code: idp, DisplayName: idp, Alliance: true}
			}

			cred, err := app.authenticator().Login(cmd.Context(), provider, func(authURL string) error {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to sign in:\n%s\n", authURL)
				return err
			})
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			box.Tokens.Write(cred)
			if provider.ID != "" {
				box.LoginProvider.Write(provider)
			} else {
				box.LoginProvider.Clear()
			}

			who := cred.UserID
			if who == "" {
				who = "account"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", who)
			return nil
		},
	}

	cmd.Flags().StringVar(&idp, "idp", "", "Identity provider ID for alliance-partner logins")

	return cmd
}

func newLogoutCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential and account caches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			box, err := app.openMailbox(cmd.Context())
			if err != nil {
				return err
			}

			box.ClearAccount()
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}
