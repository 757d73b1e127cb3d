package cmd

import (
	"fmt"

	statusadapter "github.com/bnema/opennow-cli/internal/adapters/render/status"
	"github.com/spf13/cobra"
)

func newSessionsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List the sessions running on the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := app.newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.shutdown(shutdownGrace)

			cred, err := rt.credential()
			if err != nil {
				return err
			}

			active, err := rt.client.Sessions().ListActive(cmd.Context(), cred)
			if err != nil {
				return fmt.Errorf("list active sessions: %w", err)
			}

			rendered, err := statusadapter.Sessions(active)
			if err != nil {
				return fmt.Errorf("render sessions: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}
}

func newStopCmd(app *app) *cobra.Command {
	var (
		zone     string
		serverIP string
	)

	cmd := &cobra.Command{
		Use:   "stop SESSION_ID",
		Short: "Stop a remote session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.shutdown(shutdownGrace)

			cred, err := rt.credential()
			if err != nil {
				return err
			}

			sessionID := args[0]
			if serverIP == "" {
				serverIP = lookupServerIP(cmd, rt, sessionID)
			}
			if zone == "" {
				zone = app.cfg.Session.DefaultZone
			}

			if err := rt.client.Sessions().Stop(cmd.Context(), cred, sessionID, zone, serverIP); err != nil {
				return fmt.Errorf("stop session %s: %w", sessionID, err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stopped session %s\n", sessionID)
			return nil
		},
	}

	cmd.Flags().StringVar(&zone, "zone", "", "Zone the session runs in")
	cmd.Flags().StringVar(&serverIP, "server-ip", "", "Server the session runs on (looked up when empty)")

	return cmd
}

// lookupServerIP finds the server of sessionID among the active sessions.
// An empty result lets the service route the request itself.
func lookupServerIP(cmd *cobra.Command, rt *runtime, sessionID string) string {
	cred, err := rt.credential()
	if err != nil {
		return ""
	}
	active, err := rt.client.Sessions().ListActive(cmd.Context(), cred)
	if err != nil {
		return ""
	}
	for _, s := range active {
		if s.ID == sessionID {
			return s.ServerIP
		}
	}

	return ""
}
