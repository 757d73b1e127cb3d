package cmd

import (
	"errors"
	"fmt"
	"time"

	statusadapter "github.com/bnema/opennow-cli/internal/adapters/render/status"
	"github.com/spf13/cobra"
)

const shutdownGrace = 2 * time.Second

func newServersCmd(app *app) *cobra.Command {
	var (
		selectID string
		auto     bool
		manual   bool
		noProbe  bool
	)

	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Ping-test the streaming zones and print them ranked by latency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if auto && manual {
				return errors.New("--auto and --manual are mutually exclusive")
			}

			rt, err := app.newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.shutdown(shutdownGrace)

			rt.orch.LoadServers()
			rt.settle()

			switch {
			case selectID != "":
				if err := rt.orch.SelectServer(selectID); err != nil {
					return err
				}
			case auto:
				rt.orch.SetAutoServerSelection(true)
			case manual:
				rt.orch.SetAutoServerSelection(false)
			}

			if !noProbe {
				rt.orch.StartPingTest()
			}
			rt.settle()

			snap := rt.orch.Snapshot()
			rendered, err := statusadapter.Servers(snap.Servers, snap.SelectedServer, snap.AutoSelect)
			if err != nil {
				return fmt.Errorf("render servers: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().StringVar(&selectID, "select", "", "Pin a zone by ID and turn automatic selection off")
	cmd.Flags().BoolVar(&auto, "auto", false, "Pick the fastest online zone after each ping test")
	cmd.Flags().BoolVar(&manual, "manual", false, "Keep the pinned zone")
	cmd.Flags().BoolVar(&noProbe, "no-probe", false, "List the zones without measuring latency")

	return cmd
}
