package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bnema/opennow-cli/internal/application"
	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/bnema/opennow-cli/internal/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const metricsShutdownTimeout = 2 * time.Second

type sessionFlags struct {
	resume      bool
	replace     bool
	metricsAddr string
}

func (f sessionFlags) policy() (conflictPolicy, error) {
	switch {
	case f.resume && f.replace:
		return conflictAbort, errors.New("--resume and --replace are mutually exclusive")
	case f.resume:
		return conflictResume, nil
	case f.replace:
		return conflictReplace, nil
	default:
		return conflictAbort, nil
	}
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the session runs")
}

func newLaunchCmd(app *app) *cobra.Command {
	var (
		flags sessionFlags
		title string
	)

	cmd := &cobra.Command{
		Use:   "launch APP_ID",
		Short: "Launch a game and stream it until the session ends",
		Long:  "launch starts a session for APP_ID in the selected zone, waits through the queue and keeps the stream attached until it ends. Press Esc or Ctrl+C to stop the session.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := flags.policy()
			if err != nil {
				return err
			}

			rt, err := app.newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.shutdown(shutdownGrace)

			if _, err := rt.credential(); err != nil {
				return err
			}

			rt.orch.LoadServers()
			rt.settle()
			if rt.orch.Snapshot().AutoSelect {
				rt.orch.StartPingTest()
				rt.settle()
			}

			game := resolveGame(rt, args[0], title)
			return runSession(cmd, rt, application.LaunchIntent{Game: game}, policy, flags.metricsAddr)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Title shown while the session starts")
	cmd.Flags().BoolVar(&flags.resume, "resume", false, "Resume the running session when the account already has one")
	cmd.Flags().BoolVar(&flags.replace, "replace", false, "Stop the running session and launch anyway")
	flags.register(cmd)

	return cmd
}

func newResumeCmd(app *app) *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "resume [SESSION_ID]",
		Short: "Reattach to a session running on the account",
		Args:  cobra.MaximumNArgs(1),
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

			active, err := rt.client.Sessions().ListActive(cmd.Context(), cred)
			if err != nil {
				return fmt.Errorf("list active sessions: %w", err)
			}

			wanted := ""
			if len(args) == 1 {
				wanted = args[0]
			}
			target, err := pickSession(active, wanted)
			if err != nil {
				return err
			}

			return runSession(cmd, rt, application.ResumeIntent{Session: target}, conflictAbort, flags.metricsAddr)
		},
	}

	flags.register(cmd)

	return cmd
}

func pickSession(active []domain.ActiveSessionDescriptor, id string) (domain.ActiveSessionDescriptor, error) {
	if len(active) == 0 {
		return domain.ActiveSessionDescriptor{}, domain.ErrNoSession
	}
	if id == "" {
		return active[0], nil
	}
	for _, s := range active {
		if s.ID == id {
			return s, nil
		}
	}

	return domain.ActiveSessionDescriptor{}, fmt.Errorf("session %s: %w", id, domain.ErrNoSession)
}

// resolveGame prefers the cached catalog entry for appID.
func resolveGame(rt *runtime, appID, title string) domain.Game {
	game := domain.Game{ID: appID, Title: appID}
	if games, ok := rt.box.Games.Peek(); ok {
		for _, g := range games {
			if g.ID == appID || g.AppID == appID {
				game = g
				break
			}
		}
	}
	if title != "" {
		game.Title = title
	}

	return game
}

// runSession runs the foreground loop, plus the metrics endpoint when
// metricsAddr is set. Either one failing stops the other.
func runSession(cmd *cobra.Command, rt *runtime, start application.Intent, policy conflictPolicy, metricsAddr string) error {
	g, ctx := errgroup.WithContext(cmd.Context())

	var server *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server = &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if server != nil {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()
		}

		model := newSessionModel(rt.orch, start, policy, rt.now)
		_, err := runSessionLoop(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), model)
		return err
	})

	return g.Wait()
}
