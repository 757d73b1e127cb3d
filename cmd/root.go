package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "opennow",
		Short:         "OpenNOW: cloud game streaming sessions from the terminal",
		Long:          "opennow signs in to the streaming service, picks the fastest server zone, launches or resumes game sessions and keeps the stream attached until it ends.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.PersistentFlags().BoolVar(&app.logStderr, "log-stderr", false, "Write logs to stderr instead of the state directory")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return app.setupLogging(cmd.ErrOrStderr())
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newLoginCmd(app),
		newLogoutCmd(app),
		newServersCmd(app),
		newSessionsCmd(app),
		newLaunchCmd(app),
		newResumeCmd(app),
		newStopCmd(app),
	)

	return rootCmd
}
