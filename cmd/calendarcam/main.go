package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"calendarcam/internal/app"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "calendarcam",
		Short:        "Watch a wall calendar and digitize it after every change",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: withApp(func(ctx context.Context, a *app.App, _ []string) error {
			return a.Run(ctx)
		}),
	}

	root.AddCommand(&cobra.Command{
		Use:          "digitize <image>...",
		Short:        "Digitize calendar photos from disk",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			return a.Digitize(ctx, args)
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:          "inbox",
		Short:        "Digitize photos dropped into the inbox directory",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: withApp(func(ctx context.Context, a *app.App, _ []string) error {
			return a.WatchInbox(ctx)
		}),
	})

	return root
}

func withApp(run func(ctx context.Context, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		application, err := app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to start: %w", err)
		}
		defer application.Close()
		return run(cmd.Context(), application, args)
	}
}
