package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/gradekeeper/internal/client/syncengine"
)

type statusView struct {
	Mode Mode `json:"mode"`
	syncengine.Status
}

func newSyncCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push queued changes and pull remote ones",
	}
	cmd.AddCommand(
		newSyncFlushCommand(opts),
		newSyncPullCommand(opts),
		newSyncStatusCommand(opts),
		newSyncPendingCommand(opts),
		newSyncHistoryCommand(opts),
		newSyncRunCommand(opts),
	)
	return cmd
}

func newSyncFlushCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Push one batch of queued changes, then pull",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			a.Watcher.Check(ctx)
			st := a.Engine.Flush(ctx)
			return writeJSON(cmd.OutOrStdout(), statusView{Mode: a.Mode(), Status: st})
		}),
	}
}

func newSyncPullCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Fetch and apply remote changes since the last checkpoint",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			if err := a.Engine.Pull(ctx); err != nil {
				return &ExitError{Code: ExitFailure, Message: "pull", Err: err}
			}
			return writeJSON(cmd.OutOrStdout(), a.Engine.Status())
		}),
	}
}

func newSyncStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show reachability, pending changes and the checkpoint",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			a.Watcher.Check(ctx)
			return writeJSON(cmd.OutOrStdout(), statusView{Mode: a.Mode(), Status: a.Engine.Status()})
		}),
	}
}

func newSyncPendingCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List queued changes",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(_ context.Context, cmd *cobra.Command, a *App, _ []string) error {
			return writeJSON(cmd.OutOrStdout(), a.Engine.Pending())
		}),
	}
}

func newSyncHistoryCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync events",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(_ context.Context, cmd *cobra.Command, a *App, _ []string) error {
			h := a.Engine.History()
			if limit > 0 && len(h) > limit {
				h = h[len(h)-limit:]
			}
			return writeJSON(cmd.OutOrStdout(), h)
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "newest entries to show, 0 for all")
	return cmd
}

func newSyncRunCommand(opts *rootOptions) *cobra.Command {
	var forDur time.Duration
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sync in the foreground until interrupted",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			if forDur > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, forDur)
				defer cancel()
			}

			go a.Watcher.Run(ctx)
			a.Engine.Start(ctx)
			<-ctx.Done()
			a.Engine.Stop()

			return writeJSON(cmd.OutOrStdout(), statusView{Mode: a.Mode(), Status: a.Engine.Status()})
		}),
	}
	cmd.Flags().DurationVar(&forDur, "for", 0, "stop after this long (default run until interrupted)")
	return cmd
}
