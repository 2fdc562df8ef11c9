package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/gradekeeper/internal/client/blobstore"
	"github.com/dmitrijs2005/gradekeeper/internal/client/kv"
)

var ErrAborted = errors.New("aborted")

func newStorageCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect and maintain local storage",
	}
	cmd.AddCommand(
		newStorageUsageCommand(opts),
		newStorageListCommand(opts),
		newStorageCleanupCommand(opts),
		newStorageAuditCommand(opts),
	)
	return cmd
}

func newStorageUsageCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show bytes used per tier",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			u, err := a.Blobs.Usage(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), u)
		}),
	}
}

type filterFlags struct {
	kind, typ, name, tag string
	before, after        int64
}

func (f *filterFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.kind, "kind", "", "upload or download")
	fs.StringVar(&f.typ, "type", "", "content type")
	fs.StringVar(&f.name, "name", "", "exact item name")
	fs.StringVar(&f.tag, "tag", "", "items carrying this tag")
	fs.Int64Var(&f.before, "before", 0, "timestamp strictly before, epoch ms")
	fs.Int64Var(&f.after, "after", 0, "timestamp strictly after, epoch ms")
}

func (f *filterFlags) filter() (blobstore.Filter, error) {
	out := blobstore.Filter{
		Type:   f.typ,
		Name:   f.name,
		Tag:    f.tag,
		Before: f.before,
		After:  f.after,
	}
	switch blobstore.Kind(f.kind) {
	case "":
	case blobstore.KindUpload, blobstore.KindDownload:
		out.Kind = blobstore.Kind(f.kind)
	default:
		return out, fmt.Errorf("--kind %q: want %s or %s", f.kind, blobstore.KindUpload, blobstore.KindDownload)
	}
	return out, nil
}

func (f *filterFlags) empty() bool {
	return *f == filterFlags{}
}

func newStorageListCommand(opts *rootOptions) *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored item metadata",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			metas, err := a.Blobs.List(ctx, f)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), metas)
		}),
	}
	ff.register(cmd)
	return cmd
}

func newStorageCleanupCommand(opts *rootOptions) *cobra.Command {
	var (
		ff     filterFlags
		maxAge time.Duration
		limit  int
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove items by age and filter, oldest first",
		Example: `  gradekeeper storage cleanup --max-age 720h --yes
  gradekeeper storage cleanup --tag subject:math --limit 10`,
		Args: cobra.NoArgs,
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			co := blobstore.CleanupOptions{MaxAge: maxAge, Limit: limit}
			if !ff.empty() {
				co.Predicate = f.Match
			}
			if co.MaxAge <= 0 && co.Predicate == nil {
				return errors.New("nothing selected: set --max-age or a filter")
			}

			if !yes {
				answer, err := GetSimpleText(opts.in(cmd), "Remove matching items? [y/N]", cmd.OutOrStdout())
				if err != nil {
					return err
				}
				if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
					return ErrAborted
				}
			}

			n, err := a.Blobs.Cleanup(ctx, co)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]int{"removed": n})
		}),
	}
	ff.register(cmd)
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "remove items older than this")
	cmd.Flags().IntVar(&limit, "limit", 0, "remove at most this many, 0 for no limit")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newStorageAuditCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Report key-value entries outside the allowed namespaces",
		Args:  cobra.NoArgs,
		RunE: opts.withApp(func(ctx context.Context, cmd *cobra.Command, a *App, _ []string) error {
			v := a.KV.EnsureStandard(ctx)
			if v == nil {
				v = []kv.Violation{}
			}
			if err := writeJSON(cmd.OutOrStdout(), v); err != nil {
				return err
			}
			if len(v) > 0 {
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d keys outside allowed prefixes", len(v))}
			}
			return nil
		}),
	}
}
