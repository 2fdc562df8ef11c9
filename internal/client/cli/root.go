package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/gradekeeper/internal/badgerx"
	"github.com/dmitrijs2005/gradekeeper/internal/client/config"
	"github.com/dmitrijs2005/gradekeeper/internal/logging"
)

// PassphraseEnv, when set, supplies the encryption passphrase without a
// prompt.
const PassphraseEnv = "GRADEKEEPER_PASSPHRASE"

var ErrPassphraseRequired = errors.New("encryption enabled but no passphrase given")

type rootOptions struct {
	flags  *config.Flags
	reader *bufio.Reader
}

// NewRootCommand creates the gradekeeper command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "gradekeeper",
		Short: "Offline-first store for assessment grade records",
		Long: `Keep assessment grade records on this machine and sync them with a
server whenever it is reachable.

Records live in a local SQLite database with a Badger overflow tier; changes
are queued and pushed in batches by the sync engine.`,
		SilenceUsage: true,
	}

	opts.flags = config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newRecordCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newStorageCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func (o *rootOptions) in(cmd *cobra.Command) *bufio.Reader {
	if o.reader == nil {
		o.reader = bufio.NewReader(cmd.InOrStdin())
	}
	return o.reader
}

// withApp opens an App for the duration of fn.
func (o *rootOptions) withApp(fn func(ctx context.Context, cmd *cobra.Command, a *App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := o.flags.Load()
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "load config", Err: err}
		}
		ctx := cmd.Context()
		logger := logging.NewTextLogger(cmd.ErrOrStderr(), cfg.LogLevel)

		pass, err := passphrase(cfg, cmd.ErrOrStderr())
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "passphrase", Err: err}
		}

		a, err := NewApp(ctx, cfg, pass, logger)
		if errors.Is(err, badgerx.ErrLocked) {
			return &ExitError{
				Code:    ExitCommandError,
				Message: fmt.Sprintf("local storage in %s is in use by another gradekeeper process, stop \"gradekeeper sync run\" first", cfg.DataDir),
				Err:     err,
			}
		}
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "open local storage", Err: err}
		}
		defer func() {
			if err := a.Close(); err != nil {
				logger.Warn(ctx, "close local storage", "error", err)
			}
		}()

		return fn(ctx, cmd, a, args)
	}
}

// passphrase reads PassphraseEnv, falling back to a terminal prompt only when
// encryption is enabled.
func passphrase(cfg *config.Config, w io.Writer) (string, error) {
	if p := os.Getenv(PassphraseEnv); p != "" {
		return p, nil
	}
	if !cfg.Encrypt {
		return "", nil
	}
	pw, err := GetPassword(w, "Passphrase")
	if err != nil {
		return "", err
	}
	defer clear(pw)
	if len(pw) == 0 {
		return "", ErrPassphraseRequired
	}
	return string(pw), nil
}
