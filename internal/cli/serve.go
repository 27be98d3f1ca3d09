package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/climq/internal/rpc"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the datasets as a JSON-RPC collaborator on stdio",
		Long: `Serve the sqlite datasets over JSON-RPC 2.0, one message per line on
stdin and stdout. Logs go to stderr.

Methods: tables, execute, schema. Execute replies with tuple text, or
"No data found for the query." for an empty result; statements other
than reads are rejected.

A client climq points at this command with:
  source:
    kind: rpc
    command: ["climq", "serve", "--data-dir", "/srv/data"]`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, cmd)
		},
	}
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	reg, err := loadRegistry(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load vocabulary", err)
	}
	st, err := openStore(opts.Config, reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open datasets", err)
	}
	defer st.Close()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts.Logger.Info("serving datasets", "dir", opts.Config.DataDir, "databases", st.Databases())
	err = rpc.NewServer(st, opts.Logger).Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "serve", err)
	}
	return nil
}
