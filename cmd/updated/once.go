package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conn-castle/updated/internal/messages"
	"github.com/conn-castle/updated/internal/updater"
)

func newOnceCmd(opts *globalOptions) *cobra.Command {
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   messages.OnceUse,
		Short: messages.OnceShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := updater.RequestNone
			if checkOnly {
				req = updater.RequestCheck
			}
			return withApp(cmd.Context(), cmd, opts, func(ctx context.Context, a *app) error {
				out := a.orchestrator.RunCycle(ctx, req)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), messages.OnceResultFmt,
					out.Status.State, out.Status.FetchAvailable, out.Status.UpdateReady)
				return out.Err
			})
		},
	}
	cmd.Flags().BoolVar(&checkOnly, "check-only", false, messages.OnceFlagCheckOnly)
	return cmd
}
