package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/conn-castle/updated/internal/messages"
	"github.com/conn-castle/updated/internal/staging"
)

var killProcess = unix.Kill

// newSignalCmd builds a command that delivers sig to the updater holding the
// instance lock. A PID left in an unheld lock file is never signalled.
func newSignalCmd(opts *globalOptions, use string, short string, sig unix.Signal) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			pid, err := staging.RunningPID(cfg.Updater.LockFile)
			if err != nil {
				return fmt.Errorf(messages.RunReadPIDFmt, cfg.Updater.LockFile, err)
			}
			if err := killProcess(pid, sig); err != nil {
				return fmt.Errorf(messages.SignalFailFmt, pid, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), messages.SignalSentFmt, unix.SignalName(sig), pid)
			return nil
		},
	}
}
