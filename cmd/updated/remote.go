package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conn-castle/updated/internal/deltasync"
	"github.com/conn-castle/updated/internal/messages"
	"github.com/conn-castle/updated/internal/params"
)

func newChannelsCmd(opts *globalOptions) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   messages.ChannelsUse,
		Short: messages.ChannelsShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if reset {
				store, err := params.NewStore(cfg.Updater.ParamsDir)
				if err != nil {
					return err
				}
				if err := store.Delete(params.KeyTargetBranch); err != nil {
					return err
				}
				_, _ = fmt.Fprint(cmd.OutOrStdout(), messages.ChannelsResetDone)
				return nil
			}
			fetcher, err := newFetcher(cfg)
			if err != nil {
				return err
			}
			channels, err := fetcher.FetchChannels(cmd.Context())
			if err != nil {
				return err
			}
			target := ""
			if store, err := params.NewStore(cfg.Updater.ParamsDir); err == nil {
				target, _, _ = store.Get(params.KeyTargetBranch)
			}
			out := cmd.OutOrStdout()
			for _, channel := range channels {
				marker := " "
				if channel == target {
					marker = "*"
				}
				_, _ = fmt.Fprintf(out, "%s %s\n", marker, channel)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, messages.ChannelsFlagReset)
	return cmd
}

func newDigestCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.DigestUse,
		Short: messages.DigestShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			workDir, err := os.MkdirTemp("", "updated-digest-")
			if err != nil {
				return fmt.Errorf(messages.DigestWorkDirFmt, err)
			}
			defer func() { _ = os.RemoveAll(workDir) }()

			gateway, err := deltasync.New(deltasync.Config{
				Tool:    cfg.DeltaSync.Tool,
				Args:    cfg.DeltaSync.Args,
				WorkDir: workDir,
				EnvFile: cfg.DeltaSync.EnvFile,
			}, nil)
			if err != nil {
				return err
			}
			digest, err := gateway.Digest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), digest)
			return nil
		},
	}
}
