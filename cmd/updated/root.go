package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/conn-castle/updated/internal/config"
	"github.com/conn-castle/updated/internal/messages"
)

var getenv = os.Getenv

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
}

// loadConfig reads the config file named by the --config flag.
func (g *globalOptions) loadConfig() (*config.Config, error) {
	return config.Load(g.configPath, getenv)
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           messages.RootUse,
		Short:         messages.RootShort,
		Long:          messages.RootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, messages.RootFlagConfig)

	cmd.AddCommand(
		newRunCmd(opts),
		newOnceCmd(opts),
		newStatusCmd(opts),
		newSignalCmd(opts, messages.CheckUse, messages.CheckShort, signalCheck),
		newSignalCmd(opts, messages.DownloadUse, messages.DownloadShort, signalDownload),
		newChannelsCmd(opts),
		newDigestCmd(opts),
		newDoctorCmd(opts),
	)
	return cmd
}
