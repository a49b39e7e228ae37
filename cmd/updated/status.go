package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conn-castle/updated/internal/messages"
	"github.com/conn-castle/updated/internal/params"
	"github.com/conn-castle/updated/internal/release"
	"github.com/conn-castle/updated/internal/staging"
	"github.com/conn-castle/updated/internal/status"
	"github.com/conn-castle/updated/internal/terminal"
)

var colorEnabled = terminal.ColorEnabled

// palette colors status output when the writer is a terminal.
type palette struct {
	good *color.Color
	warn *color.Color
	bad  *color.Color
}

func newPalette(w io.Writer) palette {
	p := palette{
		good: color.New(color.FgGreen),
		warn: color.New(color.FgYellow),
		bad:  color.New(color.FgRed),
	}
	enabled := colorEnabled(w)
	for _, c := range []*color.Color{p.good, p.warn, p.bad} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) state(s string) string {
	switch status.State(s) {
	case status.Idle:
		return p.good.Sprint(s)
	case status.Failed:
		return p.bad.Sprint(s)
	default:
		return p.warn.Sprint(s)
	}
}

func (p palette) flag(set bool, c *color.Color) string {
	if set {
		return c.Sprint(messages.StatusYes)
	}
	return messages.StatusNo
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.StatusUse,
		Short: messages.StatusShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			store, err := params.NewStore(cfg.Updater.ParamsDir)
			if err != nil {
				return err
			}
			values := map[string]string{}
			for _, key := range []string{
				params.KeyState,
				params.KeyTargetBranch,
				params.KeyCurrentDescription,
				params.KeyNewDescription,
				params.KeyAvailableBranches,
			} {
				value, _, err := store.Get(key)
				if err != nil {
					return err
				}
				if value = strings.TrimSpace(value); value == "" {
					value = messages.StatusNone
				}
				values[key] = value
			}
			fetchAvailable, err := store.GetBool(params.KeyFetchAvailable)
			if err != nil {
				return err
			}
			updateReady, err := store.GetBool(params.KeyUpdateAvailable)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			p := newPalette(out)
			_, _ = fmt.Fprintf(out, messages.StatusStateFmt, p.state(values[params.KeyState]))
			_, _ = fmt.Fprintf(out, messages.StatusChannelFmt, values[params.KeyTargetBranch])
			_, _ = fmt.Fprintf(out, messages.StatusCurrentFmt, values[params.KeyCurrentDescription])
			_, _ = fmt.Fprintf(out, messages.StatusNewFmt, values[params.KeyNewDescription])
			_, _ = fmt.Fprintf(out, messages.StatusFetchFmt, p.flag(fetchAvailable, p.warn))
			_, _ = fmt.Fprintf(out, messages.StatusReadyFmt, p.flag(updateReady, p.good))
			finalized, summary := finalizedSummary(staging.Layout(cfg.Staging.Root).Finalized)
			_, _ = fmt.Fprintf(out, messages.StatusFinalizedFmt, finalized, summary)
			_, _ = fmt.Fprintf(out, messages.StatusChannelsFmt, values[params.KeyAvailableBranches])
			return nil
		},
	}
}

// finalizedSummary describes the finalized tree on disk, independent of the
// published flags.
func finalizedSummary(dir string) (string, string) {
	if !staging.IsReady(dir) {
		return dir, messages.StatusFinalizedAbsent
	}
	id, ok, err := release.ReadIdentity(dir)
	if err != nil || !ok {
		return dir, messages.StatusFinalizedReady
	}
	return dir, messages.StatusFinalizedReady + ", " + id.Description()
}
