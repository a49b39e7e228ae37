package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conn-castle/updated/internal/basestate"
	"github.com/conn-castle/updated/internal/doctor"
	"github.com/conn-castle/updated/internal/messages"
)

func newDoctorCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   messages.DoctorUse,
		Short: messages.DoctorShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			p := newPalette(out)
			_, _ = fmt.Fprintf(out, messages.DoctorHealthCheckFmt, opts.configPath)

			results, cfg := doctor.CheckConfig(opts.configPath, getenv)
			if cfg != nil {
				results = append(results, doctor.CheckInstallRoot(cmd.Context(), cfg, basestate.NewInspector(basestate.RealSystem{}))...)
				results = append(results, doctor.CheckDeltaSyncTool(cfg)...)
				results = append(results, doctor.CheckStaging(cfg)...)
				results = append(results, doctor.CheckParams(cfg)...)
				if fetcher, err := newFetcher(cfg); err == nil {
					results = append(results, doctor.CheckRemote(cmd.Context(), cfg, fetcher)...)
				}
			}
			for _, r := range results {
				printResult(out, p, r)
			}

			if doctor.HasFailure(results) {
				_, _ = fmt.Fprintln(out, p.bad.Sprint(messages.DoctorFailureSummary))
				return errors.New(messages.DoctorFailureError)
			}
			_, _ = fmt.Fprintln(out, p.good.Sprint(messages.DoctorSuccessSummary))
			return nil
		},
	}
}

func printResult(out io.Writer, p palette, r doctor.Result) {
	var status string
	switch r.Status {
	case doctor.StatusOK:
		status = p.good.Sprint(messages.DoctorStatusOKLabel)
	case doctor.StatusWarn:
		status = p.warn.Sprint(messages.DoctorStatusWarnLabel)
	case doctor.StatusFail:
		status = p.bad.Sprint(messages.DoctorStatusFailLabel)
	}

	_, _ = fmt.Fprintf(out, messages.DoctorResultLineFmt, status, r.CheckName, r.Message)
	if r.Recommendation != "" {
		printRecommendation(out, r.Recommendation)
	}
}

// printRecommendation renders a multi-line recommendation with consistent indentation.
func printRecommendation(out io.Writer, recommendation string) {
	for i, line := range strings.Split(recommendation, "\n") {
		switch {
		case i == 0:
			_, _ = fmt.Fprintf(out, "%s%s\n", messages.DoctorRecommendationPrefix, line)
		case line == "":
			_, _ = fmt.Fprintf(out, "%s\n", messages.DoctorRecommendationIndent)
		default:
			_, _ = fmt.Fprintf(out, "%s%s\n", messages.DoctorRecommendationIndent, line)
		}
	}
}
