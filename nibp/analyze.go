package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/itohio/gonibp/pkg/archive"
	"github.com/itohio/gonibp/pkg/nibp"
	"github.com/itohio/gonibp/pkg/oscillometry"
	"github.com/itohio/gonibp/pkg/session"
)

func newAnalyzeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <file.csv>",
		Short: "Estimate blood pressure from a recorded trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			method, err := oscillometry.ParseMethod(cfg.Analysis.Method)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			samples, err := session.ReadPressures(f)
			if err != nil {
				return printOutcome(cmd.OutOrStdout(), nil, fmt.Errorf("%s: %w", args[0], err))
			}

			res, err := oscillometry.EstimateWith(method, samples)
			return printOutcome(cmd.OutOrStdout(), res, err)
		},
	}
}

func newReplayCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <session-id>",
		Short: "Re-run the analysis of an archived session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			method, err := oscillometry.ParseMethod(cfg.Analysis.Method)
			if err != nil {
				return err
			}

			a, err := openArchive(cfg.Archive.Path)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			samples, err := a.Pressures(ctx, args[0])
			if err != nil {
				return err
			}

			res, err := oscillometry.EstimateWith(method, samples)
			s := &sinks{archive: a}
			s.report(ctx, args[0], samples, res, err, nil)
			return printOutcome(cmd.OutOrStdout(), res, err)
		},
	}
}

func newSessionsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List archived sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			a, err := openArchive(cfg.Archive.Path)
			if err != nil {
				return err
			}
			defer a.Close()

			return listSessions(cmd.Context(), a, cmd)
		},
	}
}

func listSessions(ctx context.Context, a *archive.Archive, cmd *cobra.Command) error {
	infos, err := a.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
		return nil
	}
	for _, info := range infos {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d samples", info.ID, info.StartedAt.Local().Format("2006-01-02 15:04:05"), info.Samples)
		if info.Reading != nil {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\tdevice %g/%g", info.Reading.Systolic, info.Reading.Diastolic)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

func openArchive(path string) (*archive.Archive, error) {
	if path == "" {
		return nil, fmt.Errorf("no archive configured, set archive.path or --archive")
	}
	return archive.Open(path)
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List available serial ports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := nibp.Ports()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
				return nil
			}
			for _, p := range ports {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.Name, p.Description)
			}
			return nil
		},
	}
}
