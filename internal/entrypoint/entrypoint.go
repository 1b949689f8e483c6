package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"notebooklm_connector/internal/app"
	"notebooklm_connector/internal/cli"
	"notebooklm_connector/internal/crawler"
	"notebooklm_connector/internal/logging"
	"notebooklm_connector/internal/report"
	"notebooklm_connector/internal/tui"
)

// Execute runs the command line in args (including the program name) and
// returns the process exit code.
func Execute(args []string) (int, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, args, os.Stdout, os.Stderr, nil)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer, fetcher crawler.Fetcher) (int, error) {
	inv, err := cli.ParseArgs(args[1:])
	if err != nil {
		var help cli.HelpError
		if errors.As(err, &help) {
			fmt.Fprint(stdout, help.Text)
			return 0, nil
		}
		var exitErr cli.ExitError
		if errors.As(err, &exitErr) {
			cli.Usage(stderr)
			return exitErr.Code, exitErr.Err
		}
		return 1, err
	}

	if inv.Command == cli.CommandInitConfig {
		res, err := tui.RunInitConfig(inv.ConfigPath, inv.Accessible)
		if err != nil {
			return 1, err
		}
		if res.Saved {
			fmt.Fprintf(stdout, "Wrote %s\n", res.Path)
		}
		return 0, nil
	}

	log := logging.New(inv.Verbose, stderr)
	runner := &app.Runner{Log: log, Out: stdout, Fetcher: fetcher}
	rep, err := runner.Run(ctx, inv.Options)
	if err != nil {
		return 1, err
	}
	log.Debug(report.FormatPipelineSummary(rep))

	if inv.ReportPath != "" {
		if err := report.Write(rep, inv.ReportPath); err != nil {
			return 1, fmt.Errorf("write report: %w", err)
		}
		log.WithField("path", inv.ReportPath).Info("report written")
	}
	return 0, nil
}
