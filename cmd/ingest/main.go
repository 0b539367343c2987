// Package main provides the ingest binary: it normalizes swap files,
// resolves their parties and persists each contract together with its
// derived obligations, triggers and instruments.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swap-risk-lab/internal/app"
	"swap-risk-lab/internal/config"
	"swap-risk-lab/internal/ingestion"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var watchDir string

	cmd := &cobra.Command{
		Use:   "ingest [paths...]",
		Short: "Ingest swap contract files",
		Long: `ingest reads CSV, delimited TXT, JSON and XLSX files (or directories of them),
normalizes every row into a swap contract and stores it with its derived
obligations.

With --watch the directory is ingested once and then watched for new or
changed files until interrupted.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && watchDir == "" {
				return errors.New("nothing to ingest: pass files or directories, or --watch")
			}

			cfg, logger, err := app.Bootstrap(cmd.Flags())
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger, time.Now)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if len(args) > 0 {
				summary, err := a.NewRunner().Run(ctx, args)
				if err != nil {
					return err
				}
				printSummary(out, summary)
				if len(summary.Errors) > 0 && watchDir == "" {
					return fmt.Errorf("%d file(s) could not be ingested", len(summary.Errors))
				}
			}

			if watchDir == "" {
				return nil
			}
			logger.Info("watching directory", zap.String("dir", watchDir))
			err = a.NewWatcher(watchDir, func(res *ingestion.FileResult) {
				printFile(out, res)
			}).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	config.BindFlags(cmd.PersistentFlags())
	cmd.Flags().StringVar(&watchDir, "watch", "", "Directory to watch for new files")
	cmd.Flags().Int(config.KeyWorkers, 1, "Files ingested concurrently")
	cmd.Flags().String(config.KeyFieldMap, "", "YAML file overriding the column to field mapping")
	return cmd
}

func printSummary(w io.Writer, s *ingestion.RunSummary) {
	fmt.Fprintf(w, "Run %s\n", s.RunID)
	for _, f := range s.Files {
		printFile(w, f)
	}
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  %s: %v\n", e.Path, e.Err)
	}
	fmt.Fprintf(w, "Total: %d persisted, %d failed, %d skipped, %d file errors\n",
		s.Persisted(), s.Failed(), s.Skipped(), len(s.Errors))
}

func printFile(w io.Writer, f *ingestion.FileResult) {
	fmt.Fprintf(w, "  %s: %d rows, %d persisted, %d failed, %d skipped (%d obligations, %d triggers) in %s\n",
		f.Path, f.Rows, len(f.Persisted), len(f.Failed), len(f.Skipped),
		f.Obligations, f.Triggers, f.Duration.Round(time.Millisecond))
	for _, fail := range f.Failed {
		fmt.Fprintf(w, "    failed %s: %v\n", fail.ContractID, fail.Err)
	}
	for _, sk := range f.Skipped {
		fmt.Fprintf(w, "    skipped row %d: %s %s\n", sk.Index, sk.Reason, sk.Detail)
	}
}
