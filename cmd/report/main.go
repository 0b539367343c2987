// Package main provides the report binary: risk reports for a reference
// entity or counterparty, and listings of contracts and obligations.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"swap-risk-lab/internal/app"
	"swap-risk-lab/internal/config"
	"swap-risk-lab/internal/exposure"
	"swap-risk-lab/internal/reporting"
)

type reportFlags struct {
	format string
	out    string
	ingest []string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &reportFlags{}

	root := &cobra.Command{
		Use:   "report",
		Short: "Render swap risk reports",
		Long: `report renders risk reports and listings from the configured store.

Formats are markdown (default), csv and json. With --narrative the report
includes a generated summary from the configured Ollama model; the summary
degrades to a fixed notice when the model is unreachable.`,
		SilenceUsage: true,
	}

	config.BindFlags(root.PersistentFlags())
	pf := root.PersistentFlags()
	pf.StringVarP(&flags.format, "format", "f", reporting.FormatMarkdown, "Output format: markdown, csv or json")
	pf.StringVarP(&flags.out, "out", "o", "", "Write to file instead of stdout")
	pf.Bool(config.KeyNarrative, false, "Include an LLM narrative summary")
	pf.StringSliceVar(&flags.ingest, "ingest", nil, "Files ingested before reporting (for the memory store)")

	root.AddCommand(
		newSubjectCmd(flags, exposure.KindEntity, "Risk report for a reference entity"),
		newSubjectCmd(flags, exposure.KindCounterparty, "Risk report for a counterparty"),
		newContractsCmd(flags),
		newObligationsCmd(flags),
	)
	return root
}

// withApp bootstraps the app for one subcommand run and releases it after.
func withApp(cmd *cobra.Command, flags *reportFlags, fn func(ctx context.Context, a *app.App) (string, error)) error {
	cfg, logger, err := app.Bootstrap(cmd.Flags())
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger, time.Now)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(flags.ingest) > 0 {
		summary, err := a.NewRunner().Run(ctx, flags.ingest)
		if err != nil {
			return err
		}
		if len(summary.Errors) > 0 {
			return fmt.Errorf("ingest %s: %w", summary.Errors[0].Path, summary.Errors[0].Err)
		}
	}

	text, err := fn(ctx, a)
	if err != nil {
		return err
	}
	if flags.out == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	}
	if err := os.WriteFile(flags.out, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", flags.out, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", flags.out)
	return nil
}

func newSubjectCmd(flags *reportFlags, kind, short string) *cobra.Command {
	return &cobra.Command{
		Use:   kind + " <name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) (string, error) {
				report, err := a.Reports.Generate(ctx, kind, args[0], a.Config.Narrative)
				if err != nil {
					return "", err
				}
				return reporting.Render(report, flags.format)
			})
		},
	}
}

func newContractsCmd(flags *reportFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "contracts",
		Short: "List stored contracts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) (string, error) {
				contracts, err := a.Stores.Store.ListContracts(ctx)
				if err != nil {
					return "", err
				}
				switch flags.format {
				case reporting.FormatMarkdown, "":
					return reporting.RenderContractsMarkdown(contracts), nil
				case reporting.FormatCSV:
					return reporting.RenderContractsCSV(contracts)
				case reporting.FormatJSON:
					return reporting.RenderJSON(contracts)
				}
				return "", fmt.Errorf("unknown format %q", flags.format)
			})
		},
	}
}

func newObligationsCmd(flags *reportFlags) *cobra.Command {
	var contractID string

	cmd := &cobra.Command{
		Use:   "obligations",
		Short: "List the obligations read view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) (string, error) {
				rows, err := a.Stores.Store.ObligationsView(ctx, contractID)
				if err != nil {
					return "", err
				}
				switch flags.format {
				case reporting.FormatMarkdown, "":
					return reporting.RenderObligationsMarkdown(rows), nil
				case reporting.FormatCSV:
					return reporting.RenderObligationsCSV(rows)
				case reporting.FormatJSON:
					return reporting.RenderJSON(rows)
				}
				return "", fmt.Errorf("unknown format %q", flags.format)
			})
		},
	}
	cmd.Flags().StringVar(&contractID, "contract", "", "Only rows of this contract id")
	return cmd
}
