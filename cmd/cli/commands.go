package main

import (
	"fmt"
	"os"

	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/yurifrl/kupa/pkg/executors"
	"github.com/yurifrl/kupa/pkg/models"
	"github.com/yurifrl/kupa/pkg/parser"
	"github.com/yurifrl/kupa/pkg/plan"
	"github.com/yurifrl/kupa/pkg/report"
	"github.com/yurifrl/kupa/pkg/rows"
	"github.com/yurifrl/kupa/pkg/service"
	"github.com/yurifrl/kupa/pkg/source"
	"github.com/yurifrl/kupa/pkg/store"
	"github.com/yurifrl/kupa/pkg/workbook"
	"github.com/yurifrl/kupa/pkg/ynab"
)

var convertCmd = &cobra.Command{
	Use:   "convert [flags] <source>...",
	Short: "Print a table of the given reports as CSV",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		txns, err := a.load(cmd.Context(), args)
		if err != nil {
			return err
		}
		table, _ := cmd.Flags().GetString("table")
		out, err := cliFilters.renderTable(table, txns)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [flags] <source>...",
	Short: "Write the daily, transactions, items and rows sheets to a workbook",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		txns, err := a.load(cmd.Context(), args)
		if err != nil {
			return err
		}
		path, _ := cmd.Flags().GetString("workbook")
		if err := writeWorkbook(path, txns); err != nil {
			return err
		}
		a.logger.Info("wrote workbook", "path", path, "transactions", len(txns))
		return nil
	},
}

func writeWorkbook(path string, txns []*models.Transaction) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	if err := workbook.Write(f, txns); err != nil {
		f.Close()
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return f.Close()
}

var syncCmd = &cobra.Command{
	Use:   "sync [flags] <source>...",
	Short: "Append the rows of the given reports to the configured store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		txns, err := a.load(cmd.Context(), args)
		if err != nil {
			return err
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return a.sync(cmd, rows.Flatten(txns), dryRun)
	},
}

func (a *app) sync(cmd *cobra.Command, local []rows.Row, dryRun bool) error {
	ctx := cmd.Context()
	st, err := store.Open(ctx, a.cfg.Store, a.logger)
	if err != nil {
		return err
	}
	defer st.Close()

	exec := executors.New(a.logger, a.cfg, st, nil)
	exec.SetOutput(cmd.OutOrStdout())
	if dryRun {
		_, err := exec.Plan(ctx, local)
		return err
	}
	_, err = exec.Apply(ctx, local)
	return err
}

var historyCmd = &cobra.Command{
	Use:   "history [flags]",
	Short: "Print a table built from every row in the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		st, err := store.Open(cmd.Context(), a.cfg.Store, a.logger)
		if err != nil {
			return err
		}
		defer st.Close()

		stored, err := st.ReadAll(cmd.Context())
		if err != nil {
			return err
		}
		txns := cliFilters.apply(rows.Unflatten(stored))
		table, _ := cmd.Flags().GetString("table")
		out, err := cliFilters.renderTable(table, txns)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var ynabCmd = &cobra.Command{
	Use:   "ynab [flags] <source>...",
	Short: "Post daily sales totals to a YNAB account",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		if a.cfg.YNAB.Token == "" {
			return fmt.Errorf("ynab token not configured (KUPA_YNAB_TOKEN)")
		}
		txns, err := a.load(cmd.Context(), args)
		if err != nil {
			return err
		}
		daily := report.DailySummary(txns)

		exec := executors.New(a.logger, a.cfg, nil, ynab.New(a.cfg.YNAB.Token))
		exec.SetOutput(cmd.OutOrStdout())
		if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
			_, err := exec.PlanIncome(daily)
			return err
		}
		_, err = exec.ApplyIncome(daily)
		return err
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] <source>",
	Short: "Pretty print what the parser recovers from a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		files, err := source.NewLoader(a.logger).Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, f := range files {
			fmt.Fprintf(out, "== %s\n", f.Name)
			res, err := a.parser.Parse(f.Data)
			if err != nil {
				a.logger.Warn("failed to parse report", "error", err, "file", f.Name)
				continue
			}
			pp.Fprintln(out, res)
		}
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run [flags] <plan_file>",
	Short: "Execute a YAML run plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("layout") {
			a.cfg.Layout = p.Layout
			if a.parser, err = parser.FromConfig(a.cfg, a.logger); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run plan %s\n", args[0])
		p.Print(out)

		txns, err := a.load(cmd.Context(), p.Sources)
		if err != nil {
			return err
		}
		if p.Outputs.Workbook != "" {
			if err := writeWorkbook(p.Outputs.Workbook, txns); err != nil {
				return err
			}
			a.logger.Info("wrote workbook", "path", p.Outputs.Workbook)
		}
		if p.Outputs.CSV != "" {
			data, err := cliFilters.renderTable(p.Outputs.Table, txns)
			if err != nil {
				return err
			}
			if err := os.WriteFile(p.Outputs.CSV, data, 0o644); err != nil {
				return fmt.Errorf("error writing csv: %w", err)
			}
			a.logger.Info("wrote csv", "path", p.Outputs.CSV, "table", p.Outputs.Table)
		}
		if p.Sync {
			return a.sync(cmd, rows.Flatten(txns), false)
		}
		return nil
	},
}

var dirCmd = &cobra.Command{
	Use:   "dir [flags] <directory>",
	Short: "Convert every report in a directory into its own workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		written, err := service.NewProcessor(a.cfg, a.parser, a.logger).ProcessDirectory(args[0])
		if err != nil {
			return err
		}
		for _, path := range written {
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		return nil
	},
}
