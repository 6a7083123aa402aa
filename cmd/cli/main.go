package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/yurifrl/kupa/pkg/config"
	"github.com/yurifrl/kupa/pkg/importer"
	"github.com/yurifrl/kupa/pkg/models"
	"github.com/yurifrl/kupa/pkg/parser"
	"github.com/yurifrl/kupa/pkg/source"
)

var (
	cliFilters filters
	cfgFile    string
)

var rootCmd = &cobra.Command{
	Use:   "kupa",
	Short: "Turn register transaction reports into sales tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Show help when no subcommand is provided
		return cmd.Help()
	},
	SilenceUsage: true,
}

// app bundles what every subcommand needs once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	parser *parser.Parser
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Build(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cliFilters.validate(); err != nil {
		return nil, err
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "kupa",
		Level:           cfg.Level(),
	})
	p, err := parser.FromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, parser: p}, nil
}

// load reads every source, parses each file and merges the results. Files
// that cannot be parsed are logged and skipped.
func (a *app) load(ctx context.Context, specs []string) ([]*models.Transaction, error) {
	loader := source.NewLoader(a.logger)

	var sets [][]*models.Transaction
	for _, spec := range specs {
		files, err := loader.Load(ctx, spec)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			txns, err := a.parser.ProcessBytes(f.Data, f.Name)
			if err != nil {
				a.logger.Warn("failed to process file", "error", err, "file", f.Name)
				continue
			}
			a.logger.Debug("processed file", "file", f.Name, "transactions", len(txns))
			sets = append(sets, txns)
		}
	}

	txns := importer.New(a.logger).Combine(sets...)
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].Timestamp.Before(txns[j].Timestamp)
	})
	return cliFilters.apply(txns), nil
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("layout", "", "Report layout: auto, labeled or positional")
	rootCmd.PersistentFlags().String("store", "", "Row store driver: memory, postgres or sheets")

	// Filter flags (global)
	rootCmd.PersistentFlags().StringVar(&cliFilters.startDate, "start", "", "Start date (YYYY-MM-DD)")
	rootCmd.PersistentFlags().StringVar(&cliFilters.endDate, "end", "", "End date (YYYY-MM-DD)")
	rootCmd.PersistentFlags().Float64Var(&cliFilters.minAmount, "min", 0, "Minimum transaction total")
	rootCmd.PersistentFlags().Float64Var(&cliFilters.maxAmount, "max", 0, "Maximum transaction total")
	rootCmd.PersistentFlags().StringVar(&cliFilters.item, "item", "", "Filter by item name (case insensitive)")

	convertCmd.Flags().String("table", "rows", "Table to print: daily, items, transactions or rows")
	historyCmd.Flags().String("table", "rows", "Table to print: daily, items, transactions or rows")
	exportCmd.Flags().StringP("workbook", "o", "kupa.xlsx", "Workbook to write")
	syncCmd.Flags().Bool("dry-run", false, "Only show what would be appended")
	ynabCmd.Flags().Bool("dry-run", false, "Only show which days would be posted")
	dirCmd.Flags().StringP("output", "o", "", "Output directory (default next to each report)")

	rootCmd.AddCommand(convertCmd, exportCmd, syncCmd, historyCmd, ynabCmd, inspectCmd, runCmd, dirCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
