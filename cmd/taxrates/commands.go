package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taxrates/taxrates-api/internal/app"
	"github.com/taxrates/taxrates-api/internal/config"
	"github.com/taxrates/taxrates-api/internal/logger"
)

// --- Global Command Variables ---
var (
	application *app.Application

	resolveZip    string
	resolveState  string
	resolveCity   string
	resolveCounty string

	zipDefaultState string

	seedEffectiveDate string
	seedOverwrite     bool

	historyLimit int

	rootCmd = &cobra.Command{
		Use:   "taxrates",
		Short: "Maintain and query the US sales tax rate datasets",
		Long: `taxrates scrapes official sales tax sources into a staging area,
validates and diffs the staged data against the committed datasets, and
promotes safe changes. It also resolves rates from the committed data.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	// --- Update Pipeline ---
	scrapeCmd = &cobra.Command{
		Use:   "scrape",
		Short: "Scrape every implemented state into the staging area",
		Args:  cobra.NoArgs,
		RunE:  runScrape, // Defined in cmd_pipeline.go
	}
	diffCmd = &cobra.Command{
		Use:   "diff",
		Short: "Compare staged datasets with the committed ones and write the diff report",
		Long: `Exit codes: 0 no changes or auto-deployable, 1 error, 2 needs review.`,
		Args:  cobra.NoArgs,
		RunE:  runDiff, // Defined in cmd_pipeline.go
	}
	gateCmd = &cobra.Command{
		Use:   "gate",
		Short: "Re-validate every staged dataset before it may be committed",
		Long: `Exit codes: 0 safe to commit, 1 validation failed, 2 needs manual review.`,
		Args:  cobra.NoArgs,
		RunE:  runGate, // Defined in cmd_pipeline.go
	}
	applyCmd = &cobra.Command{
		Use:   "apply",
		Short: "Promote staged datasets when the diff report allows it",
		Args:  cobra.NoArgs,
		RunE:  runApply, // Defined in cmd_pipeline.go
	}
	updateCmd = &cobra.Command{
		Use:   "update",
		Short: "Run scrape, diff, gate and apply in sequence",
		Args:  cobra.NoArgs,
		RunE:  runUpdate, // Defined in cmd_pipeline.go
	}
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List the most recently archived update runs",
		Args:  cobra.NoArgs,
		RunE:  runHistory, // Defined in cmd_pipeline.go
	}

	// --- Data ---
	resolveCmd = &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the sales tax rate for a ZIP code or a state, city and county",
		Args:  cobra.NoArgs,
		RunE:  runResolve, // Defined in cmd_data.go
	}
	statesCmd = &cobra.Command{
		Use:   "states",
		Short: "List the states with committed data",
		Args:  cobra.NoArgs,
		RunE:  runStates, // Defined in cmd_data.go
	}
	jurisdictionsCmd = &cobra.Command{
		Use:   "jurisdictions [state]",
		Short: "Print the committed jurisdictions of a state",
		Args:  cobra.ExactArgs(1),
		RunE:  runJurisdictions, // Defined in cmd_data.go
	}
	validateCmd = &cobra.Command{
		Use:   "validate [state...]",
		Short: "Validate the committed datasets",
		RunE:  runValidate, // Defined in cmd_data.go
	}
	zipRatesCmd = &cobra.Command{
		Use:   "zip-rates [csv file]",
		Short: "Import an Avalara ZIP5 rate export into the committed ZIP tables",
		Args:  cobra.ExactArgs(1),
		RunE:  runZipRates, // Defined in cmd_data.go
	}
	seedCmd = &cobra.Command{
		Use:   "seed [state...]",
		Short: "Write state-default datasets for states without scraped data",
		RunE:  runSeed, // Defined in cmd_data.go
	}
)

func init() {
	resolveCmd.Flags().StringVar(&resolveZip, "zip", "", "ZIP code")
	resolveCmd.Flags().StringVar(&resolveState, "state", "", "two-letter state code")
	resolveCmd.Flags().StringVar(&resolveCity, "city", "", "city name")
	resolveCmd.Flags().StringVar(&resolveCounty, "county", "", "county name")

	zipRatesCmd.Flags().StringVar(&zipDefaultState, "state", "", "state for rows without a State column")

	seedCmd.Flags().StringVar(&seedEffectiveDate, "effective-date", "", "effective date written to the metadata (default today)")
	seedCmd.Flags().BoolVar(&seedOverwrite, "overwrite", false, "replace existing datasets")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "number of runs to list")

	rootCmd.AddCommand(scrapeCmd, diffCmd, gateCmd, applyCmd, updateCmd, historyCmd)
	rootCmd.AddCommand(resolveCmd, statesCmd, jurisdictionsCmd, validateCmd, zipRatesCmd, seedCmd)
}

// setup loads the configuration and opens the application once per process.
func setup(cmd *cobra.Command, args []string) error {
	if application != nil {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.InitLogger(cfg.Stage)

	a, err := app.New(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	application = a
	return nil
}

// teardown flushes metrics and releases the application. It runs whether
// or not the command succeeded.
func teardown() {
	if application == nil {
		return
	}
	application.WriteMetrics()
	if err := application.Close(); err != nil {
		logger.Log.Warn("Failed to close application", zap.Error(err))
	}
	_ = logger.Sync()
}
