package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gowbic/adapters/api"
	"gowbic/adapters/estimator"
	"gowbic/adapters/loader"
	"gowbic/adapters/postgres"
	"gowbic/adapters/rng"
	"gowbic/adapters/sampler"
	"gowbic/app"
	"gowbic/domain/core"
	"gowbic/domain/dataset"
	"gowbic/domain/wbic"
	"gowbic/internal/config"
	"gowbic/internal/migration"
	"gowbic/internal/testkit"
	"gowbic/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/montanaflynn/stats"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gowbic",
		Short: "WBIC model selection over tempered posterior sampling",
	}

	rootCmd.AddCommand(
		newSweepCmd(),
		newServeCmd(),
		newReplayCmd(),
		newMigrateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// sweepOptions bundles every knob the sweep command exposes
type sweepOptions struct {
	dataFile   string
	response   string
	timeColumn string
	sheet      string
	regressors []string
	name       string

	observations int
	columns      int
	effective    int

	seed        uint64
	chains      int
	warmup      int
	draws       int
	parallelism int
	maxSubset   int

	databaseURL string
	jsonOut     string
}

func newSweepCmd() *cobra.Command {
	var opts sweepOptions

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a WBIC model selection sweep",
		Long: `Evaluate a family of model variants against one dataset and rank them by WBIC.

Without --data a seeded synthetic regression design is generated, so the
command is self-contained: only the first --effective regressors carry
signal and the ranking should recover that subset.

With --database-url (or DATABASE_URL) artifacts are persisted to postgres
and become visible to the serve command; otherwise the sweep runs against
an in-memory ledger and only prints its results.

Example: gowbic sweep --data sales.csv --response sales --seed 42 --chains 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweepCmd(cmd.Context(), opts)
		},
	}

	// Environment-backed settings become flag defaults, so flags override
	// the environment and both override the code defaults.
	defaults := config.SamplingFromEnv().RunConfig()
	dataDefaults := config.DataFromEnv()

	cmd.Flags().StringVar(&opts.dataFile, "data", dataDefaults.DatasetFile, "CSV or Excel file to load (empty generates synthetic data)")
	cmd.Flags().StringVar(&opts.response, "response", dataDefaults.ResponseColumn, "Response column header (required with --data)")
	cmd.Flags().StringVar(&opts.timeColumn, "time-column", dataDefaults.TimeColumn, "Optional timestamp column header")
	cmd.Flags().StringVar(&opts.sheet, "sheet", dataDefaults.SheetName, "Excel sheet name (default first sheet)")
	cmd.Flags().StringSliceVar(&opts.regressors, "regressors", nil, "Explicit regressor columns (default every numeric column)")
	cmd.Flags().StringVar(&opts.name, "name", "", "Dataset label (default file name)")

	cmd.Flags().IntVar(&opts.observations, "observations", 200, "Synthetic observations")
	cmd.Flags().IntVar(&opts.columns, "columns", 5, "Synthetic regressor columns")
	cmd.Flags().IntVar(&opts.effective, "effective", 3, "Synthetic columns that carry signal")

	cmd.Flags().Uint64Var(&opts.seed, "seed", defaults.Seed, "Base seed for deterministic sampling")
	cmd.Flags().IntVar(&opts.chains, "chains", defaults.Chains, "Chains per variant")
	cmd.Flags().IntVar(&opts.warmup, "warmup", defaults.WarmupDraws, "Warmup draws per chain (discarded)")
	cmd.Flags().IntVar(&opts.draws, "draws", defaults.RetainedDraws, "Retained draws per chain")
	cmd.Flags().IntVar(&opts.parallelism, "parallelism", defaults.Parallelism, "Variants sampling at once")
	cmd.Flags().IntVar(&opts.maxSubset, "max-subset", 0, "Largest nested regressor subset (0 = all columns)")

	cmd.Flags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres ledger DSN (empty = in-memory)")
	cmd.Flags().StringVar(&opts.jsonOut, "json-out", "", "Write the full selection result to this JSON file")

	return cmd
}

func runSweepCmd(ctx context.Context, opts sweepOptions) error {
	cfg := config.SamplingFromEnv().RunConfig()
	cfg.Seed = opts.seed
	cfg.Chains = opts.chains
	cfg.WarmupDraws = opts.warmup
	cfg.RetainedDraws = opts.draws
	cfg.Parallelism = opts.parallelism

	ds, err := buildDataset(ctx, opts)
	if err != nil {
		return err
	}

	maxSubset := opts.maxSubset
	if maxSubset <= 0 || maxSubset > ds.RegressorCount() {
		maxSubset = ds.RegressorCount()
	}
	variants, err := testkit.NestedVariantFamily(maxSubset)
	if err != nil {
		return err
	}

	ledger, cleanup, err := openLedger(ctx, opts.databaseURL)
	if err != nil {
		return err
	}
	defer cleanup()

	runner := app.NewSelectionRunner(
		sampler.NewTemperedMetropolis(rng.NewStreamAdapter()),
		estimator.NewWBICEstimator(),
		ledger,
	)

	fmt.Printf("Running sweep: %d variants, %d observations, %d chains x %d draws each...\n",
		len(variants), ds.ObservationCount(), cfg.Chains, cfg.RetainedDraws)

	result, err := runner.RunSelection(ctx, app.SelectionRequest{
		Dataset:  ds,
		Variants: variants,
		Config:   cfg,
	})
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	printSelectionResult(result)

	if opts.jsonOut != "" {
		jsonData, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		if err := os.WriteFile(opts.jsonOut, jsonData, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.jsonOut, err)
		}
		fmt.Printf("\nFull result saved to %s\n", opts.jsonOut)
	}

	return nil
}

// buildDataset loads the tabular file when one is given, otherwise generates
// the seeded synthetic design
func buildDataset(ctx context.Context, opts sweepOptions) (*dataset.Dataset, error) {
	if opts.dataFile == "" {
		fmt.Printf("Generating synthetic design: seed %d, %d observations, %d regressors (%d effective)\n",
			opts.seed, opts.observations, opts.columns, opts.effective)
		return testkit.GenerateRegressionDataset(opts.seed, opts.observations, opts.columns, opts.effective)
	}

	return loader.NewTabularLoader().LoadDataset(ctx, opts.dataFile, ports.LoadOptions{
		DatasetName:      opts.name,
		ResponseColumn:   opts.response,
		TimeColumn:       opts.timeColumn,
		RegressorColumns: opts.regressors,
		SheetName:        opts.sheet,
	})
}

// openLedger selects the artifact store: postgres when a DSN is supplied
// (schema migrated on connect), the in-memory adapter otherwise
func openLedger(ctx context.Context, databaseURL string) (ports.LedgerPort, func(), error) {
	if databaseURL == "" {
		return testkit.NewInMemoryLedgerAdapter(), func() {}, nil
	}

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres.NewLedgerRepository(db), func() { db.Close() }, nil
}

func printSelectionResult(result *app.SelectionResult) {
	manifest := result.Manifest

	fmt.Printf("\n=== MODEL SELECTION RESULTS ===\n")
	fmt.Printf("Sweep ID: %s\n", result.SweepID)
	fmt.Printf("Dataset: %s (fingerprint %s)\n", manifest.DatasetID, manifest.DatasetFingerprint)
	fmt.Printf("Temperature: %.6f (n=%d)\n", manifest.Temperature, manifest.ObservationCount)
	fmt.Printf("Seed: %d\n", manifest.Seed)
	fmt.Printf("Runtime: %d ms\n", result.RuntimeMs)
	fmt.Printf("Variants: %d completed, %d failed, %d cancelled of %d\n",
		manifest.CompletedCount, manifest.FailedCount, manifest.CancelledCount, manifest.VariantCount)

	var wbics []float64
	for _, eval := range result.Evaluations {
		if eval.State == wbic.StateDone && eval.Result != nil {
			wbics = append(wbics, eval.Result.WBIC)
		}
	}
	if len(wbics) > 1 {
		median, _ := stats.Median(wbics)
		lo, _ := stats.Min(wbics)
		hi, _ := stats.Max(wbics)
		fmt.Printf("WBIC across completed: median %.4f, range [%.4f, %.4f]\n", median, lo, hi)
	}

	if len(result.Ranking.Entries) > 0 {
		fmt.Printf("\n=== RANKING (ascending WBIC) ===\n")
		for _, entry := range result.Ranking.Entries {
			fmt.Printf("%2d. %-24s WBIC %12.4f   dWBIC %10.4f   dim %d\n",
				entry.Rank, entry.VariantID, entry.WBIC, entry.DeltaWBIC, entry.ParameterDim)
		}
	}

	fmt.Printf("\n=== VARIANT DETAILS ===\n")
	for _, eval := range result.Evaluations {
		if eval.State == wbic.StateDone && eval.Result != nil {
			res := eval.Result
			fmt.Printf("%-24s WBIC %.4f +/- %.4f (%d draws)", eval.VariantID, res.WBIC, res.StandardError, res.RetainedDraws)
			if res.Diagnostics.Computed {
				fmt.Printf("  minESS %.0f  maxRhat %.4f", res.Diagnostics.MinESS, res.Diagnostics.MaxRHat)
			} else {
				fmt.Printf("  diagnostics skipped (%s)", res.Diagnostics.SkipReason)
			}
			fmt.Println()
			continue
		}
		fmt.Printf("%-24s %s", eval.VariantID, eval.State)
		if eval.Error != "" {
			fmt.Printf(" (%s): %s", eval.ErrorCode, eval.Error)
		}
		fmt.Println()
	}

	if best, ok := result.Ranking.Best(); ok {
		fmt.Printf("\nSelected model: %s (WBIC %.4f, %d parameters)\n", best.VariantID, best.WBIC, best.ParameterDim)
	} else {
		fmt.Printf("\nNo variant completed; nothing to select\n")
	}
}

func newServeCmd() *cobra.Command {
	var port string
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve sweep results over HTTP",
		Long: `Start the read-only results API backed by the configured ledger.

Configuration comes from the environment (PORT, DATABASE_URL); flags
override. Without a database URL the server runs against an empty
in-memory ledger, which is only useful for smoke-testing the endpoints.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, databaseURL)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Listen port (default PORT env or 8080)")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres ledger DSN (default DATABASE_URL env)")

	return cmd
}

func runServe(ctx context.Context, port, databaseURL string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if port == "" {
		port = cfg.Server.Port
	}
	if databaseURL == "" {
		databaseURL = cfg.Database.URL
	}

	ledger, cleanup, err := openLedger(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer cleanup()

	if databaseURL == "" {
		fmt.Println("No database configured; serving an empty in-memory ledger")
	}

	server := api.NewServer(app.NewSweepReader(ledger))
	srv := &http.Server{Addr: ":" + port, Handler: server.Router()}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The listener and the shutdown watcher are joined so the process exits
	// only after in-flight requests drain
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fmt.Printf("Serving sweep results on http://localhost:%s\n", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newReplayCmd() *cobra.Command {
	var opts sweepOptions

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Verify a synthetic sweep reproduces bit for bit",
		Long: `Run the same synthetic sweep twice with one seed and compare every result.

The comparison covers sweep fingerprints, per-variant WBIC and standard
error at the bit level, trace hashes, and ranking order. Any difference
means sampling has picked up run-dependent state.

Example: gowbic replay --seed 42 --observations 150`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts)
		},
	}

	defaults := wbic.DefaultRunConfig()

	cmd.Flags().Uint64Var(&opts.seed, "seed", defaults.Seed, "Base seed for both runs")
	cmd.Flags().IntVar(&opts.observations, "observations", 150, "Synthetic observations")
	cmd.Flags().IntVar(&opts.columns, "columns", 4, "Synthetic regressor columns")
	cmd.Flags().IntVar(&opts.effective, "effective", 2, "Synthetic columns that carry signal")
	cmd.Flags().IntVar(&opts.chains, "chains", 2, "Chains per variant")
	cmd.Flags().IntVar(&opts.warmup, "warmup", 200, "Warmup draws per chain")
	cmd.Flags().IntVar(&opts.draws, "draws", 400, "Retained draws per chain")
	cmd.Flags().IntVar(&opts.parallelism, "parallelism", defaults.Parallelism, "Variants sampling at once")

	return cmd
}

func runReplay(ctx context.Context, opts sweepOptions) error {
	cfg := wbic.DefaultRunConfig()
	cfg.Seed = opts.seed
	cfg.Chains = opts.chains
	cfg.WarmupDraws = opts.warmup
	cfg.RetainedDraws = opts.draws
	cfg.Parallelism = opts.parallelism

	ds, err := testkit.GenerateRegressionDataset(opts.seed, opts.observations, opts.columns, opts.effective)
	if err != nil {
		return err
	}
	variants, err := testkit.NestedVariantFamily(ds.RegressorCount())
	if err != nil {
		return err
	}

	fmt.Printf("Replaying sweep with seed %d (%d variants, %d observations)...\n",
		opts.seed, len(variants), ds.ObservationCount())

	runs := make([]*app.SelectionResult, 2)
	for i := range runs {
		runner := app.NewSelectionRunner(
			sampler.NewTemperedMetropolis(rng.NewStreamAdapter()),
			estimator.NewWBICEstimator(),
			testkit.NewInMemoryLedgerAdapter(),
		)
		result, err := runner.RunSelection(ctx, app.SelectionRequest{
			Dataset:  ds,
			Variants: variants,
			Config:   cfg,
		})
		if err != nil {
			return fmt.Errorf("run %d failed: %w", i+1, err)
		}
		runs[i] = result
		fmt.Printf("  Run %d: %d completed in %d ms\n", i+1, result.Manifest.CompletedCount, result.RuntimeMs)
	}

	if err := compareSweeps(runs[0], runs[1]); err != nil {
		return fmt.Errorf("replay check failed: %w", err)
	}

	fmt.Printf("\n✓ Replay check passed: %d variants identical across runs\n", len(runs[0].Evaluations))
	fmt.Printf("Sweep fingerprint: %s\n", runs[0].Manifest.Fingerprint)
	return nil
}

// compareSweeps demands bit-level agreement between two runs of one sweep
func compareSweeps(a, b *app.SelectionResult) error {
	if a.Manifest.Fingerprint != b.Manifest.Fingerprint {
		return fmt.Errorf("%w: sweep fingerprints differ: %s vs %s",
			core.ErrFingerprintMismatch, a.Manifest.Fingerprint, b.Manifest.Fingerprint)
	}
	if len(a.Evaluations) != len(b.Evaluations) {
		return fmt.Errorf("evaluation counts differ: %d vs %d", len(a.Evaluations), len(b.Evaluations))
	}

	for i := range a.Evaluations {
		ea, eb := a.Evaluations[i], b.Evaluations[i]
		if ea.VariantID != eb.VariantID {
			return fmt.Errorf("evaluation %d variant differs: %s vs %s", i, ea.VariantID, eb.VariantID)
		}
		if ea.State != eb.State {
			return fmt.Errorf("variant %s state differs: %s vs %s", ea.VariantID, ea.State, eb.State)
		}
		if ea.Result == nil || eb.Result == nil {
			continue
		}
		if math.Float64bits(ea.Result.WBIC) != math.Float64bits(eb.Result.WBIC) {
			return fmt.Errorf("variant %s WBIC differs: %v vs %v", ea.VariantID, ea.Result.WBIC, eb.Result.WBIC)
		}
		if math.Float64bits(ea.Result.StandardError) != math.Float64bits(eb.Result.StandardError) {
			return fmt.Errorf("variant %s standard error differs: %v vs %v",
				ea.VariantID, ea.Result.StandardError, eb.Result.StandardError)
		}
		if ea.Result.TraceHash != eb.Result.TraceHash {
			return fmt.Errorf("variant %s trace hash differs: %s vs %s",
				ea.VariantID, ea.Result.TraceHash, eb.Result.TraceHash)
		}
	}

	if len(a.Ranking.Entries) != len(b.Ranking.Entries) {
		return fmt.Errorf("ranking lengths differ: %d vs %d", len(a.Ranking.Entries), len(b.Ranking.Entries))
	}
	for i := range a.Ranking.Entries {
		if a.Ranking.Entries[i].VariantID != b.Ranking.Entries[i].VariantID {
			return fmt.Errorf("rank %d differs: %s vs %s",
				i+1, a.Ranking.Entries[i].VariantID, b.Ranking.Entries[i].VariantID)
		}
	}

	return nil
}

func newMigrateCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the artifact ledger schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				return fmt.Errorf("no database URL: set --database-url or DATABASE_URL")
			}
			return runMigrate(cmd.Context(), databaseURL)
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres DSN")

	return cmd
}

func runMigrate(ctx context.Context, databaseURL string) error {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		return err
	}

	fmt.Printf("Schema version %s applied\n", runner.Version())
	return nil
}
