package testkit

import (
	"context"
	"errors"
	"math"
	"testing"

	"gowbic/app"
	"gowbic/domain/core"
	"gowbic/domain/wbic"
	"gowbic/ports"
)

func sweepConfig(seed uint64) wbic.RunConfig {
	cfg := wbic.DefaultRunConfig()
	cfg.Seed = seed
	cfg.Chains = 2
	cfg.WarmupDraws = 300
	cfg.RetainedDraws = 1500
	return cfg
}

func rankedWBIC(t *testing.T, ranking *wbic.Ranking, variantID string) float64 {
	t.Helper()
	for _, entry := range ranking.Entries {
		if entry.VariantID == core.VariantID(variantID) {
			return entry.WBIC
		}
	}
	t.Fatalf("Variant %s missing from ranking", variantID)
	return 0
}

// TestSelectionRecoversEffectiveSubset runs the full sweep on a design with
// five signal-carrying regressors out of ten and checks that the
// five-column variant carries the lowest WBIC in most replications
func TestSelectionRecoversEffectiveSubset(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping full selection sweep in short mode")
	}

	variantsPerSweep := 12 // linear-1..linear-10, student-t, ewma
	wins := 0
	seeds := []uint64{101, 202, 303}

	for _, seed := range seeds {
		ds, err := GenerateRegressionDataset(seed, 365, 10, 5)
		if err != nil {
			t.Fatalf("Seed %d: failed to generate dataset: %v", seed, err)
		}
		family, err := NestedVariantFamily(10)
		if err != nil {
			t.Fatalf("Seed %d: failed to build variant family: %v", seed, err)
		}
		if len(family) != variantsPerSweep {
			t.Fatalf("Expected %d variants, got %d", variantsPerSweep, len(family))
		}

		kit := NewTestKit()
		result, err := kit.SelectionRunner().RunSelection(context.Background(), app.SelectionRequest{
			Dataset:  ds,
			Variants: family,
			Config:   sweepConfig(seed),
		})
		if err != nil {
			t.Fatalf("Seed %d: sweep failed: %v", seed, err)
		}

		wantTemperature := 1.0 / math.Log(365.0)
		if result.Manifest.Temperature != wantTemperature {
			t.Errorf("Seed %d: temperature %v, expected exactly 1/ln(365) = %v", seed, result.Manifest.Temperature, wantTemperature)
		}

		for _, eval := range result.Evaluations {
			if eval.State != wbic.StateDone {
				t.Fatalf("Seed %d: variant %s ended %s: %s", seed, eval.VariantID, eval.State, eval.Error)
			}
			if !eval.Result.Diagnostics.Computed {
				t.Errorf("Seed %d: variant %s skipped diagnostics below the ceiling", seed, eval.VariantID)
			}
		}
		if len(result.Ranking.Entries) != variantsPerSweep {
			t.Fatalf("Seed %d: ranking has %d entries, expected %d", seed, len(result.Ranking.Entries), variantsPerSweep)
		}

		// Missing a strong effect must cost far more than one extra parameter
		under := rankedWBIC(t, result.Ranking, "linear-4")
		full := rankedWBIC(t, result.Ranking, "linear-5")
		if full >= under {
			t.Errorf("Seed %d: linear-5 (%.1f) should decisively beat linear-4 (%.1f)", seed, full, under)
		}
		over := rankedWBIC(t, result.Ranking, "linear-10")
		if full >= over {
			t.Errorf("Seed %d: linear-5 (%.1f) should beat the saturated linear-10 (%.1f)", seed, full, over)
		}

		best, ok := result.Ranking.Best()
		if !ok {
			t.Fatalf("Seed %d: empty ranking", seed)
		}
		if best.VariantID == "ewma-level" {
			t.Errorf("Seed %d: regressor-blind model won the sweep", seed)
		}
		if best.ParameterDim < 7 {
			t.Errorf("Seed %d: winner %s has dim %d, an under-specified model won", seed, best.VariantID, best.ParameterDim)
		}
		if best.VariantID == "linear-5" {
			wins++
		}
	}

	if wins < 2 {
		t.Errorf("linear-5 won %d of %d sweeps, expected a clear majority", wins, len(seeds))
	}
}

// TestSelectionDeterminism runs the same sweep twice on fresh kits and
// requires bit-identical scores and identical rankings
func TestSelectionDeterminism(t *testing.T) {
	run := func() *app.SelectionResult {
		ds, err := GenerateRegressionDataset(55, 120, 3, 2)
		if err != nil {
			t.Fatalf("Failed to generate dataset: %v", err)
		}
		family, err := NestedVariantFamily(3)
		if err != nil {
			t.Fatalf("Failed to build variant family: %v", err)
		}

		cfg := sweepConfig(55)
		cfg.WarmupDraws = 200
		cfg.RetainedDraws = 400

		result, err := NewTestKit().SelectionRunner().RunSelection(context.Background(), app.SelectionRequest{
			Dataset:  ds,
			Variants: family,
			Config:   cfg,
		})
		if err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}
		return result
	}

	first := run()
	second := run()

	if first.Manifest.Fingerprint != second.Manifest.Fingerprint {
		t.Error("Identical requests must produce identical sweep fingerprints")
	}

	if len(first.Evaluations) != len(second.Evaluations) {
		t.Fatalf("Evaluation counts differ: %d vs %d", len(first.Evaluations), len(second.Evaluations))
	}
	for i := range first.Evaluations {
		a, b := first.Evaluations[i], second.Evaluations[i]
		if a.VariantID != b.VariantID {
			t.Fatalf("Evaluation order differs at %d: %s vs %s", i, a.VariantID, b.VariantID)
		}
		if math.Float64bits(a.Result.WBIC) != math.Float64bits(b.Result.WBIC) {
			t.Errorf("Variant %s WBIC differs at the bit level: %v vs %v", a.VariantID, a.Result.WBIC, b.Result.WBIC)
		}
		if a.Result.TraceHash != b.Result.TraceHash {
			t.Errorf("Variant %s trace fingerprints differ", a.VariantID)
		}
	}

	for i := range first.Ranking.Entries {
		if first.Ranking.Entries[i].VariantID != second.Ranking.Entries[i].VariantID {
			t.Errorf("Ranking order differs at position %d", i)
		}
	}
}

// TestSelectionFailureIsolation mixes a variant that cannot converge into a
// healthy family and checks the sweep completes around it
func TestSelectionFailureIsolation(t *testing.T) {
	ds, err := GenerateRegressionDataset(77, 100, 2, 2)
	if err != nil {
		t.Fatalf("Failed to generate dataset: %v", err)
	}
	healthy, err := NestedVariantFamily(2)
	if err != nil {
		t.Fatalf("Failed to build variant family: %v", err)
	}
	variants := []ports.ModelSpec{healthy[0], &FailingSpec{SpecID: "broken", Dim: 2}, healthy[1]}

	cfg := sweepConfig(77)
	cfg.WarmupDraws = 150
	cfg.RetainedDraws = 300

	result, err := NewTestKit().SelectionRunner().RunSelection(context.Background(), app.SelectionRequest{
		Dataset:  ds,
		Variants: variants,
		Config:   cfg,
	})
	if err != nil {
		t.Fatalf("A single broken variant must not abort the sweep: %v", err)
	}

	if got := result.Evaluations[1].State; got != wbic.StateFailed {
		t.Errorf("Broken variant ended %s, expected failed", got)
	}
	if got := result.Evaluations[1].ErrorCode; got != "CONVERGENCE_ERROR" {
		t.Errorf("Broken variant has code %s, expected CONVERGENCE_ERROR", got)
	}
	for _, i := range []int{0, 2} {
		if result.Evaluations[i].State != wbic.StateDone {
			t.Errorf("Healthy variant %s ended %s: %s", result.Evaluations[i].VariantID, result.Evaluations[i].State, result.Evaluations[i].Error)
		}
	}
	if len(result.Ranking.Entries) != 2 {
		t.Errorf("Ranking has %d entries, expected the 2 healthy variants", len(result.Ranking.Entries))
	}
	if result.Manifest.CompletedCount != 2 || result.Manifest.FailedCount != 1 {
		t.Errorf("Manifest counts completed=%d failed=%d, expected 2/1", result.Manifest.CompletedCount, result.Manifest.FailedCount)
	}
}

// TestSelectionInsufficientDraws starves the retained draws below the floor
func TestSelectionInsufficientDraws(t *testing.T) {
	ds, err := GenerateRegressionDataset(88, 80, 2, 1)
	if err != nil {
		t.Fatalf("Failed to generate dataset: %v", err)
	}
	family, err := NestedVariantFamily(2)
	if err != nil {
		t.Fatalf("Failed to build variant family: %v", err)
	}

	cfg := sweepConfig(88)
	cfg.Chains = 1
	cfg.WarmupDraws = 50
	cfg.RetainedDraws = 30
	cfg.MinRetainedDraws = 200

	result, err := NewTestKit().SelectionRunner().RunSelection(context.Background(), app.SelectionRequest{
		Dataset:  ds,
		Variants: family,
		Config:   cfg,
	})
	if err != nil {
		t.Fatalf("Starved sweep should complete with failed variants: %v", err)
	}

	for _, eval := range result.Evaluations {
		if eval.State != wbic.StateFailed {
			t.Errorf("Variant %s ended %s, expected failed", eval.VariantID, eval.State)
		}
		if eval.ErrorCode != "INSUFFICIENT_SAMPLES" {
			t.Errorf("Variant %s has code %s, expected INSUFFICIENT_SAMPLES", eval.VariantID, eval.ErrorCode)
		}
	}
	if len(result.Ranking.Entries) != 0 {
		t.Errorf("Expected an empty ranking, got %d entries", len(result.Ranking.Entries))
	}
	if result.Manifest.FailedCount != len(family) {
		t.Errorf("Manifest failed count %d, expected %d", result.Manifest.FailedCount, len(family))
	}
}

// TestSelectionValidation tests that malformed requests abort before any
// sampling and leave the ledger untouched
func TestSelectionValidation(t *testing.T) {
	kit := NewTestKit()
	runner := kit.SelectionRunner()
	ctx := context.Background()

	ds, err := GenerateRegressionDataset(99, 80, 2, 1)
	if err != nil {
		t.Fatalf("Failed to generate dataset: %v", err)
	}
	family, err := NestedVariantFamily(2)
	if err != nil {
		t.Fatalf("Failed to build variant family: %v", err)
	}

	cases := []struct {
		name string
		req  app.SelectionRequest
	}{
		{"nil dataset", app.SelectionRequest{Variants: family, Config: sweepConfig(1)}},
		{"no variants", app.SelectionRequest{Dataset: ds, Config: sweepConfig(1)}},
		{"duplicate ids", app.SelectionRequest{Dataset: ds, Variants: []ports.ModelSpec{family[0], family[0]}, Config: sweepConfig(1)}},
		{"zero parallelism", app.SelectionRequest{Dataset: ds, Variants: family, Config: func() wbic.RunConfig {
			cfg := sweepConfig(1)
			cfg.Parallelism = 0
			return cfg
		}()}},
	}

	for _, tc := range cases {
		if _, err := runner.RunSelection(ctx, tc.req); !errors.Is(err, core.ErrConfigInvalid) {
			t.Errorf("%s: expected ErrConfigInvalid, got %v", tc.name, err)
		}
	}

	stored, err := kit.LedgerReaderAdapter().ListArtifacts(ctx, ports.ArtifactFilters{})
	if err != nil {
		t.Fatalf("Failed to list artifacts: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("Rejected sweeps must not write artifacts, found %d", len(stored))
	}
}

// TestSelectionCancellation tests the sweep-level abort path
func TestSelectionCancellation(t *testing.T) {
	ds, err := GenerateRegressionDataset(111, 80, 2, 1)
	if err != nil {
		t.Fatalf("Failed to generate dataset: %v", err)
	}
	family, err := NestedVariantFamily(2)
	if err != nil {
		t.Fatalf("Failed to build variant family: %v", err)
	}

	kit := NewTestKit()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = kit.SelectionRunner().RunSelection(ctx, app.SelectionRequest{
		Dataset:  ds,
		Variants: family,
		Config:   sweepConfig(111),
	})
	if !errors.Is(err, core.ErrSweepCancelled) {
		t.Errorf("Expected ErrSweepCancelled, got %v", err)
	}

	stored, err := kit.LedgerReaderAdapter().ListArtifacts(context.Background(), ports.ArtifactFilters{})
	if err != nil {
		t.Fatalf("Failed to list artifacts: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("Cancelled sweeps must not write artifacts, found %d", len(stored))
	}
}

// TestSelectionLedgerArtifacts walks the persisted audit trail of one sweep
func TestSelectionLedgerArtifacts(t *testing.T) {
	ds, err := GenerateRegressionDataset(123, 100, 2, 2)
	if err != nil {
		t.Fatalf("Failed to generate dataset: %v", err)
	}
	family, err := NestedVariantFamily(2)
	if err != nil {
		t.Fatalf("Failed to build variant family: %v", err)
	}
	family = family[:2] // linear-1, linear-2

	cfg := sweepConfig(123)
	cfg.WarmupDraws = 150
	cfg.RetainedDraws = 300

	kit := NewTestKit()
	ctx := context.Background()
	sweepID := core.SweepID("sweep-ledger-walk")

	result, err := kit.SelectionRunner().RunSelection(ctx, app.SelectionRequest{
		Dataset:  ds,
		Variants: family,
		Config:   cfg,
		SweepID:  sweepID,
	})
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.SweepID != sweepID {
		t.Errorf("Runner replaced the caller's sweep ID: %s", result.SweepID)
	}

	reader := kit.LedgerReaderAdapter()

	manifest, err := reader.GetSweepManifest(ctx, sweepID)
	if err != nil {
		t.Fatalf("Failed to load sweep manifest: %v", err)
	}
	if manifest.Fingerprint != result.Manifest.Fingerprint {
		t.Error("Persisted manifest fingerprint differs from the returned one")
	}
	if manifest.CompletedCount != 2 {
		t.Errorf("Persisted manifest records %d completions, expected 2", manifest.CompletedCount)
	}

	all, err := reader.GetArtifactsBySweep(ctx, sweepID)
	if err != nil {
		t.Fatalf("Failed to list sweep artifacts: %v", err)
	}
	// 2 results + 2 chain summaries + ranking + manifest
	if len(all) != 6 {
		t.Errorf("Expected 6 artifacts for the sweep, got %d", len(all))
	}

	kind := core.ArtifactWBICResult
	results, err := reader.ListArtifacts(ctx, ports.ArtifactFilters{SweepID: &sweepID, Kind: &kind})
	if err != nil {
		t.Fatalf("Failed to filter result artifacts: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 result artifacts, got %d", len(results))
	}

	only, err := reader.ListArtifacts(ctx, ports.ArtifactFilters{
		SweepID:    &sweepID,
		VariantIDs: []core.VariantID{"linear-1"},
	})
	if err != nil {
		t.Fatalf("Failed to filter by variant: %v", err)
	}
	if len(only) != 1 {
		t.Fatalf("Expected exactly the linear-1 result, got %d artifacts", len(only))
	}

	fetched, err := reader.GetArtifact(ctx, only[0].ID)
	if err != nil {
		t.Fatalf("Failed to fetch stored artifact: %v", err)
	}
	if fetched.Kind != core.ArtifactWBICResult {
		t.Errorf("Fetched artifact has kind %s", fetched.Kind)
	}

	if _, err := reader.GetArtifact(ctx, core.NewID()); !core.IsNotFoundError(err) {
		t.Errorf("Expected a not-found error for an unknown artifact, got %v", err)
	}

	rankings, err := reader.GetArtifactsByKind(ctx, core.ArtifactRanking, 0)
	if err != nil {
		t.Fatalf("Failed to list rankings: %v", err)
	}
	if len(rankings) != 1 {
		t.Errorf("Expected 1 ranking artifact, got %d", len(rankings))
	}
}
