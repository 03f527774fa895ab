package sampler

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gowbic/adapters/model"
	"gowbic/adapters/rng"
	"gowbic/domain/core"
	"gowbic/domain/dataset"
	"gowbic/domain/wbic"
	"gowbic/ports"
)

// badSpec never produces a finite likelihood
type badSpec struct{ dim int }

func (b badSpec) ID() string               { return "always-nan" }
func (b badSpec) ParameterDim() int        { return b.dim }
func (b badSpec) ParameterNames() []string { return []string{"a", "b"} }

func (b badSpec) LogPrior(theta []float64) float64 { return 0 }

func (b badSpec) LogLikelihood(theta []float64, ds *dataset.Dataset) float64 {
	return math.NaN()
}

func (b badSpec) Transform() ports.ParameterTransform { return model.Identity(b.dim) }

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	src := rand.New(rand.NewPCG(99, 0))
	n := 60
	response := make([]float64, n)
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i)/10 - 3
		rows[i] = []float64{x}
		response[i] = 1 + 2*x + 0.5*src.NormFloat64()
	}
	ds, err := dataset.New("sampler-test", response, rows, []string{"x"})
	if err != nil {
		t.Fatalf("Failed to build dataset: %v", err)
	}
	return ds
}

func testConfig(seed uint64) wbic.RunConfig {
	cfg := wbic.DefaultRunConfig()
	cfg.Seed = seed
	cfg.Chains = 2
	cfg.WarmupDraws = 150
	cfg.RetainedDraws = 150
	return cfg
}

func testRequest(t *testing.T, seed uint64) ports.SampleRequest {
	t.Helper()
	spec, err := model.NewLinearRegression("lin-x", []int{0})
	if err != nil {
		t.Fatalf("Failed to build model: %v", err)
	}
	return ports.SampleRequest{
		Spec:    spec,
		Dataset: testDataset(t),
		Config:  testConfig(seed),
	}
}

// TestSampleShape tests chain count, draw counts, and trace metadata
func TestSampleShape(t *testing.T) {
	req := testRequest(t, 42)
	trace, err := NewTemperedMetropolis(rng.NewStreamAdapter()).Sample(context.Background(), req)
	if err != nil {
		t.Fatalf("Unexpected sampling error: %v", err)
	}

	if len(trace.Chains) != req.Config.Chains {
		t.Fatalf("Expected %d chains, got %d", req.Config.Chains, len(trace.Chains))
	}
	for i := range trace.Chains {
		if got := len(trace.Chains[i].Samples); got != req.Config.RetainedDraws {
			t.Errorf("Chain %d retained %d draws, expected %d", i, got, req.Config.RetainedDraws)
		}
		if trace.Chains[i].Proposed == 0 {
			t.Errorf("Chain %d recorded no proposals", i)
		}
	}
	if trace.Temperature != req.Dataset.Temperature() {
		t.Errorf("Trace temperature %f, expected dataset temperature %f", trace.Temperature, req.Dataset.Temperature())
	}
	if trace.Seed != 42 {
		t.Errorf("Trace seed %d, expected 42", trace.Seed)
	}
	if trace.TotalRetained() != req.Config.Chains*req.Config.RetainedDraws {
		t.Errorf("TotalRetained %d inconsistent with chain contents", trace.TotalRetained())
	}
}

// TestSampleDeterminism tests bit-identical replay under a fixed seed
func TestSampleDeterminism(t *testing.T) {
	sampler := NewTemperedMetropolis(rng.NewStreamAdapter())

	first, err := sampler.Sample(context.Background(), testRequest(t, 7))
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := sampler.Sample(context.Background(), testRequest(t, 7))
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if first.Fingerprint() != second.Fingerprint() {
		t.Error("Identical seeds must produce identical trace fingerprints")
	}

	a := first.PooledLogLikelihoods()
	b := second.PooledLogLikelihoods()
	if len(a) != len(b) {
		t.Fatalf("Pooled lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
			t.Fatalf("Draw %d differs at the bit level: %v vs %v", i, a[i], b[i])
		}
	}
	for d := range first.Chains[0].Samples[0].Theta {
		x := first.Chains[0].Samples[0].Theta[d]
		y := second.Chains[0].Samples[0].Theta[d]
		if math.Float64bits(x) != math.Float64bits(y) {
			t.Fatalf("Parameter %d differs at the bit level: %v vs %v", d, x, y)
		}
	}

	other, err := sampler.Sample(context.Background(), testRequest(t, 8))
	if err != nil {
		t.Fatalf("Third run failed: %v", err)
	}
	if other.Fingerprint() == first.Fingerprint() {
		t.Error("Different seeds should not replay the same trace")
	}
}

// TestSampleRecordsUntemperedLogLikelihood tests that stored values ignore
// the temperature even though the acceptance rule applies it
func TestSampleRecordsUntemperedLogLikelihood(t *testing.T) {
	req := testRequest(t, 11)
	trace, err := NewTemperedMetropolis(rng.NewStreamAdapter()).Sample(context.Background(), req)
	if err != nil {
		t.Fatalf("Unexpected sampling error: %v", err)
	}

	for i := range trace.Chains {
		for _, j := range []int{0, len(trace.Chains[i].Samples) / 2, len(trace.Chains[i].Samples) - 1} {
			sample := trace.Chains[i].Samples[j]
			recomputed := req.Spec.LogLikelihood(sample.Theta, req.Dataset)
			if math.Float64bits(recomputed) != math.Float64bits(sample.LogLikelihood) {
				t.Errorf("Chain %d draw %d stored %v, recomputation gives %v", i, j, sample.LogLikelihood, recomputed)
			}
		}
	}
}

// TestSampleAllChainsDivergent tests the convergence failure path
func TestSampleAllChainsDivergent(t *testing.T) {
	req := testRequest(t, 13)
	req.Spec = badSpec{dim: 2}

	_, err := NewTemperedMetropolis(rng.NewStreamAdapter()).Sample(context.Background(), req)
	if err == nil {
		t.Fatal("Expected a convergence error, got none")
	}
	if !errors.Is(err, core.ErrConvergence) {
		t.Errorf("Expected ErrConvergence, got %v", err)
	}
}

// TestSampleCancelled tests that cancellation is reported as such and never
// as a convergence failure
func TestSampleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTemperedMetropolis(rng.NewStreamAdapter()).Sample(ctx, testRequest(t, 17))
	if err == nil {
		t.Fatal("Expected a cancellation error, got none")
	}
	if !errors.Is(err, core.ErrSweepCancelled) {
		t.Errorf("Expected ErrSweepCancelled, got %v", err)
	}
	if errors.Is(err, core.ErrConvergence) {
		t.Error("Cancellation must not masquerade as a convergence failure")
	}
}

// TestSampleConfigGuards tests input validation
func TestSampleConfigGuards(t *testing.T) {
	sampler := NewTemperedMetropolis(rng.NewStreamAdapter())

	req := testRequest(t, 19)
	req.Spec = nil
	if _, err := sampler.Sample(context.Background(), req); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("Expected config error for nil spec, got %v", err)
	}

	req = testRequest(t, 19)
	req.Dataset = nil
	if _, err := sampler.Sample(context.Background(), req); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("Expected config error for nil dataset, got %v", err)
	}

	req = testRequest(t, 19)
	req.Config.Chains = 0
	if _, err := sampler.Sample(context.Background(), req); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("Expected config error for zero chains, got %v", err)
	}
}

// TestSampleAcceptanceAdaptation tests that warmup tuning lands the sampler
// in a workable acceptance band on an easy target
func TestSampleAcceptanceAdaptation(t *testing.T) {
	trace, err := NewTemperedMetropolis(rng.NewStreamAdapter()).Sample(context.Background(), testRequest(t, 23))
	if err != nil {
		t.Fatalf("Unexpected sampling error: %v", err)
	}

	for i := range trace.Chains {
		rate := trace.Chains[i].AcceptanceRate()
		if rate < 0.05 || rate > 0.6 {
			t.Errorf("Chain %d acceptance %.3f outside workable band", i, rate)
		}
		if trace.Chains[i].Flagged {
			t.Errorf("Chain %d flagged on a well-behaved target", i)
		}
	}
	if trace.FlaggedChainCount() != 0 {
		t.Errorf("Expected no flagged chains, got %d", trace.FlaggedChainCount())
	}
}
