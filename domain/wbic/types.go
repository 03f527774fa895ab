package wbic

import (
	"fmt"
	"math"
	"sort"

	"gowbic/domain/core"
)

// ============================================================================
// STABLE PRIMITIVES (Canonical, never change)
// ============================================================================

// PosteriorSample is one retained draw from a tempered posterior.
// LogLikelihood is the UNTEMPERED log-likelihood at Theta: sampling happens
// against prior(theta) * likelihood(theta)^t, but WBIC averages the
// untempered value, so it is recorded at draw time.
type PosteriorSample struct {
	Theta         []float64
	LogLikelihood float64
}

// ChainTrace holds the retained draws and accounting for a single chain.
// Warmup draws are already discarded; Samples contains retained draws only,
// in the order they were produced.
type ChainTrace struct {
	Index       int
	Samples     []PosteriorSample
	Accepted    int
	Proposed    int
	Divergences int
	Flagged     bool // divergence rate exceeded the configured threshold
}

// AcceptanceRate returns accepted/proposed for the whole chain run
func (c *ChainTrace) AcceptanceRate() float64 {
	if c.Proposed == 0 {
		return 0
	}
	return float64(c.Accepted) / float64(c.Proposed)
}

// DivergenceRate returns divergences/proposed for the whole chain run
func (c *ChainTrace) DivergenceRate() float64 {
	if c.Proposed == 0 {
		return 0
	}
	return float64(c.Divergences) / float64(c.Proposed)
}

// Trace is the complete sampling record for one model variant: every chain's
// retained draws plus the identity needed to reproduce them. It is produced
// by one sampler invocation and consumed by the estimator.
type Trace struct {
	VariantID     core.VariantID
	Chains        []ChainTrace
	Seed          uint64
	Temperature   float64
	WarmupDraws   int // per chain
	RetainedDraws int // per chain
}

// TotalRetained returns the pooled retained draw count across all chains
func (t *Trace) TotalRetained() int {
	total := 0
	for i := range t.Chains {
		total += len(t.Chains[i].Samples)
	}
	return total
}

// PooledLogLikelihoods returns every retained untempered log-likelihood,
// chain by chain in chain order. The ordering is deterministic so the pooled
// vector fingerprints identically across identical runs.
func (t *Trace) PooledLogLikelihoods() []float64 {
	out := make([]float64, 0, t.TotalRetained())
	for i := range t.Chains {
		for j := range t.Chains[i].Samples {
			out = append(out, t.Chains[i].Samples[j].LogLikelihood)
		}
	}
	return out
}

// FlaggedChainCount returns how many chains tripped the divergence threshold
func (t *Trace) FlaggedChainCount() int {
	count := 0
	for i := range t.Chains {
		if t.Chains[i].Flagged {
			count++
		}
	}
	return count
}

// Fingerprint hashes the pooled log-likelihood vector. Two runs of the same
// request produce equal fingerprints iff sampling was bit-identical.
func (t *Trace) Fingerprint() core.TraceFingerprint {
	return core.ComputeTraceFingerprint(t.PooledLogLikelihoods())
}

// ============================================================================
// RESULT ARTIFACTS
// ============================================================================

// Diagnostics carries convergence evidence for a scored variant.
// When the parameter dimension exceeds the configured ceiling the expensive
// per-dimension diagnostics are skipped: Computed is false, SkipReason says
// why, and the WBIC value stands on its own.
type Diagnostics struct {
	Computed   bool      `json:"computed"`
	SkipReason string    `json:"skip_reason,omitempty"`
	ESS        []float64 `json:"ess,omitempty"`   // effective sample size per dimension
	RHat       []float64 `json:"r_hat,omitempty"` // split potential scale reduction per dimension
	MinESS     float64   `json:"min_ess,omitempty"`
	MaxRHat    float64   `json:"max_r_hat,omitempty"`
}

// WBICResult is the scored output for a single model variant.
// INVARIANTS:
// - WBIC is finite
// - RetainedDraws > 0 and ParameterDim > 0
// - the value is never mutated after construction
type WBICResult struct {
	ResultID      core.ResultID         `json:"result_id"`
	SweepID       core.SweepID          `json:"sweep_id,omitempty"`
	VariantID     core.VariantID        `json:"variant_id"`
	WBIC          float64               `json:"wbic"`
	StandardError float64               `json:"standard_error"` // Monte Carlo SE of the WBIC value
	RetainedDraws int                   `json:"retained_draws"`
	ParameterDim  int                   `json:"parameter_dim"`
	Temperature   float64               `json:"temperature"`
	Diagnostics   Diagnostics           `json:"diagnostics"`
	ChainSummary  []ChainSummary        `json:"chain_summary,omitempty"`
	TraceHash     core.TraceFingerprint `json:"trace_hash,omitempty"`
	CreatedAt     core.Timestamp        `json:"created_at"`
}

// ChainSummary is the per-chain accounting attached to results and manifests
type ChainSummary struct {
	ChainIndex     int     `json:"chain_index"`
	Retained       int     `json:"retained"`
	AcceptanceRate float64 `json:"acceptance_rate"`
	DivergenceRate float64 `json:"divergence_rate"`
	Flagged        bool    `json:"flagged"`
}

// RankEntry is one row of a sweep's model comparison
type RankEntry struct {
	Rank         int            `json:"rank"`
	VariantID    core.VariantID `json:"variant_id"`
	WBIC         float64        `json:"wbic"`
	DeltaWBIC    float64        `json:"delta_wbic"` // distance from the best variant
	ParameterDim int            `json:"parameter_dim"`
}

// Ranking is the ordered comparison across a sweep's completed variants.
// Lower WBIC ranks first; ties within TieEpsilon prefer fewer parameters.
type Ranking struct {
	SweepID    core.SweepID   `json:"sweep_id"`
	Entries    []RankEntry    `json:"entries"`
	TieEpsilon float64        `json:"tie_epsilon"`
	CreatedAt  core.Timestamp `json:"created_at"`
}

// Best returns the top-ranked entry, or false when the ranking is empty
func (r *Ranking) Best() (RankEntry, bool) {
	if len(r.Entries) == 0 {
		return RankEntry{}, false
	}
	return r.Entries[0], true
}

// ============================================================================
// SWEEP AUDIT
// ============================================================================

// VariantEvaluation tracks one variant's progress through a sweep.
// State moves through the evaluation lifecycle; a failure or cancellation is
// recorded here without disturbing sibling evaluations.
type VariantEvaluation struct {
	VariantID  core.VariantID  `json:"variant_id"`
	State      EvaluationState `json:"state"`
	Error      string          `json:"error,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Result     *WBICResult     `json:"result,omitempty"`
	StartedAt  core.Timestamp  `json:"started_at,omitempty"`
	FinishedAt core.Timestamp  `json:"finished_at,omitempty"`
}

// Transition advances the evaluation state, rejecting illegal moves
func (v *VariantEvaluation) Transition(next EvaluationState) error {
	if !v.State.CanTransitionTo(next) {
		return fmt.Errorf("illegal evaluation transition %s -> %s for variant %s", v.State, next, v.VariantID)
	}
	v.State = next
	return nil
}

// SweepManifest captures the full identity and outcome of a WBIC sweep
type SweepManifest struct {
	SweepID            core.SweepID            `json:"sweep_id"`
	DatasetID          core.DatasetID          `json:"dataset_id"`
	DatasetFingerprint core.DatasetFingerprint `json:"dataset_fingerprint"`
	Seed               uint64                  `json:"seed"` // master seed for determinism
	Temperature        float64                 `json:"temperature"`
	ObservationCount   int                     `json:"observation_count"`

	VariantCount   int   `json:"variant_count"`
	CompletedCount int   `json:"completed_count"`
	FailedCount    int   `json:"failed_count"`
	CancelledCount int   `json:"cancelled_count"`
	RuntimeMs      int64 `json:"runtime_ms"`

	ArtifactCounts map[string]int `json:"artifact_counts"` // count by artifact kind

	Fingerprint core.SweepFingerprint `json:"fingerprint"` // complete sweep request fingerprint
	CreatedAt   core.Timestamp        `json:"created_at"`
}

// ============================================================================
// TYPE DEFINITIONS
// ============================================================================

// EvaluationState is a variant's position in the sweep lifecycle
type EvaluationState string

const (
	StateIdle       EvaluationState = "idle"       // queued, not yet started
	StateWarmup     EvaluationState = "warmup"     // adapting proposal scales
	StateSampling   EvaluationState = "sampling"   // retaining draws
	StateDiagnostic EvaluationState = "diagnostic" // estimating WBIC and convergence evidence
	StateDone       EvaluationState = "done"       // terminal: result available
	StateFailed     EvaluationState = "failed"     // terminal: error recorded
	StateCancelled  EvaluationState = "cancelled"  // terminal: aborted by the caller
)

// CanTransitionTo reports whether the lifecycle permits a move to next
func (s EvaluationState) CanTransitionTo(next EvaluationState) bool {
	switch s {
	case StateIdle:
		return next == StateWarmup || next == StateCancelled
	case StateWarmup:
		return next == StateSampling || next == StateFailed || next == StateCancelled
	case StateSampling:
		return next == StateDiagnostic || next == StateFailed || next == StateCancelled
	case StateDiagnostic:
		return next == StateDone || next == StateFailed || next == StateCancelled
	default:
		return false
	}
}

// IsTerminal reports whether the state admits no further transitions
func (s EvaluationState) IsTerminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// ============================================================================
// RUN CONFIGURATION
// ============================================================================

// RunConfig carries every knob for a sweep. Zero values are not usable;
// start from DefaultRunConfig and override.
type RunConfig struct {
	Seed uint64 `json:"seed"`

	// Sampler
	Chains              int     `json:"chains"`
	WarmupDraws         int     `json:"warmup_draws"`   // per chain, discarded
	RetainedDraws       int     `json:"retained_draws"` // per chain, kept
	TargetAcceptance    float64 `json:"target_acceptance"`
	InitialScale        float64 `json:"initial_scale"`
	DivergenceThreshold float64 `json:"divergence_threshold"` // max tolerated divergence rate per chain

	// Estimator
	MinRetainedDraws     int     `json:"min_retained_draws"`
	DiagnosticDimCeiling int     `json:"diagnostic_dim_ceiling"`
	TieEpsilon           float64 `json:"tie_epsilon"`

	// Runner
	Parallelism int `json:"parallelism"`
}

// DefaultRunConfig returns the standard sweep configuration
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Seed:                 1,
		Chains:               4,
		WarmupDraws:          500,
		RetainedDraws:        1000,
		TargetAcceptance:     0.234,
		InitialScale:         0.1,
		DivergenceThreshold:  0.2,
		MinRetainedDraws:     100,
		DiagnosticDimCeiling: 25,
		TieEpsilon:           1e-9,
		Parallelism:          4,
	}
}

// Validate ensures the configuration is internally consistent
func (c RunConfig) Validate() error {
	if c.Chains < 1 {
		return fmt.Errorf("%w: chains must be >= 1, got %d", core.ErrConfigInvalid, c.Chains)
	}
	if c.WarmupDraws < 0 {
		return fmt.Errorf("%w: warmup_draws must be >= 0, got %d", core.ErrConfigInvalid, c.WarmupDraws)
	}
	if c.RetainedDraws < 1 {
		return fmt.Errorf("%w: retained_draws must be >= 1, got %d", core.ErrConfigInvalid, c.RetainedDraws)
	}
	if c.TargetAcceptance <= 0 || c.TargetAcceptance >= 1 {
		return fmt.Errorf("%w: target_acceptance must be in (0,1), got %f", core.ErrConfigInvalid, c.TargetAcceptance)
	}
	if c.InitialScale <= 0 {
		return fmt.Errorf("%w: initial_scale must be > 0, got %f", core.ErrConfigInvalid, c.InitialScale)
	}
	if c.DivergenceThreshold <= 0 || c.DivergenceThreshold > 1 {
		return fmt.Errorf("%w: divergence_threshold must be in (0,1], got %f", core.ErrConfigInvalid, c.DivergenceThreshold)
	}
	if c.MinRetainedDraws < 1 {
		return fmt.Errorf("%w: min_retained_draws must be >= 1, got %d", core.ErrConfigInvalid, c.MinRetainedDraws)
	}
	if c.DiagnosticDimCeiling < 1 {
		return fmt.Errorf("%w: diagnostic_dim_ceiling must be >= 1, got %d", core.ErrConfigInvalid, c.DiagnosticDimCeiling)
	}
	if c.TieEpsilon < 0 {
		return fmt.Errorf("%w: tie_epsilon must be >= 0, got %f", core.ErrConfigInvalid, c.TieEpsilon)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("%w: parallelism must be >= 1, got %d", core.ErrConfigInvalid, c.Parallelism)
	}
	return nil
}

// ============================================================================
// CONSTRUCTORS
// ============================================================================

// NewWBICResult creates a validated, immutable result for a scored variant
func NewWBICResult(variantID core.VariantID, wbicValue, standardError float64, retained, paramDim int, temperature float64) (*WBICResult, error) {
	if variantID == "" {
		return nil, core.NewValidationError("variant_id", "cannot be empty")
	}
	if math.IsNaN(wbicValue) || math.IsInf(wbicValue, 0) {
		return nil, core.NewValidationError("wbic", "must be finite")
	}
	if retained <= 0 {
		return nil, core.NewValidationError("retained_draws", "must be positive")
	}
	if paramDim <= 0 {
		return nil, core.NewValidationError("parameter_dim", "must be positive")
	}

	return &WBICResult{
		ResultID:      core.ResultID(core.NewID()),
		VariantID:     variantID,
		WBIC:          wbicValue,
		StandardError: standardError,
		RetainedDraws: retained,
		ParameterDim:  paramDim,
		Temperature:   temperature,
		CreatedAt:     core.Now(),
	}, nil
}

// NewVariantEvaluation creates an idle evaluation record for a variant
func NewVariantEvaluation(variantID core.VariantID) *VariantEvaluation {
	return &VariantEvaluation{
		VariantID: variantID,
		State:     StateIdle,
	}
}

// NewSweepManifest creates a new sweep manifest with complete determinism metadata
func NewSweepManifest(sweepID core.SweepID, datasetID core.DatasetID, datasetFP core.DatasetFingerprint, seed uint64, temperature float64, observations int) *SweepManifest {
	return &SweepManifest{
		SweepID:            sweepID,
		DatasetID:          datasetID,
		DatasetFingerprint: datasetFP,
		Seed:               seed,
		Temperature:        temperature,
		ObservationCount:   observations,
		ArtifactCounts:     make(map[string]int),
		CreatedAt:          core.Now(),
	}
}

// RankResults orders completed results by ascending WBIC. Ties within
// tieEpsilon are broken toward the variant with fewer parameters, the
// parsimony rule for scores that differ by less than Monte Carlo noise.
func RankResults(sweepID core.SweepID, results []*WBICResult, tieEpsilon float64) *Ranking {
	sorted := make([]*WBICResult, len(results))
	copy(sorted, results)

	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].WBIC-sorted[j].WBIC) <= tieEpsilon {
			return sorted[i].ParameterDim < sorted[j].ParameterDim
		}
		return sorted[i].WBIC < sorted[j].WBIC
	})

	ranking := &Ranking{
		SweepID:    sweepID,
		Entries:    make([]RankEntry, len(sorted)),
		TieEpsilon: tieEpsilon,
		CreatedAt:  core.Now(),
	}
	for i, r := range sorted {
		ranking.Entries[i] = RankEntry{
			Rank:         i + 1,
			VariantID:    r.VariantID,
			WBIC:         r.WBIC,
			DeltaWBIC:    r.WBIC - sorted[0].WBIC,
			ParameterDim: r.ParameterDim,
		}
	}
	return ranking
}
