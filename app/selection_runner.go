package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"gowbic/domain/core"
	"gowbic/domain/dataset"
	"gowbic/domain/wbic"
	"gowbic/internal/errors"
	"gowbic/ports"
)

// SelectionRunner evaluates a family of model variants against one dataset
// and ranks them by WBIC
type SelectionRunner struct {
	sampler   ports.SamplerPort
	estimator ports.EstimatorPort
	ledger    ports.LedgerWriterPort
}

// SelectionRequest defines the inputs for a deterministic model sweep
type SelectionRequest struct {
	Dataset  *dataset.Dataset
	Variants []ports.ModelSpec // evaluation set; order is part of the sweep identity
	Config   wbic.RunConfig
	SweepID  core.SweepID // optional, will be generated if empty
}

// SelectionResult contains the complete output of a model sweep
type SelectionResult struct {
	SweepID     core.SweepID              `json:"sweep_id"`
	Evaluations []*wbic.VariantEvaluation `json:"evaluations"` // input variant order
	Ranking     *wbic.Ranking             `json:"ranking"`
	Manifest    *wbic.SweepManifest       `json:"manifest"`
	RuntimeMs   int64                     `json:"runtime_ms"`
}

// NewSelectionRunner creates a model selection runner
func NewSelectionRunner(sampler ports.SamplerPort, estimator ports.EstimatorPort, ledger ports.LedgerWriterPort) *SelectionRunner {
	return &SelectionRunner{
		sampler:   sampler,
		estimator: estimator,
		ledger:    ledger,
	}
}

// RunSelection executes every variant independently on a bounded worker pool
// and assembles the ranking plus an auditable sweep manifest. A variant
// failure is recorded on its evaluation and never aborts the sweep;
// cancellation of ctx aborts the whole sweep.
func (r *SelectionRunner) RunSelection(ctx context.Context, req SelectionRequest) (*SelectionResult, error) {
	startedAt := core.NewStartedAt(time.Now())

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	sweepID := req.SweepID
	if sweepID == "" {
		sweepID = core.SweepID(core.NewID())
	}
	cfg := req.Config

	log.Printf("[SelectionRunner] sweep %s: %d variants, %d observations, temperature %.6f",
		sweepID, len(req.Variants), req.Dataset.ObservationCount(), req.Dataset.Temperature())

	evaluations := make([]*wbic.VariantEvaluation, len(req.Variants))
	for i, spec := range req.Variants {
		evaluations[i] = wbic.NewVariantEvaluation(core.VariantID(spec.ID()))
	}

	// Fan out with a weighted semaphore so at most Parallelism variants
	// sample at once; every goroutine is joined before results are read
	sem := semaphore.NewWeighted(int64(cfg.Parallelism))
	var wg sync.WaitGroup
	for i := range req.Variants {
		wg.Add(1)
		go func(eval *wbic.VariantEvaluation, spec ports.ModelSpec) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				r.conclude(eval, err)
				return
			}
			defer sem.Release(1)
			r.evaluateVariant(ctx, sweepID, spec, req.Dataset, cfg, eval)
		}(evaluations[i], req.Variants[i])
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: sweep %s: %v", core.ErrSweepCancelled, sweepID, err)
	}

	// Collect completed results in input order so ranking input is deterministic
	var results []*wbic.WBICResult
	for _, eval := range evaluations {
		if eval.State == wbic.StateDone && eval.Result != nil {
			results = append(results, eval.Result)
		}
	}

	ranking := wbic.RankResults(sweepID, results, cfg.TieEpsilon)

	manifest := wbic.NewSweepManifest(
		sweepID,
		req.Dataset.ID(),
		req.Dataset.Fingerprint(),
		cfg.Seed,
		req.Dataset.Temperature(),
		req.Dataset.ObservationCount(),
	)
	manifest.VariantCount = len(evaluations)
	for _, eval := range evaluations {
		switch eval.State {
		case wbic.StateDone:
			manifest.CompletedCount++
		case wbic.StateCancelled:
			manifest.CancelledCount++
		default:
			manifest.FailedCount++
		}
	}
	manifest.Fingerprint = core.ComputeSweepFingerprint(cfg.Seed, req.Dataset.Fingerprint(), variantIDs(req.Variants))
	manifest.RuntimeMs = core.NewFinishedAt(time.Now()).Since(startedAt).Duration().Milliseconds()

	if err := r.persistArtifacts(ctx, sweepID, evaluations, ranking, manifest); err != nil {
		return nil, err
	}

	runtimeMs := core.NewFinishedAt(time.Now()).Since(startedAt).Duration().Milliseconds()

	log.Printf("[SelectionRunner] sweep %s completed: %d done, %d failed, %d cancelled in %dms",
		sweepID, manifest.CompletedCount, manifest.FailedCount, manifest.CancelledCount, runtimeMs)

	return &SelectionResult{
		SweepID:     sweepID,
		Evaluations: evaluations,
		Ranking:     ranking,
		Manifest:    manifest,
		RuntimeMs:   runtimeMs,
	}, nil
}

// evaluateVariant walks one variant through its lifecycle: sample the
// tempered posterior, then estimate WBIC with diagnostics
func (r *SelectionRunner) evaluateVariant(ctx context.Context, sweepID core.SweepID, spec ports.ModelSpec, ds *dataset.Dataset, cfg wbic.RunConfig, eval *wbic.VariantEvaluation) {
	eval.StartedAt = core.Now()
	if err := eval.Transition(wbic.StateWarmup); err != nil {
		r.conclude(eval, err)
		return
	}

	trace, err := r.sampler.Sample(ctx, ports.SampleRequest{
		Spec:    spec,
		Dataset: ds,
		Config:  cfg,
	})
	if err != nil {
		r.conclude(eval, err)
		return
	}

	if err := eval.Transition(wbic.StateSampling); err != nil {
		r.conclude(eval, err)
		return
	}
	if err := eval.Transition(wbic.StateDiagnostic); err != nil {
		r.conclude(eval, err)
		return
	}

	result, err := r.estimator.Estimate(trace, spec, cfg)
	if err != nil {
		r.conclude(eval, err)
		return
	}
	result.SweepID = sweepID

	eval.Result = result
	if err := eval.Transition(wbic.StateDone); err != nil {
		r.conclude(eval, err)
		return
	}
	eval.FinishedAt = core.Now()
}

// conclude records an error on the evaluation and moves it to its terminal
// state, cancelled or failed depending on the classification
func (r *SelectionRunner) conclude(eval *wbic.VariantEvaluation, err error) {
	code := errors.GetCode(err)
	eval.Error = err.Error()
	eval.ErrorCode = code

	next := wbic.StateFailed
	if code == errors.CodeCancelled {
		next = wbic.StateCancelled
	}
	if terr := eval.Transition(next); terr != nil {
		log.Printf("[SelectionRunner] %v", terr)
		eval.State = next
	}
	eval.FinishedAt = core.Now()
	log.Printf("[SelectionRunner] variant %s %s (%s): %v", eval.VariantID, next, code, err)
}

// persistArtifacts writes per-variant results, the ranking, and finally the
// sweep manifest to the ledger, tallying counts onto the manifest
func (r *SelectionRunner) persistArtifacts(ctx context.Context, sweepID core.SweepID, evaluations []*wbic.VariantEvaluation, ranking *wbic.Ranking, manifest *wbic.SweepManifest) error {
	store := func(kind core.ArtifactKind, payload interface{}) error {
		artifact := core.Artifact{
			ID:        core.NewID(),
			Kind:      kind,
			Payload:   payload,
			CreatedAt: core.Now(),
		}
		if err := r.ledger.StoreArtifact(ctx, sweepID.String(), artifact); err != nil {
			return fmt.Errorf("failed to store %s artifact: %w", kind, err)
		}
		manifest.ArtifactCounts[string(kind)]++
		return nil
	}

	for _, eval := range evaluations {
		if eval.State != wbic.StateDone || eval.Result == nil {
			continue
		}
		if err := store(core.ArtifactWBICResult, *eval.Result); err != nil {
			return err
		}
		if len(eval.Result.ChainSummary) > 0 {
			if err := store(core.ArtifactChainSummary, eval.Result.ChainSummary); err != nil {
				return err
			}
		}
	}

	if err := store(core.ArtifactRanking, *ranking); err != nil {
		return err
	}

	// The manifest is stored last so its artifact counts cover everything
	// written before it
	manifestArtifact := core.Artifact{
		ID:        core.NewID(),
		Kind:      core.ArtifactSweepManifest,
		Payload:   *manifest,
		CreatedAt: core.Now(),
	}
	if err := r.ledger.StoreArtifact(ctx, sweepID.String(), manifestArtifact); err != nil {
		return fmt.Errorf("failed to store sweep manifest artifact: %w", err)
	}
	return nil
}

// validateRequest rejects malformed sweeps before any sampling starts
func validateRequest(req SelectionRequest) error {
	if req.Dataset == nil {
		return fmt.Errorf("%w: dataset is nil", core.ErrConfigInvalid)
	}
	if len(req.Variants) == 0 {
		return fmt.Errorf("%w: no model variants supplied", core.ErrConfigInvalid)
	}
	seen := make(map[string]bool, len(req.Variants))
	for i, spec := range req.Variants {
		if spec == nil {
			return fmt.Errorf("%w: variant %d is nil", core.ErrConfigInvalid, i)
		}
		id := spec.ID()
		if id == "" {
			return fmt.Errorf("%w: variant %d has an empty id", core.ErrConfigInvalid, i)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate variant id %q", core.ErrConfigInvalid, id)
		}
		seen[id] = true
		if spec.ParameterDim() < 1 {
			return fmt.Errorf("%w: variant %q has no parameters", core.ErrConfigInvalid, id)
		}
	}
	return req.Config.Validate()
}

func variantIDs(variants []ports.ModelSpec) []string {
	ids := make([]string, len(variants))
	for i, spec := range variants {
		ids[i] = spec.ID()
	}
	return ids
}
