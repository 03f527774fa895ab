package testkit

import (
	"context"
	"sync"

	"gowbic/adapters/estimator"
	"gowbic/adapters/rng"
	"gowbic/adapters/sampler"
	"gowbic/app"
	"gowbic/domain/core"
	"gowbic/domain/wbic"
	"gowbic/ports"
)

// TestKit provides fully wired components and fixtures for end-to-end sweeps
type TestKit struct {
	ledger *InMemoryLedgerAdapter // Shared ledger instance
}

// NewTestKit creates a new test kit instance with an in-memory ledger
func NewTestKit() *TestKit {
	return &TestKit{ledger: NewInMemoryLedgerAdapter()}
}

// LedgerAdapter returns the shared ledger so runner and readers use the
// same storage
func (t *TestKit) LedgerAdapter() ports.LedgerPort {
	return t.ledger
}

// LedgerReaderAdapter returns the read side of the shared ledger
func (t *TestKit) LedgerReaderAdapter() ports.LedgerReaderPort {
	return t.ledger
}

// RNGAdapter returns the deterministic stream adapter
func (t *TestKit) RNGAdapter() ports.RNGPort {
	return rng.NewStreamAdapter()
}

// Sampler returns a tempered sampler backed by deterministic streams
func (t *TestKit) Sampler() ports.SamplerPort {
	return sampler.NewTemperedMetropolis(t.RNGAdapter())
}

// Estimator returns a WBIC estimator
func (t *TestKit) Estimator() ports.EstimatorPort {
	return estimator.NewWBICEstimator()
}

// SelectionRunner returns a runner wired against the shared ledger
func (t *TestKit) SelectionRunner() *app.SelectionRunner {
	return app.NewSelectionRunner(t.Sampler(), t.Estimator(), t.LedgerAdapter())
}

// InMemoryLedgerAdapter implements LedgerPort with in-memory storage.
// Iteration follows insertion order so replays list artifacts identically.
type InMemoryLedgerAdapter struct {
	artifacts      map[core.ID]core.Artifact
	artifactSweep  map[core.ID]core.SweepID
	sweepArtifacts map[core.SweepID][]core.ID
	order          []core.ID
	mu             sync.RWMutex
}

var _ ports.LedgerPort = (*InMemoryLedgerAdapter)(nil)

func NewInMemoryLedgerAdapter() *InMemoryLedgerAdapter {
	return &InMemoryLedgerAdapter{
		artifacts:      make(map[core.ID]core.Artifact),
		artifactSweep:  make(map[core.ID]core.SweepID),
		sweepArtifacts: make(map[core.SweepID][]core.ID),
	}
}

func (s *InMemoryLedgerAdapter) StoreArtifact(ctx context.Context, sweepID string, artifact core.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sweep := core.SweepID(sweepID)
	s.artifacts[artifact.ID] = artifact
	s.artifactSweep[artifact.ID] = sweep
	s.sweepArtifacts[sweep] = append(s.sweepArtifacts[sweep], artifact.ID)
	s.order = append(s.order, artifact.ID)

	return nil
}

func (s *InMemoryLedgerAdapter) ListArtifacts(ctx context.Context, filters ports.ArtifactFilters) ([]core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []core.Artifact
	skipped := 0

	for _, id := range s.order {
		artifact := s.artifacts[id]

		if filters.SweepID != nil && s.artifactSweep[id] != *filters.SweepID {
			continue
		}
		if filters.Kind != nil && artifact.Kind != *filters.Kind {
			continue
		}
		if len(filters.VariantIDs) > 0 {
			variantID, ok := payloadVariantID(artifact)
			if !ok || !containsVariant(filters.VariantIDs, variantID) {
				continue
			}
		}

		if skipped < filters.Offset {
			skipped++
			continue
		}

		results = append(results, artifact)
		if filters.Limit > 0 && len(results) >= filters.Limit {
			break
		}
	}

	return results, nil
}

func (s *InMemoryLedgerAdapter) GetArtifact(ctx context.Context, artifactID core.ID) (*core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifact, exists := s.artifacts[artifactID]
	if !exists {
		return nil, core.NewNotFoundError("artifact", artifactID.String())
	}

	return &artifact, nil
}

func (s *InMemoryLedgerAdapter) GetArtifactsBySweep(ctx context.Context, sweepID core.SweepID) ([]core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.sweepArtifacts[sweepID]
	artifacts := make([]core.Artifact, 0, len(ids))
	for _, id := range ids {
		if artifact, ok := s.artifacts[id]; ok {
			artifacts = append(artifacts, artifact)
		}
	}

	return artifacts, nil
}

func (s *InMemoryLedgerAdapter) GetArtifactsByKind(ctx context.Context, kind core.ArtifactKind, limit int) ([]core.Artifact, error) {
	return s.ListArtifacts(ctx, ports.ArtifactFilters{Kind: &kind, Limit: limit})
}

// GetSweepManifest returns the most recently stored manifest for the sweep
func (s *InMemoryLedgerAdapter) GetSweepManifest(ctx context.Context, sweepID core.SweepID) (*wbic.SweepManifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.sweepArtifacts[sweepID]
	for i := len(ids) - 1; i >= 0; i-- {
		artifact, ok := s.artifacts[ids[i]]
		if !ok || artifact.Kind != core.ArtifactSweepManifest {
			continue
		}
		switch payload := artifact.Payload.(type) {
		case wbic.SweepManifest:
			manifest := payload
			return &manifest, nil
		case *wbic.SweepManifest:
			return payload, nil
		}
	}

	return nil, core.NewNotFoundError("sweep manifest", sweepID.String())
}

// payloadVariantID extracts the variant a result artifact belongs to
func payloadVariantID(artifact core.Artifact) (core.VariantID, bool) {
	switch payload := artifact.Payload.(type) {
	case wbic.WBICResult:
		return payload.VariantID, true
	case *wbic.WBICResult:
		return payload.VariantID, true
	}
	return "", false
}

func containsVariant(ids []core.VariantID, id core.VariantID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
