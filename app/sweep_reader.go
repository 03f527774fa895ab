package app

import (
	"context"
	"fmt"

	"gowbic/domain/core"
	"gowbic/domain/wbic"
	"gowbic/ports"
)

// SweepReader assembles read models for the API surface from the artifact
// ledger. It holds only the reader side of the ledger so serving queries
// can never mutate sweep state.
type SweepReader struct {
	ledger ports.LedgerReaderPort
}

// NewSweepReader creates a new sweep reader
func NewSweepReader(ledger ports.LedgerReaderPort) *SweepReader {
	return &SweepReader{ledger: ledger}
}

// ListSweeps returns manifest summaries, newest first
func (r *SweepReader) ListSweeps(ctx context.Context, filters ports.SweepFilters) ([]ports.SweepSummary, error) {
	kind := core.ArtifactSweepManifest
	artifacts, err := r.ledger.ListArtifacts(ctx, ports.ArtifactFilters{Kind: &kind})
	if err != nil {
		return nil, fmt.Errorf("failed to list sweep manifests: %w", err)
	}

	summaries := make([]ports.SweepSummary, 0, len(artifacts))
	for i := len(artifacts) - 1; i >= 0; i-- {
		manifest, ok := manifestPayload(artifacts[i])
		if !ok {
			continue
		}
		summaries = append(summaries, ports.SweepSummary{
			ID:             manifest.SweepID,
			VariantCount:   manifest.VariantCount,
			CompletedCount: manifest.CompletedCount,
			FailedCount:    manifest.FailedCount,
			RuntimeMs:      manifest.RuntimeMs,
			CreatedAt:      manifest.CreatedAt,
		})
	}

	if filters.Offset > 0 {
		if filters.Offset >= len(summaries) {
			return []ports.SweepSummary{}, nil
		}
		summaries = summaries[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(summaries) {
		summaries = summaries[:filters.Limit]
	}

	return summaries, nil
}

// GetSweep returns the manifest plus every completed result and the ranking
func (r *SweepReader) GetSweep(ctx context.Context, sweepID core.SweepID) (*ports.SweepDetail, error) {
	manifest, err := r.ledger.GetSweepManifest(ctx, sweepID)
	if err != nil {
		return nil, err
	}

	artifacts, err := r.ledger.GetArtifactsBySweep(ctx, sweepID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sweep artifacts: %w", err)
	}

	detail := &ports.SweepDetail{
		Manifest: *manifest,
		Results:  []wbic.WBICResult{},
	}
	for _, artifact := range artifacts {
		switch payload := artifact.Payload.(type) {
		case wbic.WBICResult:
			detail.Results = append(detail.Results, payload)
		case *wbic.WBICResult:
			detail.Results = append(detail.Results, *payload)
		case wbic.Ranking:
			ranking := payload
			detail.Ranking = &ranking
		case *wbic.Ranking:
			detail.Ranking = payload
		}
	}

	return detail, nil
}

// GetRanking returns the stored ranking for a sweep
func (r *SweepReader) GetRanking(ctx context.Context, sweepID core.SweepID) (*wbic.Ranking, error) {
	kind := core.ArtifactRanking
	artifacts, err := r.ledger.ListArtifacts(ctx, ports.ArtifactFilters{SweepID: &sweepID, Kind: &kind})
	if err != nil {
		return nil, fmt.Errorf("failed to query ranking: %w", err)
	}

	for i := len(artifacts) - 1; i >= 0; i-- {
		switch payload := artifacts[i].Payload.(type) {
		case wbic.Ranking:
			ranking := payload
			return &ranking, nil
		case *wbic.Ranking:
			return payload, nil
		}
	}

	return nil, core.NewNotFoundError("ranking", sweepID.String())
}

// GetArtifactsBySweep exposes the raw artifact trail for a sweep
func (r *SweepReader) GetArtifactsBySweep(ctx context.Context, sweepID core.SweepID) ([]core.Artifact, error) {
	return r.ledger.GetArtifactsBySweep(ctx, sweepID)
}

// manifestPayload unwraps a manifest artifact regardless of how the payload
// was stored
func manifestPayload(artifact core.Artifact) (*wbic.SweepManifest, bool) {
	switch payload := artifact.Payload.(type) {
	case wbic.SweepManifest:
		return &payload, true
	case *wbic.SweepManifest:
		return payload, true
	}
	return nil, false
}

// Ensure SweepReader implements ReaderPort
var _ ports.ReaderPort = (*SweepReader)(nil)
