package ports

import (
	"context"

	"gowbic/domain/core"
	"gowbic/domain/wbic"
)

// ReaderPort provides read-only access to sweep outcomes for the API surface.
// This ensures the API cannot write to the ledger or modify sweep state.
type ReaderPort interface {
	// Sweep queries (read-only)
	ListSweeps(ctx context.Context, filters SweepFilters) ([]SweepSummary, error)
	GetSweep(ctx context.Context, sweepID core.SweepID) (*SweepDetail, error)
	GetRanking(ctx context.Context, sweepID core.SweepID) (*wbic.Ranking, error)

	// Artifact queries (read-only)
	GetArtifactsBySweep(ctx context.Context, sweepID core.SweepID) ([]core.Artifact, error)
}

// SweepFilters for querying sweeps
type SweepFilters struct {
	Limit  int
	Offset int
}

// SweepSummary is the list-view read model for a sweep
type SweepSummary struct {
	ID             core.SweepID   `json:"id"`
	VariantCount   int            `json:"variant_count"`
	CompletedCount int            `json:"completed_count"`
	FailedCount    int            `json:"failed_count"`
	RuntimeMs      int64          `json:"runtime_ms"`
	CreatedAt      core.Timestamp `json:"created_at"`
}

// SweepDetail is the full read model for a sweep. Only completed variants
// appear under Results; failures are visible as manifest counts.
type SweepDetail struct {
	Manifest wbic.SweepManifest `json:"manifest"`
	Results  []wbic.WBICResult  `json:"results"`
	Ranking  *wbic.Ranking      `json:"ranking,omitempty"`
}
