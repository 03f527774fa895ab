package ports

import (
	"context"

	"gowbic/domain/core"
	"gowbic/domain/wbic"
)

// LedgerWriterPort provides append-only write access to artifacts
// This is the ONLY way to write artifacts - prevents read-after-write coupling
type LedgerWriterPort interface {
	StoreArtifact(ctx context.Context, sweepID string, artifact core.Artifact) error
}

// LedgerReaderPort provides read-only access to stored artifacts
// Use this for queries, replay, and API access
type LedgerReaderPort interface {
	// Artifact queries (read-only)
	ListArtifacts(ctx context.Context, filters ArtifactFilters) ([]core.Artifact, error)
	GetArtifact(ctx context.Context, artifactID core.ID) (*core.Artifact, error)
	GetArtifactsBySweep(ctx context.Context, sweepID core.SweepID) ([]core.Artifact, error)
	GetArtifactsByKind(ctx context.Context, kind core.ArtifactKind, limit int) ([]core.Artifact, error)

	// Sweep manifest queries
	GetSweepManifest(ctx context.Context, sweepID core.SweepID) (*wbic.SweepManifest, error)
}

// ArtifactFilters for querying artifacts
type ArtifactFilters struct {
	SweepID    *core.SweepID
	Kind       *core.ArtifactKind
	VariantIDs []core.VariantID
	Limit      int
	Offset     int
}

// LedgerPort combines read and write access for callers that own both sides
type LedgerPort interface {
	LedgerWriterPort
	LedgerReaderPort
}
