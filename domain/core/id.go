package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Use UUID v7 for time-ordered, sortable IDs
	// Falls back to v4 if v7 is not available (for compatibility)
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	SweepID   ID
	VariantID ID
	ResultID  ID
	DatasetID ID
)

// String conversions for domain IDs
func (id SweepID) String() string   { return ID(id).String() }
func (id VariantID) String() string { return ID(id).String() }
func (id ResultID) String() string  { return ID(id).String() }
func (id DatasetID) String() string { return ID(id).String() }

// ParseSweepID parses a string into SweepID
func ParseSweepID(s string) (SweepID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("sweep ID cannot be empty")
	}
	return SweepID(s), nil
}

// ParseVariantID parses a string into VariantID. Variant IDs are chosen by
// ModelSpec implementations, not UUID generation, so any non-blank string is
// accepted.
func ParseVariantID(s string) (VariantID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("variant ID cannot be empty")
	}
	return VariantID(s), nil
}

// ParseResultID parses a string into ResultID
func ParseResultID(s string) (ResultID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("result ID cannot be empty")
	}
	return ResultID(s), nil
}

// Artifact represents any output of the system
type Artifact struct {
	ID        ID           `json:"id"`
	Kind      ArtifactKind `json:"kind"`
	Payload   interface{}  `json:"payload"`
	CreatedAt Timestamp    `json:"created_at"`
}

// ArtifactKind defines types of artifacts
type ArtifactKind string

const (
	// ArtifactWBICResult is the scored output for a single model variant.
	ArtifactWBICResult ArtifactKind = "wbic_result"
	// ArtifactSweepManifest captures audit metadata for a sweep (seed, counts, fingerprint, etc.).
	ArtifactSweepManifest ArtifactKind = "sweep_manifest"
	// ArtifactRanking records the ordered comparison across a sweep's variants.
	ArtifactRanking ArtifactKind = "ranking"
	// ArtifactChainSummary records per-chain acceptance and divergence accounting.
	ArtifactChainSummary ArtifactKind = "chain_summary"
)
