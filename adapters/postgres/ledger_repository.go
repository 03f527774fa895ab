package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gowbic/domain/core"
	"gowbic/domain/wbic"
	"gowbic/ports"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// LedgerRepository implements LedgerPort for PostgreSQL. Artifacts are
// append-only rows with the payload stored as JSONB; the seq column
// preserves insertion order so replays list artifacts identically.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository creates a new PostgreSQL artifact ledger
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// StoreArtifact appends one artifact row
func (r *LedgerRepository) StoreArtifact(ctx context.Context, sweepID string, artifact core.Artifact) error {
	payloadJSON, err := json.Marshal(artifact.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact payload: %w", err)
	}

	var variantID interface{}
	if vid, ok := variantForPayload(artifact.Payload); ok {
		variantID = vid.String()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, sweep_id, kind, variant_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, artifact.ID.String(), sweepID, string(artifact.Kind), variantID, payloadJSON, artifact.CreatedAt.Time())

	if err != nil {
		return fmt.Errorf("failed to insert artifact: %w", err)
	}

	return nil
}

// ListArtifacts returns artifacts matching the filters in insertion order
func (r *LedgerRepository) ListArtifacts(ctx context.Context, filters ports.ArtifactFilters) ([]core.Artifact, error) {
	query := `SELECT id, kind, payload, created_at FROM artifacts`

	var clauses []string
	var args []interface{}

	if filters.SweepID != nil {
		args = append(args, filters.SweepID.String())
		clauses = append(clauses, fmt.Sprintf("sweep_id = $%d", len(args)))
	}
	if filters.Kind != nil {
		args = append(args, string(*filters.Kind))
		clauses = append(clauses, fmt.Sprintf("kind = $%d", len(args)))
	}
	if len(filters.VariantIDs) > 0 {
		variantIDs := make([]string, len(filters.VariantIDs))
		for i, vid := range filters.VariantIDs {
			variantIDs[i] = vid.String()
		}
		args = append(args, pq.Array(variantIDs))
		clauses = append(clauses, fmt.Sprintf("variant_id = ANY($%d)", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY seq ASC"

	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	return r.queryArtifacts(ctx, query, args...)
}

// GetArtifact retrieves a single artifact by ID
func (r *LedgerRepository) GetArtifact(ctx context.Context, artifactID core.ID) (*core.Artifact, error) {
	query := `SELECT id, kind, payload, created_at FROM artifacts WHERE id = $1`

	var (
		id          string
		kind        string
		payloadJSON []byte
		createdAt   time.Time
	)

	err := r.db.QueryRowContext(ctx, query, artifactID.String()).Scan(&id, &kind, &payloadJSON, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("artifact", artifactID.String())
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}

	payload, err := decodePayload(core.ArtifactKind(kind), payloadJSON)
	if err != nil {
		return nil, err
	}

	return &core.Artifact{
		ID:        core.ID(id),
		Kind:      core.ArtifactKind(kind),
		Payload:   payload,
		CreatedAt: core.NewTimestamp(createdAt),
	}, nil
}

// GetArtifactsBySweep returns every artifact a sweep produced, oldest first
func (r *LedgerRepository) GetArtifactsBySweep(ctx context.Context, sweepID core.SweepID) ([]core.Artifact, error) {
	query := `SELECT id, kind, payload, created_at FROM artifacts WHERE sweep_id = $1 ORDER BY seq ASC`
	return r.queryArtifacts(ctx, query, sweepID.String())
}

// GetArtifactsByKind returns artifacts of one kind across all sweeps
func (r *LedgerRepository) GetArtifactsByKind(ctx context.Context, kind core.ArtifactKind, limit int) ([]core.Artifact, error) {
	query := `SELECT id, kind, payload, created_at FROM artifacts WHERE kind = $1 ORDER BY seq ASC`
	args := []interface{}{string(kind)}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	return r.queryArtifacts(ctx, query, args...)
}

// GetSweepManifest returns the most recent manifest stored for a sweep
func (r *LedgerRepository) GetSweepManifest(ctx context.Context, sweepID core.SweepID) (*wbic.SweepManifest, error) {
	query := `
		SELECT payload FROM artifacts
		WHERE sweep_id = $1 AND kind = $2
		ORDER BY seq DESC
		LIMIT 1`

	var payloadJSON []byte
	err := r.db.QueryRowContext(ctx, query, sweepID.String(), string(core.ArtifactSweepManifest)).Scan(&payloadJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("sweep manifest", sweepID.String())
		}
		return nil, fmt.Errorf("failed to get sweep manifest: %w", err)
	}

	var manifest wbic.SweepManifest
	if err := json.Unmarshal(payloadJSON, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sweep manifest: %w", err)
	}

	return &manifest, nil
}

func (r *LedgerRepository) queryArtifacts(ctx context.Context, query string, args ...interface{}) ([]core.Artifact, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []core.Artifact
	for rows.Next() {
		var (
			id          string
			kind        string
			payloadJSON []byte
			createdAt   time.Time
		)

		if err := rows.Scan(&id, &kind, &payloadJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact row: %w", err)
		}

		payload, err := decodePayload(core.ArtifactKind(kind), payloadJSON)
		if err != nil {
			return nil, err
		}

		artifacts = append(artifacts, core.Artifact{
			ID:        core.ID(id),
			Kind:      core.ArtifactKind(kind),
			Payload:   payload,
			CreatedAt: core.NewTimestamp(createdAt),
		})
	}

	return artifacts, rows.Err()
}

// decodePayload rehydrates a JSONB payload into the concrete type the
// runner stored, so postgres-backed reads look identical to in-memory ones
func decodePayload(kind core.ArtifactKind, raw []byte) (interface{}, error) {
	switch kind {
	case core.ArtifactWBICResult:
		var result wbic.WBICResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal wbic result payload: %w", err)
		}
		return result, nil

	case core.ArtifactChainSummary:
		var summaries []wbic.ChainSummary
		if err := json.Unmarshal(raw, &summaries); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chain summary payload: %w", err)
		}
		return summaries, nil

	case core.ArtifactRanking:
		var ranking wbic.Ranking
		if err := json.Unmarshal(raw, &ranking); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ranking payload: %w", err)
		}
		return ranking, nil

	case core.ArtifactSweepManifest:
		var manifest wbic.SweepManifest
		if err := json.Unmarshal(raw, &manifest); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sweep manifest payload: %w", err)
		}
		return manifest, nil

	default:
		var generic map[string]interface{}
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, fmt.Errorf("failed to unmarshal artifact payload: %w", err)
		}
		return generic, nil
	}
}

// variantForPayload extracts the owning variant from result payloads so the
// row can be filtered by variant without unpacking JSON
func variantForPayload(payload interface{}) (core.VariantID, bool) {
	switch p := payload.(type) {
	case wbic.WBICResult:
		return p.VariantID, true
	case *wbic.WBICResult:
		return p.VariantID, true
	}
	return "", false
}

// Ensure LedgerRepository implements LedgerPort
var _ ports.LedgerPort = (*LedgerRepository)(nil)
