package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/refhub/citation-service/internal/domain"
)

// Compile-time interface verification.
var _ CitationRepository = (*PgCitationRepository)(nil)

// PgCitationRepository is a PostgreSQL implementation of CitationRepository.
type PgCitationRepository struct {
	db DBTX
}

// NewPgCitationRepository creates a new PostgreSQL citation repository.
func NewPgCitationRepository(db DBTX) *PgCitationRepository {
	return &PgCitationRepository{db: db}
}

const upsertCitationSQL = `
	INSERT INTO citation_records (
		id, canonical_id, title, authors, year, venue,
		doi, url, abstract, pages, volume, citation_count,
		open_access, verified_via, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
	)
	ON CONFLICT (canonical_id) DO UPDATE SET
		title = EXCLUDED.title,
		authors = EXCLUDED.authors,
		year = COALESCE(NULLIF(EXCLUDED.year, 0), citation_records.year),
		venue = COALESCE(NULLIF(EXCLUDED.venue, ''), citation_records.venue),
		doi = COALESCE(NULLIF(EXCLUDED.doi, ''), citation_records.doi),
		url = COALESCE(NULLIF(EXCLUDED.url, ''), citation_records.url),
		abstract = COALESCE(NULLIF(EXCLUDED.abstract, ''), citation_records.abstract),
		pages = COALESCE(NULLIF(EXCLUDED.pages, ''), citation_records.pages),
		volume = COALESCE(NULLIF(EXCLUDED.volume, ''), citation_records.volume),
		citation_count = GREATEST(EXCLUDED.citation_count, citation_records.citation_count),
		open_access = EXCLUDED.open_access OR citation_records.open_access,
		verified_via = EXCLUDED.verified_via,
		updated_at = NOW()
	RETURNING id, created_at, updated_at`

const selectCitationColumns = `
	id, canonical_id, title, authors, year, venue,
	doi, url, abstract, pages, volume, citation_count,
	open_access, verified_via, created_at, updated_at`

// Upsert inserts a new citation record or refreshes the row sharing its
// canonical ID. Later verifications enrich rather than erase: empty fields
// never overwrite populated ones, citation counts only grow.
func (r *PgCitationRepository) Upsert(ctx context.Context, record *domain.CitationRecord) (*domain.CitationRecord, error) {
	if record == nil {
		return nil, domain.NewValidationError("record", "record cannot be nil")
	}
	if record.CanonicalID == "" {
		return nil, domain.NewValidationError("canonical_id", "canonical ID is required")
	}

	authorsJSON, err := json.Marshal(record.Authors)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal authors: %w", err)
	}

	now := time.Now().UTC()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	err = r.db.QueryRow(ctx, upsertCitationSQL,
		record.ID,
		record.CanonicalID,
		record.Title,
		authorsJSON,
		record.Year,
		record.Venue,
		record.DOI,
		record.URL,
		record.Abstract,
		record.Pages,
		record.Volume,
		record.CitationCount,
		record.OpenAccess,
		record.VerifiedVia,
		now,
		now,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to upsert citation record: %w", err)
	}

	return record, nil
}

// GetByCanonicalID retrieves a citation record by its canonical identifier.
func (r *PgCitationRepository) GetByCanonicalID(ctx context.Context, canonicalID string) (*domain.CitationRecord, error) {
	if canonicalID == "" {
		return nil, domain.NewValidationError("canonical_id", "canonical ID is required")
	}

	query := `SELECT` + selectCitationColumns + `
	FROM citation_records
	WHERE canonical_id = $1`

	row := r.db.QueryRow(ctx, query, canonicalID)
	record, err := scanCitation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("citation record", canonicalID)
		}
		return nil, fmt.Errorf("failed to get citation record: %w", err)
	}

	return record, nil
}

// ListRecent returns up to limit records ordered by most recently updated.
func (r *PgCitationRepository) ListRecent(ctx context.Context, limit int) ([]*domain.CitationRecord, error) {
	if limit <= 0 {
		return nil, domain.NewValidationError("limit", "limit must be positive")
	}

	query := `SELECT` + selectCitationColumns + `
	FROM citation_records
	ORDER BY updated_at DESC
	LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list citation records: %w", err)
	}
	defer rows.Close()

	var records []*domain.CitationRecord
	for rows.Next() {
		record, err := scanCitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan citation record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate citation records: %w", err)
	}

	return records, nil
}

// scanCitation scans a citation record from a row.
func scanCitation(row pgx.Row) (*domain.CitationRecord, error) {
	var record domain.CitationRecord
	var authorsJSON []byte

	err := row.Scan(
		&record.ID,
		&record.CanonicalID,
		&record.Title,
		&authorsJSON,
		&record.Year,
		&record.Venue,
		&record.DOI,
		&record.URL,
		&record.Abstract,
		&record.Pages,
		&record.Volume,
		&record.CitationCount,
		&record.OpenAccess,
		&record.VerifiedVia,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(authorsJSON) > 0 {
		if err := json.Unmarshal(authorsJSON, &record.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}

	return &record, nil
}
