// Package repository provides data access for persisted citation records.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/refhub/citation-service/internal/domain"
)

// DBTX is the subset of pgx operations repositories need. Both
// *pgxpool.Pool, pgx.Tx, and pgxmock satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// CitationRepository stores canonical citation records. Records are upserted
// by canonical ID and never deleted.
type CitationRepository interface {
	// Upsert inserts the record or refreshes the existing row sharing its
	// canonical ID. The record's ID and timestamps are populated on return.
	Upsert(ctx context.Context, record *domain.CitationRecord) (*domain.CitationRecord, error)

	// GetByCanonicalID retrieves a record by its canonical identifier.
	// Returns a NotFoundError when no row matches.
	GetByCanonicalID(ctx context.Context, canonicalID string) (*domain.CitationRecord, error)

	// ListRecent returns up to limit records ordered by most recently updated.
	ListRecent(ctx context.Context, limit int) ([]*domain.CitationRecord, error)
}
