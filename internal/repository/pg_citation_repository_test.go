package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refhub/citation-service/internal/domain"
)

func TestPgCitationRepository_Upsert(t *testing.T) {
	t.Run("inserts new record", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgCitationRepository(mock)
		ctx := context.Background()

		record := &domain.CitationRecord{
			CanonicalID:   "doi:10.1038/nature14539",
			Title:         "Deep learning",
			Authors:       []string{"Yann LeCun", "Yoshua Bengio"},
			Year:          2015,
			Venue:         "Nature",
			DOI:           "10.1038/nature14539",
			CitationCount: 45000,
			OpenAccess:    true,
			VerifiedVia:   domain.SourceTypeCrossref,
		}

		recordID := uuid.New()
		now := time.Now().UTC()
		mock.ExpectQuery(`INSERT INTO citation_records`).
			WithArgs(
				pgxmock.AnyArg(), "doi:10.1038/nature14539", "Deep learning", pgxmock.AnyArg(),
				2015, "Nature", "10.1038/nature14539", "", "", "", "",
				45000, true, domain.SourceTypeCrossref, pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(recordID, now, now))

		result, err := repo.Upsert(ctx, record)
		require.NoError(t, err)
		assert.Equal(t, recordID, result.ID)
		assert.Equal(t, now, result.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects nil record", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgCitationRepository(mock)

		_, err = repo.Upsert(context.Background(), nil)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("rejects missing canonical ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgCitationRepository(mock)

		_, err = repo.Upsert(context.Background(), &domain.CitationRecord{Title: "Untracked"})
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("propagates database errors", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgCitationRepository(mock)

		mock.ExpectQuery(`INSERT INTO citation_records`).
			WithArgs(
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnError(errors.New("connection reset"))

		_, err = repo.Upsert(context.Background(), &domain.CitationRecord{
			CanonicalID: "doi:10.1/x",
			Title:       "t",
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgCitationRepository_GetByCanonicalID(t *testing.T) {
	t.Run("returns record when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgCitationRepository(mock)
		ctx := context.Background()

		recordID := uuid.New()
		now := time.Now().UTC()
		mock.ExpectQuery(`SELECT(.|\s)+FROM citation_records\s+WHERE canonical_id = \$1`).
			WithArgs("doi:10.1038/nature14539").
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "canonical_id", "title", "authors", "year", "venue",
				"doi", "url", "abstract", "pages", "volume", "citation_count",
				"open_access", "verified_via", "created_at", "updated_at",
			}).AddRow(
				recordID, "doi:10.1038/nature14539", "Deep learning", []byte(`["Yann LeCun"]`),
				2015, "Nature", "10.1038/nature14539", "", "", "436-444", "521",
				45000, true, domain.SourceTypeCrossref, now, now,
			))

		result, err := repo.GetByCanonicalID(ctx, "doi:10.1038/nature14539")
		require.NoError(t, err)
		assert.Equal(t, recordID, result.ID)
		assert.Equal(t, []string{"Yann LeCun"}, result.Authors)
		assert.Equal(t, domain.SourceTypeCrossref, result.VerifiedVia)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgCitationRepository(mock)

		mock.ExpectQuery(`SELECT(.|\s)+FROM citation_records\s+WHERE canonical_id = \$1`).
			WithArgs("doi:10.9999/missing").
			WillReturnError(pgx.ErrNoRows)

		_, err = repo.GetByCanonicalID(context.Background(), "doi:10.9999/missing")
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects empty canonical ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgCitationRepository(mock)

		_, err = repo.GetByCanonicalID(context.Background(), "")
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestPgCitationRepository_ListRecent(t *testing.T) {
	t.Run("returns records ordered by update time", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgCitationRepository(mock)
		ctx := context.Background()

		now := time.Now().UTC()
		mock.ExpectQuery(`SELECT(.|\s)+FROM citation_records\s+ORDER BY updated_at DESC`).
			WithArgs(10).
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "canonical_id", "title", "authors", "year", "venue",
				"doi", "url", "abstract", "pages", "volume", "citation_count",
				"open_access", "verified_via", "created_at", "updated_at",
			}).AddRow(
				uuid.New(), "doi:10.1/a", "First", []byte(`[]`),
				2024, "", "10.1/a", "", "", "", "",
				0, false, domain.SourceTypeOpenAlex, now, now,
			).AddRow(
				uuid.New(), "doi:10.1/b", "Second", []byte(`[]`),
				2023, "", "10.1/b", "", "", "", "",
				0, false, domain.SourceTypePubMed, now, now,
			))

		records, err := repo.ListRecent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "First", records[0].Title)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects non-positive limit", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgCitationRepository(mock)

		_, err = repo.ListRecent(context.Background(), 0)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestPgCitationRepository_InterfaceCompliance(t *testing.T) {
	var _ CitationRepository = (*PgCitationRepository)(nil)
}
