package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"producer/internal/domain"
)

// TrendRepositoryPG implements domain.TrendSource using PostgreSQL. It reads
// the harvested viral content table maintained by the external scraper.
type TrendRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewTrendRepository constructs a new trend repository instance.
func NewTrendRepository(pool *pgxpool.Pool) *TrendRepositoryPG {
	return &TrendRepositoryPG{pool: pool}
}

// Fetch returns content records within the lookback window with at least
// minViews views, most viewed first. Records without a headline are skipped;
// they carry nothing the analysis can pattern-match on.
func (r *TrendRepositoryPG) Fetch(ctx context.Context, lookbackDays, minViews, limit int) ([]domain.ContentRecord, error) {
	if lookbackDays <= 0 {
		lookbackDays = 7
	}
	if limit <= 0 {
		limit = 20
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -lookbackDays)

	rows, err := r.pool.Query(ctx, `
SELECT id, headline, COALESCE(transcript, ''), views, likes, comments, "publishedAt", COALESCE("originalUrl", '')
FROM content_items
WHERE views >= $1
  AND "publishedAt" >= $2
  AND headline IS NOT NULL
ORDER BY views DESC
LIMIT $3;
`, minViews, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.ContentRecord
	for rows.Next() {
		var rec domain.ContentRecord
		if err := rows.Scan(&rec.ID, &rec.Headline, &rec.Transcript, &rec.Views, &rec.Likes, &rec.Comments, &rec.PublishedAt, &rec.URL); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

var _ domain.TrendSource = (*TrendRepositoryPG)(nil)
