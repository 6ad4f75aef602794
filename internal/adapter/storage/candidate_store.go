// internal/adapter/storage/candidate_store.go

package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/Amro212/meme-radar/internal/domain/meme"
)

// CandidateStore persists the per-run trend candidate set.
type CandidateStore struct {
	db *pgxpool.Pool
}

// NewCandidateStore creates a new candidate store.
func NewCandidateStore(db *pgxpool.Pool) *CandidateStore {
	return &CandidateStore{
		db: db,
	}
}

// ReplaceAll swaps the full candidate set in one transaction. Readers never
// observe a half-replaced set.
func (s *CandidateStore) ReplaceAll(ctx context.Context, candidates []meme.TrendCandidate) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return persistenceErr("beginning candidate transaction", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM trend_candidates`); err != nil {
		return persistenceErr("clearing candidate set", err)
	}

	query := `
		INSERT INTO trend_candidates (
			id, unit_kind, unit_key, platform, window_index,
			current_frequency, baseline_mean, baseline_stddev,
			acceleration_score, z_score, trend_score,
			sum_engagement, distinct_authors,
			spread_posts, spread_platforms, strong_spread,
			cross_platform, platforms, examples, detected_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11,
			$12, $13,
			$14, $15, $16,
			$17, $18, $19, $20
		)
	`

	for _, c := range candidates {
		platformsJSON, err := json.Marshal(c.Platforms)
		if err != nil {
			return fmt.Errorf("error marshaling platforms: %w", err)
		}

		examplesJSON, err := json.Marshal(c.Examples)
		if err != nil {
			return fmt.Errorf("error marshaling examples: %w", err)
		}

		_, err = tx.Exec(
			ctx,
			query,
			c.ID,
			c.Unit.Kind,
			c.Unit.Key,
			c.Platform,
			c.WindowIndex,
			c.CurrentFrequency,
			c.BaselineMean,
			c.BaselineStddev,
			c.Acceleration,
			c.ZScore,
			c.TrendScore,
			c.SumEngagement,
			c.DistinctAuthors,
			c.SpreadPosts,
			c.SpreadPlatforms,
			c.StrongSpread,
			c.CrossPlatform,
			platformsJSON,
			examplesJSON,
			c.DetectedAt,
		)
		if err != nil {
			return persistenceErr("inserting candidate", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return persistenceErr("committing candidate transaction", err)
	}

	return nil
}

// Find returns candidates matching the filter, ranked.
func (s *CandidateStore) Find(ctx context.Context, filter meme.Filter) ([]meme.TrendCandidate, error) {
	query := `
		SELECT
			id, unit_kind, unit_key, platform, window_index,
			current_frequency, baseline_mean, baseline_stddev,
			acceleration_score, z_score, trend_score,
			sum_engagement, distinct_authors,
			spread_posts, spread_platforms, strong_spread,
			cross_platform, platforms, examples, detected_at
		FROM trend_candidates
		WHERE trend_score >= $1
	`

	args := []interface{}{filter.MinScore}
	argIndex := 2

	if filter.Platform != "" {
		query += fmt.Sprintf(" AND platform = $%d", argIndex)
		args = append(args, filter.Platform)
		argIndex++
	}

	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND detected_at >= $%d", argIndex)
		args = append(args, filter.Since)
		argIndex++
	}

	if filter.CrossOnly {
		query += " AND cross_platform = true"
	}

	query += " ORDER BY trend_score DESC, current_frequency DESC, unit_kind ASC, unit_key ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, persistenceErr("querying candidates", err)
	}
	defer rows.Close()

	var candidates []meme.TrendCandidate
	for rows.Next() {
		var c meme.TrendCandidate
		var platformsJSON, examplesJSON []byte

		err := rows.Scan(
			&c.ID,
			&c.Unit.Kind,
			&c.Unit.Key,
			&c.Platform,
			&c.WindowIndex,
			&c.CurrentFrequency,
			&c.BaselineMean,
			&c.BaselineStddev,
			&c.Acceleration,
			&c.ZScore,
			&c.TrendScore,
			&c.SumEngagement,
			&c.DistinctAuthors,
			&c.SpreadPosts,
			&c.SpreadPlatforms,
			&c.StrongSpread,
			&c.CrossPlatform,
			&platformsJSON,
			&examplesJSON,
			&c.DetectedAt,
		)
		if err != nil {
			return nil, persistenceErr("scanning candidate row", err)
		}

		if err := json.Unmarshal(platformsJSON, &c.Platforms); err != nil {
			return nil, fmt.Errorf("error unmarshaling platforms: %w", err)
		}
		if err := json.Unmarshal(examplesJSON, &c.Examples); err != nil {
			return nil, fmt.Errorf("error unmarshaling examples: %w", err)
		}

		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterating candidate rows", err)
	}

	return candidates, nil
}
