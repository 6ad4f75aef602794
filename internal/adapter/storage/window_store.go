// internal/adapter/storage/window_store.go

package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/Amro212/meme-radar/internal/domain/meme"
)

// persistenceErr tags a storage failure so callers can match it with
// errors.Is against meme.ErrPersistenceUnavailable.
func persistenceErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, meme.ErrPersistenceUnavailable, err)
}

// WindowStore persists finalized per-window statistics.
type WindowStore struct {
	db *pgxpool.Pool
}

// NewWindowStore creates a new window store.
func NewWindowStore(db *pgxpool.Pool) *WindowStore {
	return &WindowStore{
		db: db,
	}
}

// SaveStats writes a batch of finalized window stats in one transaction.
// Re-flushing the same window overwrites the previous row, so a pass that
// failed after a partial publish can be retried safely.
func (s *WindowStore) SaveStats(ctx context.Context, stats []meme.WindowStat) error {
	if len(stats) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return persistenceErr("beginning stats transaction", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO window_stats (
			unit_kind, unit_key, platform, window_index,
			count_posts, count_comments, sum_engagement,
			distinct_posts, distinct_authors, engaged_posts,
			emoji_signals, examples
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10,
			$11, $12
		)
		ON CONFLICT (unit_kind, unit_key, platform, window_index) DO UPDATE
		SET
			count_posts = $5,
			count_comments = $6,
			sum_engagement = $7,
			distinct_posts = $8,
			distinct_authors = $9,
			engaged_posts = $10,
			emoji_signals = $11,
			examples = $12
	`

	for _, stat := range stats {
		examplesJSON, err := json.Marshal(stat.Examples)
		if err != nil {
			return fmt.Errorf("error marshaling examples: %w", err)
		}

		_, err = tx.Exec(
			ctx,
			query,
			stat.Unit.Kind,
			stat.Unit.Key,
			stat.Platform,
			stat.WindowIndex,
			stat.CountPosts,
			stat.CountComments,
			stat.SumEngagement,
			stat.DistinctPosts,
			stat.DistinctAuthors,
			stat.EngagedPosts,
			stat.EmojiSignals,
			examplesJSON,
		)
		if err != nil {
			return persistenceErr("inserting window stat", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return persistenceErr("committing stats transaction", err)
	}

	return nil
}

// History returns up to n windows for a (unit, platform) pair ending at the
// given window index, oldest first. Windows missing inside the range come
// back as zero-count stats so baselines stay unbiased; a unit with no
// recorded windows in the range at all returns an empty history.
func (s *WindowStore) History(ctx context.Context, unit meme.UnitKey, platform meme.Platform, through int64, n int) (meme.History, error) {
	if n <= 0 {
		return nil, nil
	}
	lowest := through - int64(n) + 1

	query := `
		SELECT
			window_index, count_posts, count_comments, sum_engagement,
			distinct_posts, distinct_authors, engaged_posts, emoji_signals
		FROM window_stats
		WHERE unit_kind = $1 AND unit_key = $2 AND platform = $3
		AND window_index BETWEEN $4 AND $5
		ORDER BY window_index ASC
	`

	rows, err := s.db.Query(ctx, query, unit.Kind, unit.Key, platform, lowest, through)
	if err != nil {
		return nil, persistenceErr("querying history", err)
	}
	defer rows.Close()

	found := make(map[int64]meme.WindowStat)
	for rows.Next() {
		stat := meme.WindowStat{Unit: unit, Platform: platform}
		err := rows.Scan(
			&stat.WindowIndex,
			&stat.CountPosts,
			&stat.CountComments,
			&stat.SumEngagement,
			&stat.DistinctPosts,
			&stat.DistinctAuthors,
			&stat.EngagedPosts,
			&stat.EmojiSignals,
		)
		if err != nil {
			return nil, persistenceErr("scanning history row", err)
		}
		found[stat.WindowIndex] = stat
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterating history rows", err)
	}

	// A unit never seen before this window has no baseline at all, which is
	// different from a tracked unit that went quiet.
	if len(found) == 0 {
		return meme.History{}, nil
	}

	history := make(meme.History, 0, n)
	for idx := lowest; idx <= through; idx++ {
		if stat, ok := found[idx]; ok {
			history = append(history, stat)
			continue
		}
		history = append(history, meme.WindowStat{
			Unit:        unit,
			Platform:    platform,
			WindowIndex: idx,
		})
	}

	return history, nil
}

// RecentUnitStats returns a unit's stats across all platforms from the given
// window index onward.
func (s *WindowStore) RecentUnitStats(ctx context.Context, unit meme.UnitKey, since int64) ([]meme.WindowStat, error) {
	query := `
		SELECT
			platform, window_index, count_posts, count_comments,
			sum_engagement, distinct_posts, distinct_authors,
			engaged_posts, emoji_signals
		FROM window_stats
		WHERE unit_kind = $1 AND unit_key = $2 AND window_index >= $3
		ORDER BY window_index ASC, platform ASC
	`

	rows, err := s.db.Query(ctx, query, unit.Kind, unit.Key, since)
	if err != nil {
		return nil, persistenceErr("querying recent unit stats", err)
	}
	defer rows.Close()

	var stats []meme.WindowStat
	for rows.Next() {
		stat := meme.WindowStat{Unit: unit}
		err := rows.Scan(
			&stat.Platform,
			&stat.WindowIndex,
			&stat.CountPosts,
			&stat.CountComments,
			&stat.SumEngagement,
			&stat.DistinctPosts,
			&stat.DistinctAuthors,
			&stat.EngagedPosts,
			&stat.EmojiSignals,
		)
		if err != nil {
			return nil, persistenceErr("scanning unit stat row", err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterating unit stat rows", err)
	}

	return stats, nil
}
