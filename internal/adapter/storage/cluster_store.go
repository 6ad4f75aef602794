// internal/adapter/storage/cluster_store.go

package storage

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
)

// ClusterStore persists the media-hash to cluster-id mapping so image
// template identities survive restarts.
type ClusterStore struct {
	db *pgxpool.Pool
}

// NewClusterStore creates a new cluster store.
func NewClusterStore(db *pgxpool.Pool) *ClusterStore {
	return &ClusterStore{
		db: db,
	}
}

// Load returns every recorded assignment.
func (s *ClusterStore) Load(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.Query(ctx, `SELECT media_hash, cluster_id FROM cluster_assignments`)
	if err != nil {
		return nil, persistenceErr("querying cluster assignments", err)
	}
	defer rows.Close()

	assignments := make(map[string]string)
	for rows.Next() {
		var hash, cluster string
		if err := rows.Scan(&hash, &cluster); err != nil {
			return nil, persistenceErr("scanning cluster assignment", err)
		}
		assignments[hash] = cluster
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterating cluster assignments", err)
	}

	return assignments, nil
}

// Save writes the current assignments. An assignment is immutable once made,
// so existing rows are left untouched.
func (s *ClusterStore) Save(ctx context.Context, assignments map[string]string) error {
	if len(assignments) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return persistenceErr("beginning cluster transaction", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO cluster_assignments (media_hash, cluster_id)
		VALUES ($1, $2)
		ON CONFLICT (media_hash) DO NOTHING
	`

	for hash, cluster := range assignments {
		if _, err := tx.Exec(ctx, query, hash, cluster); err != nil {
			return persistenceErr("inserting cluster assignment", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return persistenceErr("committing cluster transaction", err)
	}

	return nil
}
