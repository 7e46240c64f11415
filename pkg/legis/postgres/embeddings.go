package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/gunba/taxiv/pkg/legis"
)

// GetEmbedding implements [legis.GraphSource]. Returns (nil, nil) on miss so
// a seed without a vector degrades to the non-semantic views.
func (s *Store) GetEmbedding(ctx context.Context, kind, entityID, model string) ([]float32, error) {
	const q = `
		SELECT vector
		FROM   embeddings
		WHERE  entity_kind = $1 AND entity_id = $2 AND model = $3`
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx, q, kind, entityID, model).Scan(&vec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrap("get embedding", err)
	}
	return vec.Slice(), nil
}

// SemanticKNN implements [legis.GraphSource]. Vectors are L2-normalised at
// write time, so the L2 distance d maps to cosine similarity as 1 - d/2.
func (s *Store) SemanticKNN(ctx context.Context, kind, model string, vector []float32, limit int) ([]legis.SemanticHit, error) {
	const q = `
		SELECT entity_id,
		       1.0 - ((vector <-> $3)::float8 / 2.0) AS sim
		FROM   embeddings
		WHERE  entity_kind = $1 AND model = $2
		ORDER  BY vector <-> $3
		LIMIT  $4`
	rows, err := s.pool.Query(ctx, q, kind, model, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, wrap("semantic knn", err)
	}
	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (legis.SemanticHit, error) {
		var h legis.SemanticHit
		err := row.Scan(&h.EntityID, &h.Similarity)
		return h, err
	})
	if err != nil {
		return nil, wrap("semantic knn", err)
	}
	return hits, nil
}

// UpsertEmbeddings implements [legis.IngestWriter]. One transaction per call.
func (s *Store) UpsertEmbeddings(ctx context.Context, embeddings []legis.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	const q = `
		INSERT INTO embeddings (entity_kind, entity_id, model, dim, vector, l2_norm, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (entity_kind, entity_id, model) DO UPDATE SET
			dim        = EXCLUDED.dim,
			vector     = EXCLUDED.vector,
			l2_norm    = EXCLUDED.l2_norm,
			updated_at = now()`
	batch := &pgx.Batch{}
	for _, e := range embeddings {
		batch.Queue(q, e.EntityKind, e.EntityID, e.Model, e.Dim, pgvector.NewVector(e.Vector), e.L2Norm)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return wrap("upsert embeddings", err)
	}
	return nil
}
