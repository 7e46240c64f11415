package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/gunba/taxiv/pkg/legis"
)

// GetBaseline implements [legis.ArtifactStore]. Every requested id is present
// in the result; absent scores default to 1e-12 so lift denominators never
// reach zero.
func (s *Store) GetBaseline(ctx context.Context, ids []string) (map[string]float64, error) {
	pi := make(map[string]float64, len(ids))
	for _, id := range ids {
		pi[id] = 1e-12
	}
	if len(ids) == 0 {
		return pi, nil
	}

	const q = `SELECT provision_id, pi FROM baseline_scores WHERE provision_id = ANY($1)`
	rows, err := s.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, wrap("get baseline", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    string
			value float64
		)
		if err := rows.Scan(&id, &value); err != nil {
			return nil, wrap("get baseline", err)
		}
		pi[id] = value
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("get baseline", err)
	}
	return pi, nil
}

// PutBaseline implements [legis.ArtifactStore]. The previous baseline of the
// corpus is replaced in the same transaction, so a reader never observes a
// mixed distribution.
func (s *Store) PutBaseline(ctx context.Context, corpusID string, pi map[string]float64, version int) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM baseline_scores WHERE corpus_id = $1`, corpusID)
	const q = `
		INSERT INTO baseline_scores (provision_id, corpus_id, pi, graph_version)
		VALUES ($1, $2, $3, $4)`
	for id, value := range pi {
		batch.Queue(q, id, corpusID, value, version)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return wrap("put baseline", err)
	}
	return nil
}

// GetFingerprints implements [legis.ArtifactStore]. Rows whose stored graph
// version differs from expectedVersion count as misses.
func (s *Store) GetFingerprints(ctx context.Context, ids []string, expectedVersion int) (map[string]legis.Fingerprint, []string, error) {
	hits := make(map[string]legis.Fingerprint, len(ids))
	if len(ids) == 0 {
		return hits, nil, nil
	}

	const q = `
		SELECT source_id, neighbors, captured_mass, graph_version
		FROM   relatedness_fingerprints
		WHERE  source_id = ANY($1) AND graph_version = $2`
	rows, err := s.pool.Query(ctx, q, ids, expectedVersion)
	if err != nil {
		return nil, nil, wrap("get fingerprints", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       string
			raw      []byte
			fp       legis.Fingerprint
			captured float64
			version  int
		)
		if err := rows.Scan(&id, &raw, &captured, &version); err != nil {
			return nil, nil, wrap("get fingerprints", err)
		}
		if err := json.Unmarshal(raw, &fp.Neighbors); err != nil {
			return nil, nil, wrap("get fingerprints: decode neighbors", err)
		}
		fp.Captured = captured
		fp.GraphVersion = version
		hits[id] = fp
	}
	if err := rows.Err(); err != nil {
		return nil, nil, wrap("get fingerprints", err)
	}

	var missing []string
	for _, id := range ids {
		if _, ok := hits[id]; !ok {
			missing = append(missing, id)
		}
	}
	return hits, missing, nil
}

// PutFingerprint implements [legis.ArtifactStore]. Last writer wins;
// concurrent lazy writers for the same seed produce equal rows.
func (s *Store) PutFingerprint(ctx context.Context, sourceID string, fp legis.Fingerprint) error {
	raw, err := json.Marshal(fp.Neighbors)
	if err != nil {
		return wrap("put fingerprint: encode neighbors", err)
	}
	const q = `
		INSERT INTO relatedness_fingerprints (source_id, neighbors, captured_mass, graph_version, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (source_id) DO UPDATE SET
			neighbors     = EXCLUDED.neighbors,
			captured_mass = EXCLUDED.captured_mass,
			graph_version = EXCLUDED.graph_version,
			updated_at    = now()`
	if _, err := s.pool.Exec(ctx, q, sourceID, raw, fp.Captured, fp.GraphVersion); err != nil {
		return wrap("put fingerprint", err)
	}
	return nil
}

// PutFingerprints implements [legis.ArtifactStore]. The whole map lands in a
// single transaction, used by the indexer's bulk precompute.
func (s *Store) PutFingerprints(ctx context.Context, fps map[string]legis.Fingerprint) error {
	if len(fps) == 0 {
		return nil
	}
	const q = `
		INSERT INTO relatedness_fingerprints (source_id, neighbors, captured_mass, graph_version, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (source_id) DO UPDATE SET
			neighbors     = EXCLUDED.neighbors,
			captured_mass = EXCLUDED.captured_mass,
			graph_version = EXCLUDED.graph_version,
			updated_at    = now()`
	batch := &pgx.Batch{}
	for id, fp := range fps {
		raw, err := json.Marshal(fp.Neighbors)
		if err != nil {
			return wrap("put fingerprints: encode neighbors", err)
		}
		batch.Queue(q, id, raw, fp.Captured, fp.GraphVersion)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return wrap("put fingerprints", err)
	}
	return nil
}

// CurrentGraphVersion implements [legis.ArtifactStore].
func (s *Store) CurrentGraphVersion(ctx context.Context) (int, error) {
	const q = `SELECT version FROM graph_version WHERE id = 1`
	var version int
	if err := s.pool.QueryRow(ctx, q).Scan(&version); err != nil {
		return 0, wrap("current graph version", err)
	}
	return version, nil
}

// GraphVersionInfo implements [legis.ArtifactStore].
func (s *Store) GraphVersionInfo(ctx context.Context) (legis.GraphVersion, error) {
	const q = `SELECT version, updated_at FROM graph_version WHERE id = 1`
	var gv legis.GraphVersion
	if err := s.pool.QueryRow(ctx, q).Scan(&gv.Version, &gv.UpdatedAt); err != nil {
		return legis.GraphVersion{}, wrap("graph version info", err)
	}
	return gv, nil
}

// BumpGraphVersion implements [legis.ArtifactStore]. The single-row update
// serialises concurrent bumps on the row lock.
func (s *Store) BumpGraphVersion(ctx context.Context) (int, error) {
	const q = `
		UPDATE graph_version
		SET    version = version + 1, updated_at = now()
		WHERE  id = 1
		RETURNING version`
	var version int
	if err := s.pool.QueryRow(ctx, q).Scan(&version); err != nil {
		return 0, wrap("bump graph version", err)
	}
	return version, nil
}
