package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/gunba/taxiv/pkg/legis"
)

// ReferencesTouching implements [legis.GraphSource]. Only resolved references
// (non-null target) are returned; the citation BFS admits both directions.
func (s *Store) ReferencesTouching(ctx context.Context, frontier []string) ([]legis.Reference, error) {
	if len(frontier) == 0 {
		return []legis.Reference{}, nil
	}
	const q = `
		SELECT source_internal_id, target_ref_id, target_internal_id, snippet
		FROM   "references"
		WHERE  target_internal_id IS NOT NULL
		  AND  (source_internal_id = ANY($1) OR target_internal_id = ANY($1))`
	rows, err := s.pool.Query(ctx, q, frontier)
	if err != nil {
		return nil, wrap("references touching", err)
	}
	refs, err := collectReferences(rows)
	if err != nil {
		return nil, wrap("references touching", err)
	}
	return refs, nil
}

// ListReferences implements [legis.IngestWriter]. Returns the resolved
// citation edges of a corpus, identified by the source id prefix.
func (s *Store) ListReferences(ctx context.Context, corpusID string) ([]legis.Reference, error) {
	const q = `
		SELECT r.source_internal_id, r.target_ref_id, r.target_internal_id, r.snippet
		FROM   "references" r
		JOIN   provisions p ON p.internal_id = r.source_internal_id
		WHERE  p.corpus_id = $1 AND r.target_internal_id IS NOT NULL`
	rows, err := s.pool.Query(ctx, q, corpusID)
	if err != nil {
		return nil, wrap("list references", err)
	}
	refs, err := collectReferences(rows)
	if err != nil {
		return nil, wrap("list references", err)
	}
	return refs, nil
}

func collectReferences(rows pgx.Rows) ([]legis.Reference, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (legis.Reference, error) {
		var (
			r      legis.Reference
			target *string
		)
		if err := row.Scan(&r.SourceInternalID, &r.TargetRefID, &target, &r.Snippet); err != nil {
			return legis.Reference{}, err
		}
		if target != nil {
			r.TargetInternalID = *target
		}
		return r, nil
	})
}

// ListHierarchy implements [legis.GraphSource]. The snapshot carries only the
// parent links and sibling positions the graph builder overlays.
func (s *Store) ListHierarchy(ctx context.Context, corpusID string) ([]legis.HierarchyEntry, error) {
	const q = `
		SELECT internal_id, parent_internal_id, sibling_order
		FROM   provisions
		WHERE  corpus_id = $1
		ORDER  BY internal_id`
	rows, err := s.pool.Query(ctx, q, corpusID)
	if err != nil {
		return nil, wrap("list hierarchy", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (legis.HierarchyEntry, error) {
		var (
			e      legis.HierarchyEntry
			parent *string
		)
		if err := row.Scan(&e.InternalID, &parent, &e.SiblingOrder); err != nil {
			return legis.HierarchyEntry{}, err
		}
		if parent != nil {
			e.ParentInternalID = *parent
		}
		return e, nil
	})
	if err != nil {
		return nil, wrap("list hierarchy", err)
	}
	return entries, nil
}

// TermsUsedBy implements [legis.GraphSource].
func (s *Store) TermsUsedBy(ctx context.Context, ids []string) ([]legis.DefinedTermUsage, error) {
	if len(ids) == 0 {
		return []legis.DefinedTermUsage{}, nil
	}
	const q = `
		SELECT source_internal_id, term_text, definition_internal_id
		FROM   defined_term_usage
		WHERE  source_internal_id = ANY($1)
		ORDER  BY term_text, source_internal_id`
	rows, err := s.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, wrap("terms used by", err)
	}
	usages, err := collectTermUsages(rows)
	if err != nil {
		return nil, wrap("terms used by", err)
	}
	return usages, nil
}

// ProvisionsUsingTerms implements [legis.GraphSource]. Term matching is exact
// on the stored term text; the corpus restriction runs through the source
// provision.
func (s *Store) ProvisionsUsingTerms(ctx context.Context, corpusID string, terms []string) ([]legis.DefinedTermUsage, error) {
	if len(terms) == 0 {
		return []legis.DefinedTermUsage{}, nil
	}
	const q = `
		SELECT u.source_internal_id, u.term_text, u.definition_internal_id
		FROM   defined_term_usage u
		JOIN   provisions p ON p.internal_id = u.source_internal_id
		WHERE  p.corpus_id = $1 AND u.term_text = ANY($2)
		ORDER  BY u.term_text, u.source_internal_id`
	rows, err := s.pool.Query(ctx, q, corpusID, terms)
	if err != nil {
		return nil, wrap("provisions using terms", err)
	}
	usages, err := collectTermUsages(rows)
	if err != nil {
		return nil, wrap("provisions using terms", err)
	}
	return usages, nil
}

// ListTermUsages implements [legis.IngestWriter].
func (s *Store) ListTermUsages(ctx context.Context, corpusID string) ([]legis.DefinedTermUsage, error) {
	const q = `
		SELECT u.source_internal_id, u.term_text, u.definition_internal_id
		FROM   defined_term_usage u
		JOIN   provisions p ON p.internal_id = u.source_internal_id
		WHERE  p.corpus_id = $1
		ORDER  BY u.term_text, u.source_internal_id`
	rows, err := s.pool.Query(ctx, q, corpusID)
	if err != nil {
		return nil, wrap("list term usages", err)
	}
	usages, err := collectTermUsages(rows)
	if err != nil {
		return nil, wrap("list term usages", err)
	}
	return usages, nil
}

func collectTermUsages(rows pgx.Rows) ([]legis.DefinedTermUsage, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (legis.DefinedTermUsage, error) {
		var (
			u   legis.DefinedTermUsage
			def *string
		)
		if err := row.Scan(&u.SourceInternalID, &u.TermText, &def); err != nil {
			return legis.DefinedTermUsage{}, err
		}
		if def != nil {
			u.DefinitionInternalID = *def
		}
		return u, nil
	})
}

// ReferencesFrom implements [legis.ReferenceReader]. Target titles are joined
// in when the target resolved inside the corpus.
func (s *Store) ReferencesFrom(ctx context.Context, internalID string) ([]legis.OutboundReference, error) {
	const q = `
		SELECT r.target_ref_id, r.target_internal_id, COALESCE(t.title, ''), r.snippet
		FROM   "references" r
		LEFT   JOIN provisions t ON t.internal_id = r.target_internal_id
		WHERE  r.source_internal_id = $1
		ORDER  BY r.id`
	rows, err := s.pool.Query(ctx, q, internalID)
	if err != nil {
		return nil, wrap("references from", err)
	}
	refs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (legis.OutboundReference, error) {
		var (
			r      legis.OutboundReference
			target *string
		)
		if err := row.Scan(&r.TargetRefID, &target, &r.TargetTitle, &r.Snippet); err != nil {
			return legis.OutboundReference{}, err
		}
		if target != nil {
			r.TargetInternalID = *target
		}
		return r, nil
	})
	if err != nil {
		return nil, wrap("references from", err)
	}
	return refs, nil
}

// ReferencesTo implements [legis.ReferenceReader]. Sources are deduplicated:
// a provision citing the target several times appears once.
func (s *Store) ReferencesTo(ctx context.Context, internalID string) ([]legis.InboundReference, error) {
	const q = `
		SELECT DISTINCT s.internal_id, s.ref_id, s.title
		FROM   "references" r
		JOIN   provisions s ON s.internal_id = r.source_internal_id
		WHERE  r.target_internal_id = $1
		ORDER  BY s.internal_id`
	rows, err := s.pool.Query(ctx, q, internalID)
	if err != nil {
		return nil, wrap("references to", err)
	}
	refs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (legis.InboundReference, error) {
		var r legis.InboundReference
		err := row.Scan(&r.SourceInternalID, &r.SourceRefID, &r.SourceTitle)
		return r, err
	})
	if err != nil {
		return nil, wrap("references to", err)
	}
	return refs, nil
}

// UpsertReferences implements [legis.IngestWriter]. References carry no
// natural key, so re-ingest first clears the source's rows.
func (s *Store) UpsertReferences(ctx context.Context, refs []legis.Reference) error {
	if len(refs) == 0 {
		return nil
	}
	sources := make(map[string]struct{}, len(refs))
	var sourceIDs []string
	for _, r := range refs {
		if _, ok := sources[r.SourceInternalID]; !ok {
			sources[r.SourceInternalID] = struct{}{}
			sourceIDs = append(sourceIDs, r.SourceInternalID)
		}
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM "references" WHERE source_internal_id = ANY($1)`, sourceIDs)
	const q = `
		INSERT INTO "references" (source_internal_id, target_ref_id, target_internal_id, snippet)
		VALUES ($1, $2, $3, $4)`
	for _, r := range refs {
		var target *string
		if r.TargetInternalID != "" {
			target = &r.TargetInternalID
		}
		batch.Queue(q, r.SourceInternalID, r.TargetRefID, target, r.Snippet)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return wrap("upsert references", err)
	}
	return nil
}

// UpsertTermUsages implements [legis.IngestWriter].
func (s *Store) UpsertTermUsages(ctx context.Context, usages []legis.DefinedTermUsage) error {
	if len(usages) == 0 {
		return nil
	}
	const q = `
		INSERT INTO defined_term_usage (source_internal_id, term_text, definition_internal_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_internal_id, term_text) DO UPDATE SET
			definition_internal_id = EXCLUDED.definition_internal_id`
	batch := &pgx.Batch{}
	for _, u := range usages {
		var def *string
		if u.DefinitionInternalID != "" {
			def = &u.DefinitionInternalID
		}
		batch.Queue(q, u.SourceInternalID, u.TermText, def)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return wrap("upsert term usages", err)
	}
	return nil
}
