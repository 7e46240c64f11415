package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gunba/taxiv/pkg/legis"
)

const provisionColumns = `internal_id, corpus_id, ref_id, type, local_id, title,
       content_md, level, hierarchy_path, parent_internal_id, sibling_order`

func scanProvision(row pgx.Row) (*legis.Provision, error) {
	var (
		p      legis.Provision
		parent *string
	)
	err := row.Scan(
		&p.InternalID, &p.CorpusID, &p.RefID, &p.Type, &p.LocalID, &p.Title,
		&p.ContentMD, &p.Level, &p.HierarchyPath, &parent, &p.SiblingOrder,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if parent != nil {
		p.ParentInternalID = *parent
	}
	return &p, nil
}

// GetProvision implements [legis.ProvisionReader]. Returns (nil, nil) when no
// provision with the given internal id exists.
func (s *Store) GetProvision(ctx context.Context, internalID string) (*legis.Provision, error) {
	q := fmt.Sprintf(`SELECT %s FROM provisions WHERE internal_id = $1`, provisionColumns)
	p, err := scanProvision(s.pool.QueryRow(ctx, q, internalID))
	if err != nil {
		return nil, wrap("get provision", err)
	}
	return p, nil
}

// FindProvisionByRef implements [legis.ProvisionReader]. It resolves the
// exact ref-id "{corpusID}:{kind}:{localID}".
func (s *Store) FindProvisionByRef(ctx context.Context, corpusID, kind, localID string) (*legis.Provision, error) {
	refID := corpusID + ":" + kind + ":" + localID
	q := fmt.Sprintf(`SELECT %s FROM provisions WHERE corpus_id = $1 AND ref_id = $2`, provisionColumns)
	p, err := scanProvision(s.pool.QueryRow(ctx, q, corpusID, refID))
	if err != nil {
		return nil, wrap("find by ref", err)
	}
	return p, nil
}

// FindProvisionByLocal implements [legis.ProvisionReader]. A bare local id is
// tried against the structural kinds in their canonical resolution order
// (Section first).
func (s *Store) FindProvisionByLocal(ctx context.Context, corpusID, localID string) (*legis.Provision, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM provisions
		WHERE corpus_id = $1 AND local_id = $2 AND type = ANY($3)
		ORDER BY array_position($3, type)
		LIMIT 1`, provisionColumns)
	p, err := scanProvision(s.pool.QueryRow(ctx, q, corpusID, localID, legis.StructuralKinds))
	if err != nil {
		return nil, wrap("find by local", err)
	}
	return p, nil
}

// FindDefinitionsByTitle implements [legis.ProvisionReader]. Title matching
// is case-insensitive and exact.
func (s *Store) FindDefinitionsByTitle(ctx context.Context, corpusID, title string) ([]legis.Provision, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM provisions
		WHERE corpus_id = $1 AND type = $2 AND lower(title) = lower($3)
		ORDER BY internal_id`, provisionColumns)
	rows, err := s.pool.Query(ctx, q, corpusID, legis.KindDefinition, title)
	if err != nil {
		return nil, wrap("find definitions", err)
	}
	defs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (legis.Provision, error) {
		p, err := scanProvision(row)
		if err != nil {
			return legis.Provision{}, err
		}
		return *p, nil
	})
	if err != nil {
		return nil, wrap("find definitions", err)
	}
	return defs, nil
}

// ScanCandidates implements [legis.ProvisionReader]. Unknown ids are skipped.
func (s *Store) ScanCandidates(ctx context.Context, corpusID string, ids []string) ([]legis.ProvisionLite, error) {
	if len(ids) == 0 {
		return []legis.ProvisionLite{}, nil
	}
	const q = `
		SELECT internal_id, ref_id, title, type, content_md
		FROM   provisions
		WHERE  corpus_id = $1 AND internal_id = ANY($2)`
	rows, err := s.pool.Query(ctx, q, corpusID, ids)
	if err != nil {
		return nil, wrap("scan candidates", err)
	}
	lites, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (legis.ProvisionLite, error) {
		var l legis.ProvisionLite
		err := row.Scan(&l.InternalID, &l.RefID, &l.Title, &l.Type, &l.ContentMD)
		return l, err
	})
	if err != nil {
		return nil, wrap("scan candidates", err)
	}
	return lites, nil
}

// ListAncestors implements [legis.ProvisionReader]. Ancestry is derived from
// the dot-separated hierarchy path: a row is an ancestor when the target path
// equals it or extends it by at least one label.
func (s *Store) ListAncestors(ctx context.Context, internalID string) ([]legis.BreadcrumbItem, error) {
	var path string
	err := s.pool.QueryRow(ctx,
		`SELECT hierarchy_path FROM provisions WHERE internal_id = $1`, internalID,
	).Scan(&path)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []legis.BreadcrumbItem{}, nil
		}
		return nil, wrap("list ancestors", err)
	}

	const q = `
		SELECT internal_id, title
		FROM   provisions
		WHERE  $1 = hierarchy_path OR $1 LIKE hierarchy_path || '.%'
		ORDER  BY level, hierarchy_path`
	rows, err := s.pool.Query(ctx, q, path)
	if err != nil {
		return nil, wrap("list ancestors", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (legis.BreadcrumbItem, error) {
		var b legis.BreadcrumbItem
		err := row.Scan(&b.InternalID, &b.Title)
		return b, err
	})
	if err != nil {
		return nil, wrap("list ancestors", err)
	}
	return items, nil
}

// ListChildren implements [legis.ProvisionReader]. An empty parentInternalID
// lists the top level of the corpus. Ordering is sibling order with nulls
// last, then hierarchy path.
func (s *Store) ListChildren(ctx context.Context, corpusID, parentInternalID string) ([]legis.HierarchyNode, error) {
	const base = `
		SELECT p.internal_id, p.ref_id, p.title, p.type, p.sibling_order,
		       EXISTS (
		           SELECT 1 FROM provisions c
		           WHERE c.parent_internal_id = p.internal_id
		       ) AS has_children
		FROM   provisions p
		WHERE  p.corpus_id = $1 AND %s
		ORDER  BY (p.sibling_order IS NULL), p.sibling_order, p.hierarchy_path`

	var (
		rows pgx.Rows
		err  error
	)
	if parentInternalID == "" {
		rows, err = s.pool.Query(ctx, fmt.Sprintf(base, "p.parent_internal_id IS NULL"), corpusID)
	} else {
		rows, err = s.pool.Query(ctx, fmt.Sprintf(base, "p.parent_internal_id = $2"), corpusID, parentInternalID)
	}
	if err != nil {
		return nil, wrap("list children", err)
	}
	nodes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (legis.HierarchyNode, error) {
		var n legis.HierarchyNode
		err := row.Scan(&n.InternalID, &n.RefID, &n.Title, &n.Type, &n.SiblingOrder, &n.HasChildren)
		return n, err
	})
	if err != nil {
		return nil, wrap("list children", err)
	}
	return nodes, nil
}

// ListProvisions implements [legis.IngestWriter].
func (s *Store) ListProvisions(ctx context.Context, corpusID string) ([]legis.Provision, error) {
	q := fmt.Sprintf(`SELECT %s FROM provisions WHERE corpus_id = $1 ORDER BY internal_id`, provisionColumns)
	rows, err := s.pool.Query(ctx, q, corpusID)
	if err != nil {
		return nil, wrap("list provisions", err)
	}
	provs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (legis.Provision, error) {
		p, err := scanProvision(row)
		if err != nil {
			return legis.Provision{}, err
		}
		return *p, nil
	})
	if err != nil {
		return nil, wrap("list provisions", err)
	}
	return provs, nil
}

// UpsertProvisions implements [legis.IngestWriter]. The batch runs in a
// single transaction; re-ingesting a corpus replaces rows in place.
func (s *Store) UpsertProvisions(ctx context.Context, provisions []legis.Provision) error {
	if len(provisions) == 0 {
		return nil
	}
	const q = `
		INSERT INTO provisions (
			internal_id, corpus_id, ref_id, type, local_id, title,
			content_md, level, hierarchy_path, parent_internal_id, sibling_order
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (internal_id) DO UPDATE SET
			corpus_id          = EXCLUDED.corpus_id,
			ref_id             = EXCLUDED.ref_id,
			type               = EXCLUDED.type,
			local_id           = EXCLUDED.local_id,
			title              = EXCLUDED.title,
			content_md         = EXCLUDED.content_md,
			level              = EXCLUDED.level,
			hierarchy_path     = EXCLUDED.hierarchy_path,
			parent_internal_id = EXCLUDED.parent_internal_id,
			sibling_order      = EXCLUDED.sibling_order`

	batch := &pgx.Batch{}
	for _, p := range provisions {
		var parent *string
		if p.ParentInternalID != "" {
			parent = &p.ParentInternalID
		}
		batch.Queue(q,
			p.InternalID, p.CorpusID, p.RefID, p.Type, p.LocalID, p.Title,
			p.ContentMD, p.Level, p.HierarchyPath, parent, p.SiblingOrder,
		)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return wrap("upsert provisions", err)
	}
	return nil
}

// sendBatch runs a batch inside one transaction and closes it.
func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
