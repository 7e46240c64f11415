// Package postgres provides the PostgreSQL-backed implementation of the
// [legis.Store] contract. It owns every persisted table of the system:
// provisions, references, defined-term usages, embeddings, baseline scores,
// relatedness fingerprints, and the graph version row.
//
// The pgvector and pg_trgm extensions must be available in the target
// database; [Migrate] installs them via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 384)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Corpus DDL — provisions, references, defined-term usages
// ─────────────────────────────────────────────────────────────────────────────

const ddlCorpus = `
CREATE TABLE IF NOT EXISTS provisions (
    internal_id         TEXT         PRIMARY KEY,
    corpus_id           TEXT         NOT NULL,
    ref_id              TEXT         NOT NULL UNIQUE,
    type                TEXT         NOT NULL,
    local_id            TEXT         NOT NULL DEFAULT '',
    title               TEXT         NOT NULL,
    content_md          TEXT         NOT NULL DEFAULT '',
    level               INTEGER      NOT NULL DEFAULT 0,
    hierarchy_path      TEXT         NOT NULL,
    parent_internal_id  TEXT,
    sibling_order       INTEGER
);

CREATE INDEX IF NOT EXISTS idx_provisions_corpus
    ON provisions (corpus_id);

CREATE INDEX IF NOT EXISTS idx_provisions_corpus_local
    ON provisions (corpus_id, local_id);

CREATE INDEX IF NOT EXISTS idx_provisions_corpus_type
    ON provisions (corpus_id, type);

CREATE INDEX IF NOT EXISTS idx_provisions_parent
    ON provisions (parent_internal_id);

CREATE INDEX IF NOT EXISTS idx_provisions_path
    ON provisions (hierarchy_path);

CREATE INDEX IF NOT EXISTS idx_provisions_fts
    ON provisions USING GIN (to_tsvector('english', title || ' ' || content_md));

CREATE INDEX IF NOT EXISTS idx_provisions_title_trgm
    ON provisions USING GIN (title gin_trgm_ops);

CREATE TABLE IF NOT EXISTS "references" (
    id                  BIGSERIAL    PRIMARY KEY,
    source_internal_id  TEXT         NOT NULL REFERENCES provisions (internal_id) ON DELETE CASCADE,
    target_ref_id       TEXT         NOT NULL,
    target_internal_id  TEXT,
    snippet             TEXT         NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_references_source
    ON "references" (source_internal_id);

CREATE INDEX IF NOT EXISTS idx_references_target
    ON "references" (target_internal_id);

CREATE TABLE IF NOT EXISTS defined_term_usage (
    id                      BIGSERIAL  PRIMARY KEY,
    source_internal_id      TEXT       NOT NULL REFERENCES provisions (internal_id) ON DELETE CASCADE,
    term_text               TEXT       NOT NULL,
    definition_internal_id  TEXT,
    UNIQUE (source_internal_id, term_text)
);

CREATE INDEX IF NOT EXISTS idx_term_usage_term
    ON defined_term_usage (term_text);
`

// ─────────────────────────────────────────────────────────────────────────────
// Relatedness DDL — baseline scores, fingerprints, graph version
// ─────────────────────────────────────────────────────────────────────────────

const ddlRelatedness = `
CREATE TABLE IF NOT EXISTS baseline_scores (
    provision_id   TEXT              PRIMARY KEY,
    corpus_id      TEXT              NOT NULL,
    pi             DOUBLE PRECISION  NOT NULL,
    graph_version  INTEGER           NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_baseline_corpus
    ON baseline_scores (corpus_id);

CREATE TABLE IF NOT EXISTS relatedness_fingerprints (
    source_id      TEXT              PRIMARY KEY,
    neighbors      JSONB             NOT NULL DEFAULT '[]',
    captured_mass  DOUBLE PRECISION  NOT NULL DEFAULT 0,
    graph_version  INTEGER           NOT NULL,
    updated_at     TIMESTAMPTZ       NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS graph_version (
    id          INTEGER      PRIMARY KEY DEFAULT 1 CHECK (id = 1),
    version     INTEGER      NOT NULL DEFAULT 1,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

INSERT INTO graph_version (id, version)
    VALUES (1, 1)
    ON CONFLICT (id) DO NOTHING;
`

// ddlEmbeddings returns the embeddings DDL with the vector dimension
// substituted. The dimension is baked into the column type at schema creation
// time; changing it later requires a manual migration.
func ddlEmbeddings(dim int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS embeddings (
    id           BIGSERIAL         PRIMARY KEY,
    entity_kind  TEXT              NOT NULL,
    entity_id    TEXT              NOT NULL,
    model        TEXT              NOT NULL,
    dim          INTEGER           NOT NULL,
    vector       vector(%d)        NOT NULL,
    l2_norm      DOUBLE PRECISION  NOT NULL DEFAULT 1,
    updated_at   TIMESTAMPTZ       NOT NULL DEFAULT now(),
    UNIQUE (entity_kind, entity_id, model)
);

CREATE INDEX IF NOT EXISTS idx_embeddings_vector_hnsw
    ON embeddings USING hnsw (vector vector_l2_ops);
`, dim)
}

const ddlExtensions = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE EXTENSION IF NOT EXISTS pg_trgm;
`

// Migrate creates or ensures all required tables, indexes, and extensions.
// It is idempotent and safe to call on every application start.
//
// embeddingDim must match the vector model configured for the deployment
// (e.g. 384 for all-MiniLM-L6-v2, 1536 for OpenAI text-embedding-3-small).
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDim int) error {
	statements := []string{
		ddlExtensions,
		ddlCorpus,
		ddlEmbeddings(embeddingDim),
		ddlRelatedness,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("legis store: migrate: %w", err)
		}
	}
	return nil
}
