package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/gunba/taxiv/pkg/legis"
)

// LexicalQuery implements [legis.LexicalSearcher].
//
// A row qualifies when the websearch tsquery matches, the relaxed OR-tsquery
// matches, or its best trigram similarity reaches trigramFloor. The full-text
// rank is the better of the english and simple configurations; the trigram
// score is the best of title/content against the raw and normalised forms.
// Rows come back ordered by the 0.7/0.3 blend so LIMIT keeps the right ones,
// but the components are returned unblended for the retriever to score.
func (s *Store) LexicalQuery(ctx context.Context, corpusID, normalized, raw string, orTerms []string, trigramFloor float64, limit int) ([]legis.LexicalHit, error) {
	if strings.TrimSpace(normalized) == "" && len(orTerms) == 0 {
		return []legis.LexicalHit{}, nil
	}

	args := []any{corpusID, normalized, raw, trigramFloor}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	match := `(
		    d.doc_en @@ websearch_to_tsquery('english', $2)
		 OR d.tri_score >= $4`
	if len(orTerms) > 0 {
		orQuery := strings.Join(orTerms, " | ")
		match += "\n\t\t OR d.doc_en @@ to_tsquery('english', " + next(orQuery) + ")"
	}
	match += ")"

	limitArg := next(limit)

	q := fmt.Sprintf(`
		SELECT p.internal_id, p.type,
		       GREATEST(
		           ts_rank(d.doc_en, websearch_to_tsquery('english', $2)),
		           ts_rank(d.doc_simple, websearch_to_tsquery('simple', $2))
		       ) AS ts_score,
		       d.tri_score
		FROM   provisions p
		CROSS  JOIN LATERAL (
		    SELECT to_tsvector('english', p.title || ' ' || p.content_md) AS doc_en,
		           to_tsvector('simple', p.title || ' ' || p.content_md)  AS doc_simple,
		           GREATEST(
		               similarity(p.title, $2), similarity(p.content_md, $2),
		               similarity(p.title, $3), similarity(p.content_md, $3)
		           ) AS tri_score
		) d
		WHERE  p.corpus_id = $1
		  AND  %s
		ORDER  BY GREATEST(
		           ts_rank(d.doc_en, websearch_to_tsquery('english', $2)),
		           ts_rank(d.doc_simple, websearch_to_tsquery('simple', $2))
		       ) * 0.7 + d.tri_score * 0.3 DESC
		LIMIT  %s`, match, limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, wrap("lexical query", err)
	}
	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (legis.LexicalHit, error) {
		var h legis.LexicalHit
		err := row.Scan(&h.InternalID, &h.Type, &h.TSScore, &h.TriScore)
		return h, err
	})
	if err != nil {
		return nil, wrap("lexical query", err)
	}
	return hits, nil
}
