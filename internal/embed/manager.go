package embed

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gunba/taxiv/pkg/legis"
)

// defaultBatchSize is how many provisions are embedded per API request.
const defaultBatchSize = 64

// Deps is the store slice the backfill needs.
type Deps interface {
	ListProvisions(ctx context.Context, corpusID string) ([]legis.Provision, error)
	GetEmbedding(ctx context.Context, kind, entityID, model string) ([]float32, error)
	UpsertEmbeddings(ctx context.Context, embeddings []legis.Embedding) error
}

// Manager backfills missing provision embeddings for a corpus at ingest
// time.
type Manager struct {
	store    Deps
	embedder Embedder

	// BatchSize overrides the per-request batch when positive.
	BatchSize int
}

// NewManager creates a Manager.
func NewManager(store Deps, embedder Embedder) *Manager {
	return &Manager{store: store, embedder: embedder}
}

// BackfillCorpus embeds every provision of corpusID that has no stored
// vector for the manager's model. Returns the number of vectors written.
func (m *Manager) BackfillCorpus(ctx context.Context, corpusID string) (int, error) {
	provisions, err := m.store.ListProvisions(ctx, corpusID)
	if err != nil {
		return 0, err
	}

	batchSize := m.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	var (
		pending []legis.Provision
		written int
	)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		texts := make([]string, len(pending))
		for i, p := range pending {
			texts[i] = embeddingText(p)
		}
		vecs, err := m.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		rows := make([]legis.Embedding, len(pending))
		for i, p := range pending {
			rows[i] = legis.Embedding{
				EntityKind: legis.EntityKindProvision,
				EntityID:   p.InternalID,
				Model:      m.embedder.Model(),
				Dim:        m.embedder.Dim(),
				Vector:     vecs[i],
				L2Norm:     1.0,
			}
		}
		if err := m.store.UpsertEmbeddings(ctx, rows); err != nil {
			return err
		}
		written += len(rows)
		pending = pending[:0]
		return nil
	}

	for _, p := range provisions {
		existing, err := m.store.GetEmbedding(ctx, legis.EntityKindProvision, p.InternalID, m.embedder.Model())
		if err != nil {
			return written, err
		}
		if existing != nil {
			continue
		}
		pending = append(pending, p)
		if len(pending) >= batchSize {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}

	slog.Info("embedding backfill complete", "corpus", corpusID, "written", written)
	return written, nil
}

// embeddingText is the text fed to the model: title plus content, trimmed.
func embeddingText(p legis.Provision) string {
	return strings.TrimSpace(p.Title + "\n" + p.ContentMD)
}
