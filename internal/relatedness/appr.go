package relatedness

import (
	"sort"

	"github.com/gunba/taxiv/internal/graph"
	"github.com/gunba/taxiv/pkg/legis"
)

// neighborProb is one row entry of the normalised adjacency.
type neighborProb struct {
	id   string
	prob float64
}

// adjacency maps each node to its normalised out-row. Rows are sorted by
// neighbour id so walks are deterministic and fingerprints bit-stable.
type adjacency map[string][]neighborProb

// mixAdjacency folds the typed edges into a single weighted adjacency using
// the per-view mixing weights, then row-normalises. A node with no outgoing
// weight gets a single self-loop.
func (e *Engine) mixAdjacency(nodes []string, edges []graph.TypedEdge) adjacency {
	weights := make(map[string]map[string]float64, len(nodes))
	row := func(u string) map[string]float64 {
		r, ok := weights[u]
		if !ok {
			r = make(map[string]float64)
			weights[u] = r
		}
		return r
	}

	for _, edge := range edges {
		var alpha float64
		switch edge.View {
		case graph.ViewCitation:
			alpha = e.cfg.AlphaCitation
		case graph.ViewHierarchy:
			alpha = e.cfg.AlphaHierarchy
		case graph.ViewTerm:
			alpha = e.cfg.AlphaTerm
		case graph.ViewSemantic:
			alpha = e.cfg.AlphaSemantic
		default:
			continue
		}
		row(edge.Source)[edge.Target] += alpha
	}

	for _, node := range nodes {
		if len(weights[node]) == 0 {
			row(node)[node] = 1.0
		}
	}

	return rowNormalize(weights)
}

// rowNormalize scales every out-row to sum to 1 and fixes the neighbour
// iteration order. Rows with non-positive totals degrade to a self-loop.
func rowNormalize(weights map[string]map[string]float64) adjacency {
	adj := make(adjacency, len(weights))
	for node, nbrs := range weights {
		var total float64
		for _, w := range nbrs {
			total += w
		}
		if total <= 0 {
			adj[node] = []neighborProb{{id: node, prob: 1.0}}
			continue
		}
		row := make([]neighborProb, 0, len(nbrs))
		for nbr, w := range nbrs {
			row = append(row, neighborProb{id: nbr, prob: w / total})
		}
		sort.Slice(row, func(i, j int) bool { return row[i].id < row[j].id })
		adj[node] = row
	}
	return adj
}

// apprPush runs the approximate personalised PageRank push over adj from the
// seed distribution. seeds must sum to 1. Returns the top-k nodes by mass
// (ties broken by id) and the mass they capture together.
//
// Every push moves (1-gamma)·r into the solution and redistributes gamma·r,
// but increments below eps are dropped rather than added to the residual,
// so at termination Σ mass + Σ residual is 1 less the dropped increments.
func apprPush(adj adjacency, seeds map[string]float64, gamma, eps float64, topK int) ([]legis.Neighbor, float64) {
	teleport := 1.0 - gamma
	ppr := make(map[string]float64)
	residual := make(map[string]float64, len(seeds))

	queue := make([]string, 0, len(seeds))
	for _, seed := range sortedSeedIDs(seeds) {
		residual[seed] = seeds[seed]
		queue = append(queue, seed)
	}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		value := residual[node]
		if value < eps {
			continue
		}
		ppr[node] += teleport * value
		push := gamma * value
		residual[node] = 0.0

		row, ok := adj[node]
		if !ok {
			row = []neighborProb{{id: node, prob: 1.0}}
		}
		for _, nbr := range row {
			inc := push * nbr.prob
			if inc < eps {
				continue
			}
			prev := residual[nbr.id]
			residual[nbr.id] = prev + inc
			if prev < eps && residual[nbr.id] >= eps {
				queue = append(queue, nbr.id)
			}
		}
	}

	items := make([]legis.Neighbor, 0, len(ppr))
	for id, mass := range ppr {
		items = append(items, legis.Neighbor{ID: id, Mass: mass})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Mass != items[j].Mass {
			return items[i].Mass > items[j].Mass
		}
		return items[i].ID < items[j].ID
	})
	if len(items) > topK {
		items = items[:topK]
	}

	var captured float64
	for _, item := range items {
		captured += item.Mass
	}
	return items, captured
}

func sortedSeedIDs(seeds map[string]float64) []string {
	ids := make([]string, 0, len(seeds))
	for id := range seeds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
