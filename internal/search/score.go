package search

import (
	"math"
	"sort"
)

// minMaxScale maps values onto [0, 100]. A constant input maps every entry
// to 100 so single-candidate pages keep a full score.
func minMaxScale(values map[string]float64) map[string]float64 {
	if len(values) == 0 {
		return map[string]float64{}
	}
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	out := make(map[string]float64, len(values))
	if hi <= lo {
		for id := range values {
			out[id] = 100.0
		}
		return out
	}
	span := hi - lo
	for id, v := range values {
		out[id] = (v - lo) / span * 100.0
	}
	return out
}

// scored pairs a candidate with its composite score.
type scored struct {
	id    string
	score float64
}

// rankComposite sorts candidates by descending composite score with id
// tie-breaks. The mapping to integer URS values is done by [ursScores].
func rankComposite(composite map[string]float64) []scored {
	ranked := make([]scored, 0, len(composite))
	for id, s := range composite {
		ranked = append(ranked, scored{id: id, score: s})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})
	return ranked
}

// ursScores converts ranked composite scores to integer URS values.
func ursScores(ranked []scored) map[string]int {
	values := make(map[string]float64, len(ranked))
	for _, r := range ranked {
		values[r.id] = r.score
	}
	scaled := minMaxScale(values)
	urs := make(map[string]int, len(scaled))
	for id, v := range scaled {
		urs[id] = int(math.Round(v))
	}
	return urs
}

// graphLift computes log2 of the lift of a normalised mass over the
// baseline, with both sides floored at 1e-12.
func graphLift(mass, pi float64) float64 {
	lift := mass / math.Max(pi, 1e-12)
	return math.Log2(math.Max(lift, 1e-12))
}
