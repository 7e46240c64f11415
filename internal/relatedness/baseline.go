package relatedness

// powerIteration computes the stationary-like baseline distribution of the
// normalised adjacency with uniform teleport (1-gamma)/N. The result is
// renormalised to sum to 1 over nodes.
func powerIteration(adj adjacency, nodes []string, gamma float64, iters int) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return map[string]float64{}
	}

	index := make(map[string]int, n)
	for i, node := range nodes {
		index[node] = i
	}

	ranks := make([]float64, n)
	for i := range ranks {
		ranks[i] = 1.0 / float64(n)
	}
	teleport := (1.0 - gamma) / float64(n)

	for it := 0; it < iters; it++ {
		next := make([]float64, n)
		for i := range next {
			next[i] = teleport
		}
		for _, node := range nodes {
			i := index[node]
			r := ranks[i]
			row := adj[node]
			if len(row) == 0 {
				next[i] += gamma * r
				continue
			}
			for _, nbr := range row {
				j, ok := index[nbr.id]
				if !ok {
					continue
				}
				next[j] += gamma * r * nbr.prob
			}
		}
		ranks = next
	}

	var total float64
	for _, r := range ranks {
		total += r
	}
	if total <= 0 {
		total = 1.0
	}

	pi := make(map[string]float64, n)
	for _, node := range nodes {
		pi[node] = ranks[index[node]] / total
	}
	return pi
}
