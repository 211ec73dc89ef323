package pipeline

// dbscan clusters points (given only as a precomputed pairwise distance
// function) using the density-based algorithm: a point is a core point
// if at least minSamples points (including itself) lie within eps; a
// cluster is the connected closure of core points and everything in
// their eps-neighborhoods. Points reachable from no core point are
// labeled -1 (outlier/noise), mirroring scikit-learn's DBSCAN.
func dbscan(n int, distance func(i, j int) float64, eps float64, minSamples int) []int {
	const unvisited = -2
	const noise = -1

	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	neighbors := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if distance(i, j) <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	nextCluster := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		neigh := neighbors(i)
		if len(neigh)+1 < minSamples {
			labels[i] = noise
			continue
		}

		labels[i] = nextCluster
		seeds := append([]int{}, neigh...)
		for k := 0; k < len(seeds); k++ {
			j := seeds[k]
			if labels[j] == noise {
				labels[j] = nextCluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = nextCluster
			jNeigh := neighbors(j)
			if len(jNeigh)+1 >= minSamples {
				seeds = append(seeds, jNeigh...)
			}
		}
		nextCluster++
	}
	return labels
}
