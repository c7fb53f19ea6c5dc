package search

import (
	"slices"

	"github.com/poiesic/vantage/core"
)

// Cluster is a maximal chain of one video's candidates whose consecutive
// timestamps are at most the cluster buffer apart.
type Cluster []core.SearchCandidate

// ClusterCandidates sorts one video's candidates by timestamp and splits
// them wherever the gap to the previous candidate exceeds buffer. The chain
// rule lets a cluster span more than buffer in total. The input is not modified.
func ClusterCandidates(candidates []core.SearchCandidate, buffer float64) []Cluster {
	if len(candidates) == 0 {
		return nil
	}
	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, func(a, b core.SearchCandidate) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})

	var clusters []Cluster
	current := Cluster{sorted[0]}
	for _, c := range sorted[1:] {
		last := current[len(current)-1]
		if c.Timestamp-last.Timestamp <= buffer {
			current = append(current, c)
			continue
		}
		clusters = append(clusters, current)
		current = Cluster{c}
	}
	return append(clusters, current)
}

// Best returns the highest-confidence candidate; ties go to the earliest.
func (c Cluster) Best() core.SearchCandidate {
	best := c[0]
	for _, cand := range c[1:] {
		if cand.Confidence > best.Confidence {
			best = cand
		}
	}
	return best
}

// Span returns the first and last timestamp of the cluster.
func (c Cluster) Span() (float64, float64) {
	return c[0].Timestamp, c[len(c)-1].Timestamp
}
