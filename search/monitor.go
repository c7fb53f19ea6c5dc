package search

import (
	"github.com/poiesic/vantage/core"
)

// SearchMonitor provides hooks to observe the search process.
// Hooks are always called from the goroutine running the search.
type SearchMonitor interface {
	Start(query, ownerID string)
	AfterVectorSearch(matches []core.VectorMatch)
	AfterTagSearch(words []string, matches []core.TagMatch)
	AfterMerge(groups map[string][]core.SearchCandidate)
	ClusterFound(videoID string, cluster Cluster)
	Degraded(err *DegradedError)
	Finish(moments []core.Moment)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string)                              {}
func (n *noopMonitor) AfterVectorSearch(_ []core.VectorMatch)         {}
func (n *noopMonitor) AfterTagSearch(_ []string, _ []core.TagMatch)   {}
func (n *noopMonitor) AfterMerge(_ map[string][]core.SearchCandidate) {}
func (n *noopMonitor) ClusterFound(_ string, _ Cluster)               {}
func (n *noopMonitor) Degraded(_ *DegradedError)                      {}
func (n *noopMonitor) Finish(_ []core.Moment)                         {}
