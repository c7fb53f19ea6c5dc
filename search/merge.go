package search

import (
	"github.com/poiesic/vantage/core"
)

// Calibrator converts a raw cosine distance into a confidence in [0, 1].
type Calibrator interface {
	Confidence(rawDistance float64) float64
}

// VectorCandidates calibrates nearest-neighbor hits into candidates.
func VectorCandidates(matches []core.VectorMatch, calibrator Calibrator) []core.SearchCandidate {
	candidates := make([]core.SearchCandidate, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, core.SearchCandidate{
			VideoID:    m.Metadata.VideoID,
			Timestamp:  m.Metadata.Timestamp,
			Confidence: calibrator.Confidence(m.Distance),
			Metadata:   m.Metadata,
			Source:     core.SourceVector,
		})
	}
	return candidates
}

// TagCandidates converts tag hits into candidates.
func TagCandidates(matches []core.TagMatch) []core.SearchCandidate {
	candidates := make([]core.SearchCandidate, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, core.SearchCandidate{
			VideoID:    m.Metadata.VideoID,
			Timestamp:  m.Metadata.Timestamp,
			Confidence: m.Confidence,
			Metadata:   m.Metadata,
			Source:     core.SourceTag,
		})
	}
	return candidates
}

// Merge groups candidates by video. Vector candidates below threshold are
// dropped; tag candidates are always kept. A frame hit by both sources
// appears twice, so agreement between signals raises a cluster's match count.
func Merge(vector, tags []core.SearchCandidate, threshold float64) map[string][]core.SearchCandidate {
	merged := make(map[string][]core.SearchCandidate)
	for _, c := range vector {
		if c.Confidence < threshold {
			continue
		}
		merged[c.VideoID] = append(merged[c.VideoID], c)
	}
	for _, c := range tags {
		merged[c.VideoID] = append(merged[c.VideoID], c)
	}
	return merged
}
