package search

import (
	"fmt"
	"math"

	"github.com/poiesic/vantage/core"
)

// ClipID names the clip covering [start, end] of videoID.
func ClipID(videoID string, start, end float64) string {
	return fmt.Sprintf("%s_%d_%d", videoID, int64(math.Floor(start)), int64(math.Floor(end)))
}

// BuildMoment reduces a non-empty cluster to a moment without clip fields.
// The range is the cluster span widened by padding on both sides and never
// starts before zero.
func BuildMoment(cluster Cluster, padding float64) core.Moment {
	best := cluster.Best()
	first, last := cluster.Span()
	start := math.Max(0, first-padding)
	end := last + padding
	if end <= start {
		// zero padding on a single-frame cluster
		end = math.Nextafter(start, math.Inf(1))
	}

	return core.Moment{
		Id:           ClipID(best.VideoID, start, end),
		Confidence:   best.Confidence,
		VideoID:      best.VideoID,
		StartTime:    start,
		EndTime:      end,
		ClipDuration: end - start,
		MatchCount:   len(cluster),
		MatchType:    best.Source,
		Metadata:     best.Metadata,
	}
}
