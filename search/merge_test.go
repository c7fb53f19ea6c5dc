package search

import (
	"math/rand"
	"testing"

	"github.com/poiesic/vantage/calibration"
	"github.com/poiesic/vantage/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorCandidates_Calibrates(t *testing.T) {
	model, err := calibration.NewModel(0.05, 0.85)
	require.NoError(t, err)

	meta := core.FrameMetadata{VideoID: "v1", OwnerID: "alice", Timestamp: 3}
	candidates := VectorCandidates([]core.VectorMatch{
		{Id: "a", Metadata: meta, Distance: 0.1},
		{Id: "b", Metadata: meta, Distance: 0.96},
	}, model)

	require.Len(t, candidates, 2)
	assert.Equal(t, 1.0, candidates[0].Confidence)
	assert.Equal(t, 0.0, candidates[1].Confidence)
	assert.Equal(t, core.SourceVector, candidates[0].Source)
	assert.Equal(t, "v1", candidates[0].VideoID)
	assert.Equal(t, 3.0, candidates[0].Timestamp)
}

func TestTagCandidates(t *testing.T) {
	meta := core.FrameMetadata{VideoID: "v2", OwnerID: "alice", Timestamp: 8}
	candidates := TagCandidates([]core.TagMatch{{Id: "a", Metadata: meta, Confidence: 0.7}})

	require.Len(t, candidates, 1)
	assert.Equal(t, 0.7, candidates[0].Confidence)
	assert.Equal(t, core.SourceTag, candidates[0].Source)
}

func TestMerge_DropsLowVectorCandidates(t *testing.T) {
	vector := candidatesAt("v1", 1, 2)
	vector[0].Confidence = 0.1
	vector[1].Confidence = 0.25
	tags := candidatesAt("v2", 5)
	tags[0].Confidence = 0.05
	tags[0].Source = core.SourceTag

	merged := Merge(vector, tags, 0.25)

	require.Len(t, merged["v1"], 1)
	assert.Equal(t, 2.0, merged["v1"][0].Timestamp)
	// Tag candidates are not subject to the vector threshold
	require.Len(t, merged["v2"], 1)
}

func TestMerge_KeepsDuplicates(t *testing.T) {
	vector := candidatesAt("v1", 4)
	tags := candidatesAt("v1", 4)
	tags[0].Source = core.SourceTag

	merged := Merge(vector, tags, 0.25)
	require.Len(t, merged["v1"], 2)

	clusters := ClusterCandidates(merged["v1"], 2.0)
	require.Len(t, clusters, 1)
	assert.Equal(t, 2, BuildMoment(clusters[0], 0.5).MatchCount)
}

func TestMerge_OrderIndependent(t *testing.T) {
	vector := append(candidatesAt("v1", 1, 2, 9), candidatesAt("v2", 4, 30)...)
	tags := candidatesAt("v1", 2.5, 20)
	for i := range tags {
		tags[i].Source = core.SourceTag
	}

	summarize := func(groups map[string][]core.SearchCandidate) map[string][][2]float64 {
		out := map[string][][2]float64{}
		for video, cands := range groups {
			for _, c := range ClusterCandidates(cands, 2.0) {
				m := BuildMoment(c, 0.5)
				out[video] = append(out[video], [2]float64{m.StartTime, m.EndTime})
			}
		}
		return out
	}
	want := summarize(Merge(vector, tags, 0.25))

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 20; i++ {
		v := append([]core.SearchCandidate(nil), vector...)
		tg := append([]core.SearchCandidate(nil), tags...)
		rng.Shuffle(len(v), func(a, b int) { v[a], v[b] = v[b], v[a] })
		rng.Shuffle(len(tg), func(a, b int) { tg[a], tg[b] = tg[b], tg[a] })

		assert.Equal(t, want, summarize(Merge(v, tg, 0.25)))
	}
}
