package progress

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpdate_InvokesCallbackAndStoresLatest(t *testing.T) {
	var received []Update
	tr := New(func(u Update) { received = append(received, u) })

	tr.Update(0.5, "parse", "parsing file", map[string]any{"lines": 100})

	require.Len(t, received, 1)
	require.Equal(t, 0.5, tr.Latest().Progress)
	require.Equal(t, "parse", tr.Latest().Step)
	require.False(t, tr.Latest().Streaming)
}

func TestUpdate_ClampsOutOfRangeProgress(t *testing.T) {
	tr := New(nil)
	tr.Update(1.5, "x", "", nil)
	require.Equal(t, 1.0, tr.Latest().Progress)

	tr.Update(-1, "x", "", nil)
	require.Equal(t, 0.0, tr.Latest().Progress)
}

func TestStreamUpdate_CollapsesNewlinesAndTruncatesTo150(t *testing.T) {
	tr := New(nil)
	tr.StreamUpdate(0.3, "llm_analyze", "first line\n", "streaming")
	tr.StreamUpdate(0.3, "llm_analyze", strings.Repeat("x", 200), "streaming")

	latest := tr.Latest()
	require.True(t, latest.Streaming)
	require.LessOrEqual(t, len([]rune(latest.StreamingContent)), streamBufferChars)
	require.NotContains(t, latest.StreamingContent, "\n")
}

func TestChunkFunc_BoundToFixedProgressAndStep(t *testing.T) {
	var received []Update
	tr := New(func(u Update) { received = append(received, u) })

	chunkFn := tr.ChunkFunc(0.7, "expert_assessment")
	chunkFn("partial response")

	require.Len(t, received, 1)
	require.Equal(t, 0.7, received[0].Progress)
	require.Equal(t, "expert_assessment", received[0].Step)
	require.Contains(t, received[0].StreamingContent, "partial response")
}
