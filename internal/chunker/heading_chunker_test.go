package chunker

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manualrag/internal/domain"
)

func TestSegment_BasicHierarchy(t *testing.T) {
	lines := []string{
		"1. Overview",
		"This is the intro.",
		"1.1 Details",
		"More info here.",
		"2. Next Chapter",
		"Final text.",
	}
	got := NewHeadingChunker().Segment(lines)

	want := []domain.Chunk{
		{ChunkID: "1", Title: "Overview", Level: domain.LevelMain, Content: "This is the intro.", ParentChain: []domain.ChainEntry{}},
		{ChunkID: "1.1", Title: "Details", Level: domain.LevelSub, Content: "More info here.", ParentChain: []domain.ChainEntry{{ChunkID: "1", Title: "Overview"}}},
		{ChunkID: "2", Title: "Next Chapter", Level: domain.LevelMain, Content: "Final text.", ParentChain: []domain.ChainEntry{}},
	}
	assert.Equal(t, want, got)
}

func TestSegment_EmptyContentAndSynthesizedTitle(t *testing.T) {
	lines := []string{
		"3.",
		"3.1 Browser",
		"",
		"   ",
		"3.2 Places",
		"Places are folders.",
	}
	got := NewHeadingChunker().Segment(lines)
	require.Len(t, got, 3)

	assert.Equal(t, "3", got[0].ChunkID)
	assert.Equal(t, "Chapter 3", got[0].Title)
	assert.Equal(t, "", got[0].Content)

	assert.Equal(t, "3.1", got[1].ChunkID)
	assert.Equal(t, "", got[1].Content)
	assert.Equal(t, []domain.ChainEntry{{ChunkID: "3", Title: "Chapter 3"}}, got[1].ParentChain)

	assert.Equal(t, "Places are folders.", got[2].Content)
}

func TestSegment_DeepChainAndMissingAncestor(t *testing.T) {
	lines := []string{
		"4. Clips",
		"4.2.1 Clip Envelopes",
		"Envelopes modulate.",
		"4.2.1.3 Unlinking",
		"Unlinked envelopes loop.",
	}
	got := NewHeadingChunker().Segment(lines)
	require.Len(t, got, 3)

	env := got[1]
	assert.Equal(t, domain.LevelSubSub, env.Level)
	assert.Equal(t, []domain.ChainEntry{
		{ChunkID: "4", Title: "Clips"},
		{ChunkID: "4.2", Title: "Chapter 4.2"},
	}, env.ParentChain)

	unlink := got[2]
	assert.Equal(t, domain.LevelDeep, unlink.Level)
	assert.Equal(t, []domain.ChainEntry{
		{ChunkID: "4", Title: "Clips"},
		{ChunkID: "4.2", Title: "Chapter 4.2"},
		{ChunkID: "4.2.1", Title: "Clip Envelopes"},
	}, unlink.ParentChain)
}

func TestSegment_AncestorResolvedFromRunningChainOnly(t *testing.T) {
	lines := []string{
		"5. Devices",
		"5.1 Audio Effects",
		"6. Instruments",
		"5.1.2 Reverb",
	}
	got := NewHeadingChunker().Segment(lines)
	require.Len(t, got, 4)
	// 5 and 5.1 were seen, but the running chain was reset by chapter 6.
	assert.Equal(t, []domain.ChainEntry{
		{ChunkID: "5", Title: "Chapter 5"},
		{ChunkID: "5.1", Title: "Chapter 5.1"},
	}, got[3].ParentChain)
}

func TestSegment_Invariants(t *testing.T) {
	text := strings.Join([]string{
		"Preamble before any heading.",
		"1. Intro",
		"Welcome.",
		"1.1 Setup",
		"1.1.1 Audio",
		"Pick a driver.",
		"1.1.1.1 Buffer Size",
		"1.2 Licensing",
		"2.Next",
		"2.1 More",
	}, "\n")
	chunks := NewHeadingChunker().Chunk(text)
	require.Len(t, chunks, 7)

	seen := map[string]bool{}
	for _, c := range chunks {
		assert.False(t, seen[c.ChunkID], "duplicate id %s", c.ChunkID)
		seen[c.ChunkID] = true
		dots := strings.Count(c.ChunkID, ".")
		assert.Len(t, c.ParentChain, dots, c.ChunkID)
		assert.Equal(t, domain.LevelOf(c.ChunkID), c.Level)
		assert.NotEmpty(t, c.Title)
		assert.NotContains(t, c.Content, "Preamble")
	}
	assert.Equal(t, "Next", chunks[5].Title)
}

func TestSegment_DecimalAfterDotIsBody(t *testing.T) {
	got := NewHeadingChunker().Segment([]string{"1. Start", "1.5", "12.5kHz filters cut the highs."})
	require.Len(t, got, 1)
	assert.Equal(t, "1.5 12.5kHz filters cut the highs.", got[0].Content)
}

func TestSegment_SplitTrailingDigitStaysInTitle(t *testing.T) {
	got := NewHeadingChunker().Segment([]string{"3. Clips", "3.2 1 Clip Envelopes"})
	require.Len(t, got, 2)
	assert.Equal(t, "3.2", got[1].ChunkID)
	assert.Equal(t, "1 Clip Envelopes", got[1].Title)
}

func TestSegment_NoHeadings(t *testing.T) {
	assert.Empty(t, NewHeadingChunker().Segment([]string{"just text", "more text"}))
	assert.Empty(t, NewHeadingChunker().Segment(nil))
}

func TestJSONLRoundTrip(t *testing.T) {
	chunks := NewHeadingChunker().Segment([]string{
		"1. Overview", "Intro <b>&</b>.", "1.1 Details", "2. Empty",
	})

	var buf bytes.Buffer
	require.NoError(t, WriteJSONL(&buf, chunks))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t,
		`{"chunk_id":"1","title":"Overview","level":"main","content":"Intro <b>&</b>.","parent_chain":[]}`,
		lines[0])
	assert.Contains(t, lines[1], `"parent_chain":[{"chunk_id":"1","title":"Overview"}]`)

	back, err := ReadJSONL(&buf)
	require.NoError(t, err)
	assert.Equal(t, chunks, back)
}

func TestReadJSONL_Malformed(t *testing.T) {
	_, err := ReadJSONL(strings.NewReader("{\"chunk_id\":\"1\"}\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
