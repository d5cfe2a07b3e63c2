package chunker

import (
	"regexp"
	"strings"

	"manualrag/internal/domain"
)

// HeadingChunker splits normalized manual lines into one chunk per numbered
// heading. It keeps the chain of ancestor headings seen so far so every
// chunk carries its parents.
type HeadingChunker struct {
	mainHeading *regexp.Regexp
	subHeading  *regexp.Regexp
}

func NewHeadingChunker() *HeadingChunker {
	return &HeadingChunker{
		// "17. Routing", "17.Routing", "4." but not "1.1 Details". A digit
		// right after the dot is a decimal ("1.5", "12.5kHz"), not a chapter.
		mainHeading: regexp.MustCompile(`^(\d+)\.(\s.*|[^\d\s].*)?$`),
		subHeading:  regexp.MustCompile(`^(\d+(?:\.\d+)+)\s+(.+)`),
	}
}

// openChunk is the heading currently accumulating body lines.
type openChunk struct {
	id      string
	title   string
	content []string
	chain   []domain.ChainEntry
}

func (o *openChunk) close() domain.Chunk {
	parents := make([]domain.ChainEntry, len(o.chain)-1)
	copy(parents, o.chain[:len(o.chain)-1])
	return domain.Chunk{
		ChunkID:     o.id,
		Title:       o.title,
		Level:       domain.LevelOf(o.id),
		Content:     strings.TrimSpace(strings.Join(o.content, " ")),
		ParentChain: parents,
	}
}

// Segment walks the lines once and returns the chunks in source order.
// Text before the first heading belongs to no chunk and is dropped.
func (c *HeadingChunker) Segment(lines []string) []domain.Chunk {
	var chunks []domain.Chunk
	var cur *openChunk
	var chain []domain.ChainEntry

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, title, isMain, ok := c.matchHeading(line)
		if !ok {
			if cur != nil {
				cur.content = append(cur.content, line)
			}
			continue
		}
		if cur != nil {
			chunks = append(chunks, cur.close())
		}
		if isMain {
			chain = []domain.ChainEntry{{ChunkID: id, Title: title}}
		} else {
			chain = buildChain(id, title, chain)
		}
		cur = &openChunk{id: id, title: title, chain: chain}
	}
	if cur != nil {
		chunks = append(chunks, cur.close())
	}
	return chunks
}

// Chunk splits a whole manual text into lines and segments it.
func (c *HeadingChunker) Chunk(text string) []domain.Chunk {
	return c.Segment(strings.Split(text, "\n"))
}

func (c *HeadingChunker) matchHeading(line string) (id, title string, isMain, ok bool) {
	if m := c.subHeading.FindStringSubmatch(line); m != nil {
		return m[1], m[2], false, true
	}
	if m := c.mainHeading.FindStringSubmatch(line); m != nil {
		title = strings.TrimSpace(m[2])
		if title == "" {
			title = chapterTitle(m[1])
		}
		return m[1], title, true, true
	}
	return "", "", false, false
}

// buildChain returns the ancestors of id followed by id itself. Ancestor
// titles come from the running chain only; prefixes missing from it get a
// synthesized "Chapter N" title even if that heading appeared elsewhere.
func buildChain(id, title string, running []domain.ChainEntry) []domain.ChainEntry {
	parts := strings.Split(id, ".")
	chain := make([]domain.ChainEntry, 0, len(parts))
	for i := 1; i < len(parts); i++ {
		prefix := strings.Join(parts[:i], ".")
		chain = append(chain, domain.ChainEntry{ChunkID: prefix, Title: lookupTitle(prefix, running)})
	}
	return append(chain, domain.ChainEntry{ChunkID: id, Title: title})
}

func lookupTitle(id string, chain []domain.ChainEntry) string {
	for _, e := range chain {
		if e.ChunkID == id {
			return e.Title
		}
	}
	return chapterTitle(id)
}

func chapterTitle(id string) string { return "Chapter " + id }
