package domain

import (
	"context"
	"strings"
)

// Level is the nesting depth of a chunk, derived from its id.
type Level string

const (
	LevelMain   Level = "main"
	LevelSub    Level = "sub"
	LevelSubSub Level = "subsub"
	LevelDeep   Level = "deep"
)

// LevelOf returns the level for a dot-separated chunk id. Three or more dots
// are all Deep.
func LevelOf(chunkID string) Level {
	switch strings.Count(chunkID, ".") {
	case 0:
		return LevelMain
	case 1:
		return LevelSub
	case 2:
		return LevelSubSub
	default:
		return LevelDeep
	}
}

// ChainEntry identifies one ancestor of a chunk.
type ChainEntry struct {
	ChunkID string `json:"chunk_id"`
	Title   string `json:"title"`
}

// Chunk is one titled section of the manual with its hierarchical position.
type Chunk struct {
	ChunkID     string       `json:"chunk_id"`
	Title       string       `json:"title"`
	Level       Level        `json:"level"`
	Content     string       `json:"content"`
	ParentChain []ChainEntry `json:"parent_chain"`
}

// Breadcrumb renders the ancestor titles followed by the chunk's own title.
func (c Chunk) Breadcrumb() string {
	parts := make([]string, 0, len(c.ParentChain)+1)
	for _, p := range c.ParentChain {
		parts = append(parts, p.Title)
	}
	parts = append(parts, c.Title)
	return strings.Join(parts, " › ")
}

// VectorRecord is a stored embedding with the text it was computed from.
type VectorRecord struct {
	Embedding []float64
	Text      string
	Metadata  Chunk
}

// SearchResult represents a matching record with its cosine similarity.
// Position is the record's insertion index in the store.
type SearchResult struct {
	Text       string
	Metadata   Chunk
	Similarity float64
	Position   int
}

// Language selects the answer language.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageSwedish Language = "sv"
)

// ParseLanguage maps user input to a Language, defaulting to English.
func ParseLanguage(s string) Language {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sv", "swedish", "svenska":
		return LanguageSwedish
	default:
		return LanguageEnglish
	}
}

// DisplayName is the human readable language name used in prompts.
func (l Language) DisplayName() string {
	if l == LanguageSwedish {
		return "Swedish"
	}
	return "English"
}

// GenerationRequest is the input of a grounded answer call. NoAnswer is the
// sentinel the model is told to return verbatim when the context is irrelevant.
type GenerationRequest struct {
	Query    string
	Contexts []string
	Language Language
	NoAnswer string
}

// Embedder converts texts into L2-normalized vectors. The output has one
// vector per input, in input order.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Generator produces an answer grounded in the supplied contexts.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// Retriever returns the k records most similar to a query vector.
type Retriever interface {
	Retrieve(ctx context.Context, query []float64, k int) ([]SearchResult, error)
}
