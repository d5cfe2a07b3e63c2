package memory

import (
	"errors"
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"

	"manualrag/internal/domain"
)

// indexRow is one row of the persisted index. The three top-level columns
// are vectors, texts and metadata.
type indexRow struct {
	Vectors  []float64 `parquet:"vectors,list"`
	Texts    string    `parquet:"texts"`
	Metadata chunkRow  `parquet:"metadata"`
}

type chunkRow struct {
	ChunkID     string     `parquet:"chunk_id"`
	Title       string     `parquet:"title"`
	Level       string     `parquet:"level"`
	Content     string     `parquet:"content"`
	ParentChain []chainRow `parquet:"parent_chain,list"`
}

type chainRow struct {
	ChunkID string `parquet:"chunk_id"`
	Title   string `parquet:"title"`
}

// Save writes every record to a Parquet file at path, one row per record in
// insertion order. The file is written next to path and renamed into place.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	rows := make([]indexRow, len(s.texts))
	for i := range s.texts {
		rows[i] = indexRow{Vectors: s.vectors[i], Texts: s.texts[i], Metadata: toChunkRow(s.meta[i])}
	}
	s.mu.RUnlock()

	for i := 1; i < len(rows); i++ {
		if len(rows[i].Vectors) != len(rows[0].Vectors) {
			return fmt.Errorf("record %d has dimension %d, want %d", i, len(rows[i].Vectors), len(rows[0].Vectors))
		}
	}

	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, rows); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing index %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing index %s: %w", path, err)
	}
	return nil
}

// Load replaces the store's contents with the records stored at path. It
// returns false and no error when the file does not exist.
func (s *Store) Load(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	rows, err := parquet.ReadFile[indexRow](path)
	if err != nil {
		return false, fmt.Errorf("reading index %s: %w", path, err)
	}

	vectors := make([][]float64, len(rows))
	texts := make([]string, len(rows))
	meta := make([]domain.Chunk, len(rows))
	for i, r := range rows {
		vectors[i] = r.Vectors
		texts[i] = r.Texts
		meta[i] = fromChunkRow(r.Metadata)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors, s.texts, s.meta = vectors, texts, meta
	return true, nil
}

func toChunkRow(c domain.Chunk) chunkRow {
	chain := make([]chainRow, len(c.ParentChain))
	for i, e := range c.ParentChain {
		chain[i] = chainRow(e)
	}
	return chunkRow{
		ChunkID:     c.ChunkID,
		Title:       c.Title,
		Level:       string(c.Level),
		Content:     c.Content,
		ParentChain: chain,
	}
}

func fromChunkRow(r chunkRow) domain.Chunk {
	chain := make([]domain.ChainEntry, len(r.ParentChain))
	for i, e := range r.ParentChain {
		chain[i] = domain.ChainEntry(e)
	}
	return domain.Chunk{
		ChunkID:     r.ChunkID,
		Title:       r.Title,
		Level:       domain.Level(r.Level),
		Content:     r.Content,
		ParentChain: chain,
	}
}
