package chunker

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"manualrag/internal/domain"
)

// WriteJSONL writes one JSON object per chunk, in order.
func WriteJSONL(w io.Writer, chunks []domain.Chunk) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, ch := range chunks {
		if ch.ParentChain == nil {
			ch.ParentChain = []domain.ChainEntry{}
		}
		if err := enc.Encode(ch); err != nil {
			return fmt.Errorf("encoding chunk %s: %w", ch.ChunkID, err)
		}
	}
	return bw.Flush()
}

// ReadJSONL reads chunks written by WriteJSONL. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ch domain.Chunk
		if err := json.Unmarshal(raw, &ch); err != nil {
			return nil, fmt.Errorf("chunk file line %d: %w", line, err)
		}
		if ch.ParentChain == nil {
			ch.ParentChain = []domain.ChainEntry{}
		}
		chunks = append(chunks, ch)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}
