// Package pipeline builds the retrieval index from the PDF manual in three
// idempotent stages: extract, chunk and index.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"manualrag/internal/chunker"
	"manualrag/internal/domain"
	"manualrag/internal/extract"
	"manualrag/internal/vectorstore/memory"
)

// DefaultBatchSize is the number of chunks embedded per provider call.
const DefaultBatchSize = 100

// Paths locates the artifacts of every stage.
type Paths struct {
	PDF    string
	Text   string
	Chunks string
	Index  string
}

// StageResult reports what a stage did. Skipped means its output already
// existed and was left untouched.
type StageResult struct {
	Skipped bool
	Count   int
}

// OpenFunc opens the page source for the PDF stage.
type OpenFunc func(path string) (extract.PageSource, io.Closer, error)

// Runner executes the build stages.
type Runner struct {
	paths     Paths
	embedder  domain.Embedder
	chunker   *chunker.HeadingChunker
	batchSize int
	open      OpenFunc
	logger    *slog.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithOpener replaces the PDF opener.
func WithOpener(open OpenFunc) Option {
	return func(r *Runner) { r.open = open }
}

// NewRunner creates a pipeline runner.
func NewRunner(paths Paths, embedder domain.Embedder, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		paths:     paths,
		embedder:  embedder,
		chunker:   chunker.NewHeadingChunker(),
		batchSize: DefaultBatchSize,
		open:      openPDF,
		logger:    logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func openPDF(path string) (extract.PageSource, io.Closer, error) {
	p, err := extract.OpenPDF(path)
	if err != nil {
		return nil, nil, err
	}
	return p, p, nil
}

// Build runs every stage in order and stops at the first failure.
func (r *Runner) Build(ctx context.Context) error {
	stages := []struct {
		name string
		run  func(context.Context) (StageResult, error)
	}{
		{"extract", r.Extract},
		{"chunk", r.Chunk},
		{"index", r.Index},
	}
	for _, s := range stages {
		if _, err := s.run(ctx); err != nil {
			return fmt.Errorf("%s stage: %w", s.name, err)
		}
	}
	return nil
}

// Extract writes the cleaned manual text. Count is the number of lines written.
func (r *Runner) Extract(ctx context.Context) (StageResult, error) {
	if exists(r.paths.Text) {
		r.logger.Info("manual text already exists, delete it to re-extract", "path", r.paths.Text)
		return StageResult{Skipped: true}, nil
	}
	if !exists(r.paths.PDF) {
		r.logger.Error("manual PDF not found", "path", r.paths.PDF)
		return StageResult{}, fmt.Errorf("%w: %s", domain.ErrMissingInput, r.paths.PDF)
	}
	src, closer, err := r.open(r.paths.PDF)
	if err != nil {
		return StageResult{}, err
	}
	defer closer.Close()

	r.logger.Info("extracting text", "pdf", r.paths.PDF, "pages", src.NumPages())
	text, err := extract.Text(ctx, src, r.logger)
	if err != nil {
		return StageResult{}, err
	}
	if err := writeFileAtomic(r.paths.Text, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	}); err != nil {
		return StageResult{}, err
	}
	lines := 0
	if text != "" {
		lines = strings.Count(text, "\n") + 1
	}
	r.logger.Info("wrote manual text", "path", r.paths.Text, "lines", lines)
	return StageResult{Count: lines}, nil
}

// Chunk segments the manual text into the chunk file. Count is the number of chunks.
func (r *Runner) Chunk(ctx context.Context) (StageResult, error) {
	if exists(r.paths.Chunks) {
		r.logger.Info("chunk file already exists, delete it to re-chunk", "path", r.paths.Chunks)
		return StageResult{Skipped: true}, nil
	}
	raw, err := os.ReadFile(r.paths.Text)
	if errors.Is(err, os.ErrNotExist) {
		r.logger.Error("manual text not found, run extract first", "path", r.paths.Text)
		return StageResult{}, fmt.Errorf("%w: %s", domain.ErrMissingInput, r.paths.Text)
	}
	if err != nil {
		return StageResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return StageResult{}, err
	}

	chunks := r.chunker.Chunk(string(raw))
	if err := writeFileAtomic(r.paths.Chunks, func(w io.Writer) error {
		return chunker.WriteJSONL(w, chunks)
	}); err != nil {
		return StageResult{}, err
	}
	r.logger.Info("wrote chunks", "path", r.paths.Chunks, "chunks", len(chunks))
	return StageResult{Count: len(chunks)}, nil
}

// Index embeds every chunk with content and saves the vector store. Count is
// the number of records indexed.
func (r *Runner) Index(ctx context.Context) (StageResult, error) {
	if exists(r.paths.Index) {
		r.logger.Info("index already exists, delete it to rebuild", "path", r.paths.Index)
		return StageResult{Skipped: true}, nil
	}
	f, err := os.Open(r.paths.Chunks)
	if errors.Is(err, os.ErrNotExist) {
		r.logger.Error("chunk file not found, run chunk first", "path", r.paths.Chunks)
		return StageResult{}, fmt.Errorf("%w: %s", domain.ErrMissingInput, r.paths.Chunks)
	}
	if err != nil {
		return StageResult{}, err
	}
	all, err := chunker.ReadJSONL(f)
	f.Close()
	if err != nil {
		return StageResult{}, err
	}

	chunks := all[:0:0]
	for _, c := range all {
		if strings.TrimSpace(c.Content) != "" {
			chunks = append(chunks, c)
		}
	}
	if len(chunks) == 0 {
		r.logger.Error("no chunks with content", "path", r.paths.Chunks)
		return StageResult{}, fmt.Errorf("%w: %s", domain.ErrEmptyCorpus, r.paths.Chunks)
	}

	r.logger.Info("embedding chunks", "chunks", len(chunks), "embedder", r.embedder.Name(), "batch_size", r.batchSize)
	start := time.Now()
	store := memory.NewStore()
	for i := 0; i < len(chunks); i += r.batchSize {
		batch := chunks[i:min(i+r.batchSize, len(chunks))]
		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Content
		}
		vecs, err := r.embedder.Embed(ctx, texts)
		if err != nil {
			return StageResult{}, fmt.Errorf("embedding batch at %d: %w", i, err)
		}
		if len(vecs) != len(batch) {
			return StageResult{}, fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbedding, len(vecs), len(batch))
		}
		for j, c := range batch {
			store.Add(c.Content, vecs[j], c)
		}
		r.logger.Info("progress", "done", store.Len(), "total", len(chunks), "elapsed", time.Since(start).Round(100*time.Millisecond))
	}

	if err := os.MkdirAll(filepath.Dir(r.paths.Index), 0o755); err != nil {
		return StageResult{}, err
	}
	if err := store.Save(r.paths.Index); err != nil {
		return StageResult{}, err
	}
	r.logger.Info("wrote index", "path", r.paths.Index, "records", store.Len(), "elapsed", time.Since(start).Round(100*time.Millisecond))
	return StageResult{Count: store.Len()}, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// writeFileAtomic writes to a temporary file in the target directory and
// renames it over path once fill succeeds.
func writeFileAtomic(path string, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := fill(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
