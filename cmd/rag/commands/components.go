package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"manualrag/internal/config"
	"manualrag/internal/domain"
	embgemini "manualrag/internal/embedding/gemini"
	"manualrag/internal/embedding/hashing"
	embopenai "manualrag/internal/embedding/openai"
	"manualrag/internal/generation/extractive"
	gengemini "manualrag/internal/generation/gemini"
	genopenai "manualrag/internal/generation/openai"
	"manualrag/internal/logger"
	"manualrag/internal/pipeline"
	"manualrag/internal/service"
	"manualrag/internal/vectorstore/memory"
	"manualrag/internal/vectorstore/qdrant"
)

// app holds the loaded config and the resources opened for one command.
type app struct {
	cfg     *config.AppConfig
	logger  *slog.Logger
	closers []func() error
}

func loadApp(cmd *cobra.Command) (*app, error) {
	if outputFormat != "text" && outputFormat != "json" {
		return nil, fmt.Errorf("unknown output format %q", outputFormat)
	}
	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return &app{cfg: cfg, logger: logger.New(cfg.Log, cmd.ErrOrStderr())}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("closing resource", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) embedder(ctx context.Context) (domain.Embedder, error) {
	ec := a.cfg.Embedder
	switch ec.Type {
	case "hashing":
		return hashing.NewEmbedder(ec.Hashing.Dimension), nil
	case "openai":
		c := ec.OpenAI
		return embopenai.NewClient(embopenai.Config{
			APIKey:     c.APIKey,
			BaseURL:    c.BaseURL,
			Model:      c.Model,
			Timeout:    time.Duration(c.TimeoutSecs) * time.Second,
			MaxRetries: c.MaxRetries,
		})
	case "gemini":
		e, err := embgemini.New(ctx, embgemini.Config{APIKey: ec.Gemini.APIKey, Model: ec.Gemini.Model})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, e.Close)
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", ec.Type)
	}
}

func (a *app) generator(ctx context.Context) (domain.Generator, error) {
	gc := a.cfg.Generator
	switch gc.Type {
	case "extractive":
		return extractive.New(gc.Extractive.MaxSentences), nil
	case "openai":
		c := gc.OpenAI
		return genopenai.New(genopenai.Config{
			APIKey:          c.APIKey,
			BaseURL:         c.BaseURL,
			Model:           c.Model,
			MaxOutputTokens: c.MaxOutputTokens,
			Timeout:         time.Duration(c.TimeoutSecs) * time.Second,
		})
	case "gemini":
		c := gc.Gemini
		g, err := gengemini.New(ctx, gengemini.Config{
			APIKey:            c.APIKey,
			Model:             c.Model,
			MaxOutputTokens:   c.MaxOutputTokens,
			Temperature:       c.Temperature,
			RequestsPerMinute: c.RequestsPerMinute,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g.Close)
		return g, nil
	default:
		return nil, fmt.Errorf("unknown generator: %s", gc.Type)
	}
}

// loadIndex reads the local Parquet index.
func (a *app) loadIndex() (*memory.Store, error) {
	store := memory.NewStore()
	ok, err := store.Load(a.cfg.Paths.Index)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: index %s not found, run `rag build` first", domain.ErrMissingInput, a.cfg.Paths.Index)
	}
	a.logger.Debug("loaded index", "path", a.cfg.Paths.Index, "records", store.Len())
	return store, nil
}

func (a *app) mirror() (*qdrant.Mirror, error) {
	q := a.cfg.VectorStore.Qdrant
	if q == nil {
		q = &config.QdrantConfig{Addr: "localhost:6334", Collection: "manual"}
	}
	m, err := qdrant.Dial(qdrant.Config{Addr: q.Addr, APIKey: q.APIKey, Collection: q.Collection, BatchSize: q.BatchSize}, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, m.Close)
	return m, nil
}

func (a *app) retriever() (domain.Retriever, error) {
	switch a.cfg.VectorStore.Type {
	case "memory":
		return a.loadIndex()
	case "qdrant":
		return a.mirror()
	default:
		return nil, fmt.Errorf("unknown vector store: %s", a.cfg.VectorStore.Type)
	}
}

func (a *app) service(ctx context.Context) (*service.RAGService, error) {
	emb, err := a.embedder(ctx)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	ret, err := a.retriever()
	if err != nil {
		return nil, err
	}
	gen, err := a.generator(ctx)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	opts := service.Options{
		ChatTopK: a.cfg.Search.ChatTopK,
		EvalTopK: a.cfg.Search.EvalTopK,
		NoAnswer: map[domain.Language]string{
			domain.LanguageEnglish: a.cfg.Answers.NoAnswerEN,
			domain.LanguageSwedish: a.cfg.Answers.NoAnswerSV,
		},
		QuotaAdvisory: a.cfg.Answers.QuotaAdvisory,
	}
	return service.NewRAGService(emb, ret, gen, opts, a.logger), nil
}

func (a *app) runner(ctx context.Context) (*pipeline.Runner, error) {
	emb, err := a.embedder(ctx)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	p := a.cfg.Paths
	return pipeline.NewRunner(
		pipeline.Paths{PDF: p.PDF, Text: p.Text, Chunks: p.Chunks, Index: p.Index},
		emb, a.logger,
		pipeline.WithBatchSize(a.cfg.Embedder.BatchSize),
	), nil
}

// language resolves the --lang flag, falling back to the configured default.
func (a *app) language(flag string) domain.Language {
	if flag == "" {
		flag = a.cfg.Answers.Language
	}
	return domain.ParseLanguage(flag)
}
