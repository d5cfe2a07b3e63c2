package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"manualrag/internal/domain"
	"manualrag/internal/vectorstore/memory"
)

const (
	DefaultChatTopK = 5
	DefaultEvalTopK = 15

	NoAnswerEnglish = "I found no relevant information in my sources. Try rephrasing your question or consult the Ableton Live 12 manual."
	NoAnswerSwedish = "Jag hittade ingen relevant information i mina källor. Försök att omformulera din fråga eller konsultera Ableton Live 12 manualen."
	QuotaAdvisory   = "⚠️ Gemini API quota exceeded. The free tier resets daily — try again later or enable billing at https://ai.dev/rate-limit"
)

// Options tunes retrieval depth and the fixed answer texts.
type Options struct {
	ChatTopK      int
	EvalTopK      int
	NoAnswer      map[domain.Language]string
	QuotaAdvisory string
}

// DefaultOptions returns the stock settings.
func DefaultOptions() Options {
	return Options{
		ChatTopK: DefaultChatTopK,
		EvalTopK: DefaultEvalTopK,
		NoAnswer: map[domain.Language]string{
			domain.LanguageEnglish: NoAnswerEnglish,
			domain.LanguageSwedish: NoAnswerSwedish,
		},
		QuotaAdvisory: QuotaAdvisory,
	}
}

// Answer is a grounded reply together with the sections it was built from.
type Answer struct {
	RequestID string
	Text      string
	Sources   []domain.SearchResult
	// NoAnswer is set when the generator returned the no-answer sentinel.
	NoAnswer bool
	// QuotaExceeded is set when Text is the quota advisory.
	QuotaExceeded bool
}

// Evaluation scores a generated answer against a reference answer.
type Evaluation struct {
	Question string
	Ideal    string
	Answer   Answer
	// Score is the cosine similarity of the two answers rounded to two
	// decimals, or 0 when the generator found nothing.
	Score float64
}

// RAGService answers questions from the indexed manual.
type RAGService struct {
	embedder  domain.Embedder
	retriever domain.Retriever
	generator domain.Generator
	opts      Options
	logger    *slog.Logger
}

// NewRAGService wires the query-time collaborators. Zero-valued options fall
// back to DefaultOptions.
func NewRAGService(embedder domain.Embedder, retriever domain.Retriever, generator domain.Generator, opts Options, logger *slog.Logger) *RAGService {
	def := DefaultOptions()
	if opts.ChatTopK <= 0 {
		opts.ChatTopK = def.ChatTopK
	}
	if opts.EvalTopK <= 0 {
		opts.EvalTopK = def.EvalTopK
	}
	if opts.QuotaAdvisory == "" {
		opts.QuotaAdvisory = def.QuotaAdvisory
	}
	noAnswer := make(map[domain.Language]string, len(def.NoAnswer))
	for lang, text := range def.NoAnswer {
		noAnswer[lang] = text
	}
	for lang, text := range opts.NoAnswer {
		if text != "" {
			noAnswer[lang] = text
		}
	}
	opts.NoAnswer = noAnswer
	if logger == nil {
		logger = slog.Default()
	}
	return &RAGService{embedder: embedder, retriever: retriever, generator: generator, opts: opts, logger: logger}
}

// NoAnswerText returns the sentinel for lang.
func (s *RAGService) NoAnswerText(lang domain.Language) string {
	if text, ok := s.opts.NoAnswer[lang]; ok {
		return text
	}
	return s.opts.NoAnswer[domain.LanguageEnglish]
}

// Search embeds query and returns the k most similar sections.
func (s *RAGService) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	vec, err := s.embedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.retriever.Retrieve(ctx, vec, k)
}

// Answer retrieves the chat top-k sections and asks the generator for a
// grounded answer. Exhausted quota is reported in the Answer, not as an error.
func (s *RAGService) Answer(ctx context.Context, query string, lang domain.Language) (Answer, error) {
	return s.answer(ctx, query, lang, s.opts.ChatTopK)
}

func (s *RAGService) answer(ctx context.Context, query string, lang domain.Language, k int) (Answer, error) {
	id := uuid.NewString()
	log := s.logger.With("request_id", id)
	log.Info("answering", "query", query, "language", string(lang), "top_k", k)

	sources, err := s.Search(ctx, query, k)
	if err != nil {
		log.Error("retrieval failed", "error", err)
		return Answer{}, err
	}
	contexts := make([]string, len(sources))
	for i, r := range sources {
		contexts[i] = r.Text
	}

	noAnswer := s.NoAnswerText(lang)
	text, err := s.generator.Generate(ctx, domain.GenerationRequest{
		Query:    query,
		Contexts: contexts,
		Language: lang,
		NoAnswer: noAnswer,
	})
	if errors.Is(err, domain.ErrQuotaExceeded) {
		log.Warn("generation quota exceeded", "generator", s.generator.Name(), "error", err)
		return Answer{RequestID: id, Text: s.opts.QuotaAdvisory, Sources: sources, QuotaExceeded: true}, nil
	}
	if err != nil {
		log.Error("generation failed", "generator", s.generator.Name(), "error", err)
		return Answer{}, err
	}

	ans := Answer{
		RequestID: id,
		Text:      text,
		Sources:   sources,
		NoAnswer:  strings.TrimSpace(text) == strings.TrimSpace(noAnswer),
	}
	log.Info("answered", "sources", len(sources), "no_answer", ans.NoAnswer)
	return ans, nil
}

// Evaluate answers question with the evaluation top-k and scores the result
// against ideal.
func (s *RAGService) Evaluate(ctx context.Context, question, ideal string, lang domain.Language) (Evaluation, error) {
	ans, err := s.answer(ctx, question, lang, s.opts.EvalTopK)
	if err != nil {
		return Evaluation{}, err
	}
	ev := Evaluation{Question: question, Ideal: ideal, Answer: ans}
	if ans.NoAnswer || ans.QuotaExceeded {
		return ev, nil
	}
	vecs, err := s.embedder.Embed(ctx, []string{ans.Text, ideal})
	if err != nil {
		return Evaluation{}, err
	}
	if len(vecs) != 2 {
		return Evaluation{}, fmt.Errorf("%w: got %d vectors for 2 texts", domain.ErrEmbedding, len(vecs))
	}
	ev.Score = roundTo2(memory.CosineSimilarity(vecs[0], vecs[1]))
	s.logger.Info("evaluated", "request_id", ans.RequestID, "score", ev.Score)
	return ev, nil
}

func (s *RAGService) embedOne(ctx context.Context, text string) ([]float64, error) {
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for 1 text", domain.ErrEmbedding, len(vecs))
	}
	return vecs[0], nil
}

func roundTo2(x float64) float64 {
	return math.Round(x*100) / 100
}
