package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"manualrag/internal/domain"
	"manualrag/internal/generation"
)

const (
	DefaultModel           = "gemini-2.0-flash"
	DefaultMaxOutputTokens = 1000
	DefaultRequestsPerMin  = 10
)

// Config configures the Gemini generator.
type Config struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
	Temperature     float32
	// RequestsPerMinute throttles calls client side; zero means the default,
	// negative disables the limiter.
	RequestsPerMinute int
}

// Generator answers grounded questions with a Gemini model. Calls pass
// through a rate limiter and a circuit breaker.
type Generator struct {
	client    *genai.Client
	model     string
	maxTokens int32
	temp      float32
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	// call is replaced in tests.
	call func(ctx context.Context, system, user string) (string, error)
}

// New connects a Gemini generator. Close releases the underlying client.
func New(ctx context.Context, cfg Config, logger *slog.Logger, opts ...option.ClientOption) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini generator: api key is required")
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("gemini generator: %w", err)
	}
	g := newGenerator(cfg, logger)
	g.client = client
	g.call = g.remoteCall
	return g, nil
}

func newGenerator(cfg Config, logger *slog.Logger) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = DefaultRequestsPerMin
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), max(1, cfg.RequestsPerMinute/10))
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Quota errors are reported to the user as such; they should not open the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || IsQuotaError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Generator{
		model:     cfg.Model,
		maxTokens: int32(cfg.MaxOutputTokens),
		temp:      cfg.Temperature,
		limiter:   limiter,
		breaker:   breaker,
	}
}

// Name returns the identifier of this generator implementation.
func (g *Generator) Name() string { return "gemini" }

// Close releases the client connection.
func (g *Generator) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Generate answers req.Query from req.Contexts.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: gemini: %w", domain.ErrGeneration, err)
	}
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.call(ctx, generation.SystemPrompt(req), generation.UserPrompt(req))
	})
	if err != nil {
		if IsQuotaError(err) {
			return "", fmt.Errorf("%w: gemini: %w", domain.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("%w: gemini: %w", domain.ErrGeneration, err)
	}
	return strings.TrimSpace(out.(string)), nil
}

func (g *Generator) remoteCall(ctx context.Context, system, user string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	model.SetMaxOutputTokens(g.maxTokens)
	if g.temp > 0 {
		model.SetTemperature(g.temp)
	}
	resp, err := model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		break
	}
	if b.Len() == 0 {
		return "", errors.New("empty response")
	}
	return b.String(), nil
}

// IsQuotaError reports whether err signals exhausted quota or rate limiting,
// over either the REST or the gRPC transport.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	if status.Code(err) == codes.ResourceExhausted {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
