package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"manualrag/internal/domain"
)

func TestPrompts(t *testing.T) {
	req := domain.GenerationRequest{
		Query:    "What is a Drum Rack?",
		Contexts: []string{"Drum Racks hold pads.", "Pads trigger samples."},
		Language: domain.LanguageSwedish,
		NoAnswer: "Inget svar.",
	}
	sys := SystemPrompt(req)
	assert.Contains(t, sys, "Respond in Swedish.")
	assert.Contains(t, sys, `"Inget svar."`)

	assert.Equal(t,
		"Context:\nDrum Racks hold pads.\n\nPads trigger samples.\n\nQuestion:\nWhat is a Drum Rack?",
		UserPrompt(req))
}

func TestUserPrompt_NoContexts(t *testing.T) {
	got := UserPrompt(domain.GenerationRequest{Query: "q", Contexts: []string{}})
	assert.Equal(t, "Context:\n\n\nQuestion:\nq", got)
}
