// Package generation builds the grounded-answer prompt shared by the
// generation providers.
package generation

import (
	"fmt"
	"strings"

	"manualrag/internal/domain"
)

// SystemPrompt instructs the model to answer from the retrieved context and
// to reply with req.NoAnswer verbatim when the context is unrelated.
func SystemPrompt(req domain.GenerationRequest) string {
	return fmt.Sprintf(`You answer questions about Ableton Live 12 and MIDI. Respond in %s.
Base your answer on the context below.
If the context directly answers the question, answer from it.
If it is only partly relevant, use whatever is useful and fill in with general knowledge.
Point toward the relevant manual section where you can.
Only reply "%s" if the context has absolutely nothing to do with the question.`,
		req.Language.DisplayName(), req.NoAnswer)
}

// UserPrompt renders the retrieved contexts followed by the question.
func UserPrompt(req domain.GenerationRequest) string {
	return "Context:\n" + strings.Join(req.Contexts, "\n\n") + "\n\nQuestion:\n" + req.Query
}
