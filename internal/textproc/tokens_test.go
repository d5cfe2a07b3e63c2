package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"record", "automation", "arrangement", "view"},
		Tokens("How do I record automation in the Arrangement View?"))
	assert.Equal(t, []string{"spelar", "automation"}, Tokens("Hur spelar man in automation"))
	assert.Equal(t, []string{"live", "12's", "browser"}, Tokens("Live 12's browser"))
	assert.Empty(t, Tokens("the of and"))
}

func TestSentences(t *testing.T) {
	got := Sentences("Clips loop. Scenes launch rows! Why? ... trailing text")
	assert.Equal(t, []string{"Clips loop.", "Scenes launch rows!", "Why?", "trailing text"}, got)
	assert.Empty(t, Sentences(" ... "))
}
