package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestEmbed_ShapeAndNorm(t *testing.T) {
	e := NewEmbedder(64)
	vecs, err := e.Embed(context.Background(), []string{"Warp markers align audio", "the of and", ""})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, 64)
	}
	assert.InDelta(t, 1.0, norm(vecs[0]), 1e-9)
	assert.Equal(t, 0.0, norm(vecs[1]))
	assert.Equal(t, 0.0, norm(vecs[2]))
}

func TestEmbed_Deterministic(t *testing.T) {
	a, err := NewEmbedder(0).Embed(context.Background(), []string{"Clip envelopes"})
	require.NoError(t, err)
	b, err := NewEmbedder(0).Embed(context.Background(), []string{"clip ENVELOPES"})
	require.NoError(t, err)
	assert.Len(t, a[0], DefaultDimension)
	assert.Equal(t, a, b)
}

func TestEmbed_RelatedTextsScoreHigher(t *testing.T) {
	e := NewEmbedder(DefaultDimension)
	vecs, err := e.Embed(context.Background(), []string{
		"How do I record automation in the arrangement?",
		"Recording automation in the Arrangement View writes envelopes.",
		"Drum Rack pads hold samples and instruments.",
	})
	require.NoError(t, err)
	assert.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))
}

func TestEmbed_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbedder(8).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}
