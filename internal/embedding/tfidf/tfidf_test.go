package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = []string{
	"Fever is a temporary increase in body temperature, often due to an infection.",
	"Diabetes is a chronic disease that affects how the body turns food into energy.",
	"Treatment of fever includes rest, fluids and paracetamol.",
}

func TestEmbedBeforePrepare(t *testing.T) {
	_, err := NewEmbedder().Embed(context.Background(), "fever")
	assert.Error(t, err)
}

func TestEmbedIsNormalized(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare(corpus))
	assert.Positive(t, e.Dimension())

	v, err := e.Embed(context.Background(), "What causes fever?")
	require.NoError(t, err)
	require.Len(t, v, e.Dimension())

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestEmbedUnknownTermsIsZero(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare(corpus))

	v, err := e.Embed(context.Background(), "xylophone")
	require.NoError(t, err)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestPrepareRejectsEmptyCorpus(t *testing.T) {
	e := NewEmbedder()
	assert.Error(t, e.Prepare(nil))
	assert.Error(t, e.Prepare([]string{"the and of"}))
}

func TestEmbedHonoursContext(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare(corpus))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Embed(ctx, "fever")
	assert.ErrorIs(t, err, context.Canceled)
}
