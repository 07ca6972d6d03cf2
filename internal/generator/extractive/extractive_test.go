package extractive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medbot/internal/domain"
)

var passages = []string{
	"Fever is a temporary increase in body temperature. It is often caused by an infection.",
	"Diabetes affects blood sugar. Fever can be treated with paracetamol and rest.",
	"Fever is a temporary increase in body temperature.",
}

func TestGeneratePicksQueryRelevantSentences(t *testing.T) {
	g := New(2)
	out, err := g.Generate(context.Background(), domain.GenerationRequest{
		User:    "What are the causes and medications for fever?",
		Context: passages,
	})
	require.NoError(t, err)
	assert.Equal(t, "extractive", out.Model)
	assert.Contains(t, out.Text, "Fever")
	assert.NotContains(t, out.Text, "Diabetes")
	assert.Equal(t, 1, countOf(out.Text, "Fever is a temporary increase"), "duplicate sentences are collapsed")
}

func TestGenerateKeepsSourceOrder(t *testing.T) {
	g := New(3)
	out, err := g.Generate(context.Background(), domain.GenerationRequest{
		User:    "fever",
		Context: passages,
	})
	require.NoError(t, err)
	assert.Equal(t, "Fever is a temporary increase in body temperature. Fever can be treated with paracetamol and rest.", out.Text)
}

func TestGenerateNoOverlapIsEmpty(t *testing.T) {
	out, err := New(3).Generate(context.Background(), domain.GenerationRequest{
		User:    "xylophone lessons",
		Context: passages,
	})
	require.NoError(t, err)
	assert.Empty(t, out.Text)
}

func TestGenerateNoContext(t *testing.T) {
	out, err := New(3).Generate(context.Background(), domain.GenerationRequest{User: "fever"})
	require.NoError(t, err)
	assert.Empty(t, out.Text)
}

func countOf(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}
