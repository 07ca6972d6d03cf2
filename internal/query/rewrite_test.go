package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteFeverCauses(t *testing.T) {
	r, err := NewRewriter(DefaultRules())
	require.NoError(t, err)
	n := defaultNormalizer(t)

	normalized := n.Normalize("I have a fever, what causes it")
	assert.Equal(t, "i have a fever what causes it", normalized)
	assert.Equal(t, "What are the causes and medications for fever?", r.Rewrite(normalized))
}

func TestRewriteLeavesOtherQueries(t *testing.T) {
	r, err := NewRewriter(DefaultRules())
	require.NoError(t, err)

	for _, q := range []string{"what is fever", "causes of headache", "", "medication for cough"} {
		out, rule := r.Apply(q)
		assert.Equal(t, q, out)
		assert.Empty(t, rule)
	}
}

func TestRewriteFirstMatchWins(t *testing.T) {
	r, err := NewRewriter([]Rule{
		{Name: "fever-treatment", Terms: []string{"fever", "treat"}, Template: "How is fever treated?"},
		{Name: "fever-any", Terms: []string{"fever"}, Template: "What is fever?"},
	})
	require.NoError(t, err)

	out, rule := r.Apply("how to treat a fever")
	assert.Equal(t, "How is fever treated?", out)
	assert.Equal(t, "fever-treatment", rule)

	out, rule = r.Apply("fever in children")
	assert.Equal(t, "What is fever?", out)
	assert.Equal(t, "fever-any", rule)
}

func TestRewriteTemplateSeesQuery(t *testing.T) {
	r, err := NewRewriter([]Rule{{Terms: []string{"dose"}, Template: "What is the recommended dosage? ({{.Query}})"}})
	require.NoError(t, err)
	assert.Equal(t, "What is the recommended dosage? (paracetamol dose)", r.Rewrite("paracetamol dose"))
}

func TestNewRewriterRejectsBadRules(t *testing.T) {
	_, err := NewRewriter([]Rule{{Name: "empty", Template: "x"}})
	assert.Error(t, err)

	_, err = NewRewriter([]Rule{{Name: "broken", Terms: []string{"a"}, Template: "{{.Query"}})
	assert.Error(t, err)
}

func TestRewriteTermsMatchTokenPrefixes(t *testing.T) {
	r, err := NewRewriter(DefaultRules())
	require.NoError(t, err)

	out, rule := r.Apply("what caused my fever")
	assert.Equal(t, "What are the causes and medications for fever?", out)
	assert.Equal(t, "fever-causes", rule)

	// "cause" inside "because" is not a token prefix.
	out, rule = r.Apply("because of fever")
	assert.Equal(t, "because of fever", out)
	assert.Empty(t, rule)
}
