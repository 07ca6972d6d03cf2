package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	table, err := NewCorrectionsTable(DefaultCorrections())
	require.NoError(t, err)
	return NewNormalizer(table)
}

func TestNormalize(t *testing.T) {
	n := defaultNormalizer(t)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"corrections", "medicine for feaver", "medication for fever"},
		{"case and punctuation", "What CAUSES a Fever?!", "what causes a fever"},
		{"singular cause", "cause of fever", "causes of fever"},
		{"plural medicines", "Medicines, for headache", "medications for headache"},
		{"whitespace collapsed", "  fever \t\n  chills  ", "fever chills"},
		{"empty", "", ""},
		{"whitespace only", "   \t ", ""},
		{"punctuation only", "?!...", ""},
		{"digits kept", "ibuprofen 400mg", "ibuprofen 400mg"},
		{"unicode words", "Fièvre ÉLEVÉE", "fièvre élevée"},
		{"fullwidth folded", "ＦＥＶＥＲ", "fever"},
		{"underscore is a word char", "snake_case", "snake_case"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := defaultNormalizer(t)
	inputs := []string{
		"",
		"medicine for feaver",
		"I have a fever, what causes it",
		"ΣΊΣΥΦΟΣ ΟΔΟΣ",
		"İstanbul DİŞ ağrısı",
		"ＭＥＤＩＣＩＮＥ",
		"école",
		"cause causes CAUSE",
		"hello 👋 there",
		"a.b,c;d",
	}
	for _, in := range inputs {
		once := n.Normalize(in)
		assert.Equal(t, once, n.Normalize(once), "input %q", in)
	}
}

func TestNormalizeIsTotal(t *testing.T) {
	n := defaultNormalizer(t)
	inputs := []string{"\x00", "\xff\xfe", string([]byte{0xc3}), "🙂🙂", "​"}
	for _, in := range inputs {
		assert.NotPanics(t, func() { n.Normalize(in) })
	}
}

func TestCorrectionsTableRejectsChains(t *testing.T) {
	_, err := NewCorrectionsTable(map[string]string{"fevr": "feaver", "feaver": "fever"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chains")
}

func TestCorrectionsTableRejectsPhrases(t *testing.T) {
	_, err := NewCorrectionsTable(map[string]string{"head ache": "headache"})
	assert.Error(t, err)

	_, err = NewCorrectionsTable(map[string]string{"fevr": "fever!"})
	assert.Error(t, err)
}

func TestCorrectionsTableFoldsKeys(t *testing.T) {
	table, err := NewCorrectionsTable(map[string]string{"Fevr": "Fever"})
	require.NoError(t, err)
	assert.Equal(t, "fever", table.Correct("fevr"))
	assert.Equal(t, "cough", table.Correct("cough"))
	assert.Equal(t, 1, table.Len())
}

func TestMergeCorrectionsKeepsDefaults(t *testing.T) {
	merged := MergeCorrections(map[string]string{"hedache": "headache"})
	assert.Equal(t, "headache", merged["hedache"])
	assert.Equal(t, "fever", merged["feaver"])
	assert.NotContains(t, DefaultCorrections(), "hedache")
}
