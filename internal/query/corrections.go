package query

import (
	"fmt"
	"sort"
	"strings"
)

// CorrectionsTable maps a lowercase token to its canonical spelling.
// It is immutable after construction and safe for concurrent reads.
type CorrectionsTable struct {
	m map[string]string
}

// DefaultCorrections returns a fresh copy of the built-in corrections.
func DefaultCorrections() map[string]string {
	return map[string]string{
		"feaver":     "fever",
		"medictions": "medications",
		"medicines":  "medications",
		"medicine":   "medication",
		"causes":     "causes",
		"cause":      "causes",
	}
}

// NewCorrectionsTable validates entries and freezes them into a table.
// Keys and values must each be a single word token. A value may not itself
// be corrected to something else, otherwise normalizing twice would give a
// different result than normalizing once.
func NewCorrectionsTable(entries map[string]string) (CorrectionsTable, error) {
	m := make(map[string]string, len(entries))
	for k, v := range entries {
		key, err := singleToken(k)
		if err != nil {
			return CorrectionsTable{}, fmt.Errorf("correction key %q: %w", k, err)
		}
		val, err := singleToken(v)
		if err != nil {
			return CorrectionsTable{}, fmt.Errorf("correction value %q for %q: %w", v, k, err)
		}
		m[key] = val
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := m[k]
		if next, ok := m[v]; ok && next != v {
			return CorrectionsTable{}, fmt.Errorf("correction %q -> %q chains to %q", k, v, next)
		}
	}
	return CorrectionsTable{m: m}, nil
}

// MergeCorrections overlays overrides on the defaults.
func MergeCorrections(overrides map[string]string) map[string]string {
	merged := DefaultCorrections()
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// Correct returns the canonical form of token, or token itself.
func (t CorrectionsTable) Correct(token string) string {
	if v, ok := t.m[token]; ok {
		return v
	}
	return token
}

// Len reports the number of entries.
func (t CorrectionsTable) Len() int { return len(t.m) }

func singleToken(s string) (string, error) {
	toks := Tokens(s)
	if len(toks) != 1 {
		return "", fmt.Errorf("must be exactly one word, got %d", len(toks))
	}
	if toks[0] != strings.TrimSpace(s) && toks[0] != fold(strings.TrimSpace(s)) {
		return "", fmt.Errorf("contains non-word characters")
	}
	return toks[0], nil
}
