package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultGuards() *Guards {
	return NewGuards(DefaultGreetings(), DefaultVaguePronouns(), 6)
}

func TestClassify(t *testing.T) {
	g := defaultGuards()
	tests := []struct {
		in   string
		want Intent
	}{
		{"hello", IntentGreeting},
		{"  Hello  ", IntentGreeting},
		{"HI", IntentGreeting},
		{"Hello!", IntentGreeting},
		{"good   morning", IntentGreeting},
		{"Good Evening.", IntentGreeting},
		{"hi there", IntentQuestion},
		{"hello doctor what is fever", IntentQuestion},
		{"what about it", IntentVague},
		{"What about it?", IntentVague},
		{"is this bad", IntentVague},
		{"what causes those symptoms now", IntentVague},
		{"why do they hurt so much", IntentQuestion},
		{"I have a fever, what causes it", IntentQuestion},
		{"what is fever", IntentQuestion},
		{"itching skin", IntentQuestion},
		{"", IntentQuestion},
		{"...", IntentQuestion},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Classify(tt.in))
		})
	}
}

func TestClassifyTokenThresholdIsStrict(t *testing.T) {
	g := defaultGuards()
	assert.Equal(t, IntentVague, g.Classify("one two three four it"))
	assert.Equal(t, IntentQuestion, g.Classify("one two three four five it"))
}

func TestGuardsCustomTables(t *testing.T) {
	g := NewGuards([]string{"Hallo"}, []string{"es"}, 3)
	assert.Equal(t, IntentGreeting, g.Classify("hallo"))
	assert.Equal(t, IntentQuestion, g.Classify("hello"))
	assert.Equal(t, IntentVague, g.Classify("was es"))
	assert.Equal(t, IntentQuestion, g.Classify("was ist es"))
}

func TestGuardTokens(t *testing.T) {
	assert.Equal(t, []string{"what", "about", "it"}, GuardTokens("  What about   it?! "))
	assert.Empty(t, GuardTokens(" \t "))
	assert.Equal(t, []string{"don't"}, GuardTokens("'don't'"))
}

func TestIntentString(t *testing.T) {
	assert.Equal(t, "greeting", IntentGreeting.String())
	assert.Equal(t, "vague", IntentVague.String())
	assert.Equal(t, "question", IntentQuestion.String())
}
