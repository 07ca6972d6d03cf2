package query

import (
	"strings"
	"unicode"
)

// Canned replies for inputs that never reach retrieval.
const (
	GreetingReply = "Hello 👋 I'm your medical assistant. Please ask a medical question."
	ClarifyReply  = "Could you please clarify which medical condition you are referring to? " +
		"For example: 'What is the treatment for fever?'"
)

// Intent is the outcome of the guard checks.
type Intent int

const (
	IntentQuestion Intent = iota
	IntentGreeting
	IntentVague
)

func (i Intent) String() string {
	switch i {
	case IntentGreeting:
		return "greeting"
	case IntentVague:
		return "vague"
	default:
		return "question"
	}
}

// DefaultGreetings are matched against the whole input.
func DefaultGreetings() []string {
	return []string{"hi", "hello", "hey", "good morning", "good evening"}
}

// DefaultVaguePronouns mark a short query as underspecified.
func DefaultVaguePronouns() []string {
	return []string{"it", "this", "that", "they", "those", "these"}
}

// Guards classifies raw input before normalization. Both checks work on
// the same token form: lowercase, split on whitespace, surrounding
// punctuation stripped from every token.
type Guards struct {
	greetings map[string]struct{}
	pronouns  map[string]struct{}
	maxTokens int
}

// NewGuards builds the guard tables. maxTokens is the exclusive upper
// bound on the token count for the vagueness check.
func NewGuards(greetings, pronouns []string, maxTokens int) *Guards {
	g := &Guards{
		greetings: make(map[string]struct{}, len(greetings)),
		pronouns:  make(map[string]struct{}, len(pronouns)),
		maxTokens: maxTokens,
	}
	for _, phrase := range greetings {
		if key := strings.Join(GuardTokens(phrase), " "); key != "" {
			g.greetings[key] = struct{}{}
		}
	}
	for _, p := range pronouns {
		for _, tok := range GuardTokens(p) {
			g.pronouns[tok] = struct{}{}
		}
	}
	return g
}

// Classify runs the greeting check, then the vagueness check.
func (g *Guards) Classify(raw string) Intent {
	tokens := GuardTokens(raw)
	if len(tokens) == 0 {
		return IntentQuestion
	}
	if _, ok := g.greetings[strings.Join(tokens, " ")]; ok {
		return IntentGreeting
	}
	if len(tokens) < g.maxTokens {
		for _, tok := range tokens {
			if _, ok := g.pronouns[tok]; ok {
				return IntentVague
			}
		}
	}
	return IntentQuestion
}

// GuardTokens splits raw input the way the guards see it.
func GuardTokens(raw string) []string {
	fields := strings.Fields(fold(strings.TrimSpace(raw)))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
