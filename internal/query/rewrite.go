package query

import (
	"fmt"
	"strings"
	"text/template"
)

// Rule rewrites a normalized query into a canonical question when every
// trigger term is present. A term is present when some token starts with
// it, so "cause" also matches "causes".
type Rule struct {
	Name     string
	Terms    []string
	Template string
}

// DefaultRules holds the single built-in rewrite.
func DefaultRules() []Rule {
	return []Rule{{
		Name:     "fever-causes",
		Terms:    []string{"fever", "cause"},
		Template: "What are the causes and medications for fever?",
	}}
}

type compiledRule struct {
	name  string
	terms []string
	tmpl  *template.Template
}

// templateData is what a rule template can reference.
type templateData struct {
	Query  string
	Tokens []string
}

// Rewriter evaluates rules in order; the first matching rule wins.
type Rewriter struct {
	rules []compiledRule
}

// NewRewriter parses every template up front.
func NewRewriter(rules []Rule) (*Rewriter, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("rule-%d", i)
		}
		var terms []string
		for _, t := range r.Terms {
			terms = append(terms, Tokens(t)...)
		}
		if len(terms) == 0 {
			return nil, fmt.Errorf("rewrite rule %s: no terms", name)
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(r.Template)
		if err != nil {
			return nil, fmt.Errorf("rewrite rule %s: %w", name, err)
		}
		compiled = append(compiled, compiledRule{name: name, terms: terms, tmpl: tmpl})
	}
	return &Rewriter{rules: compiled}, nil
}

// Rewrite returns the canonical question for normalized, or normalized
// unchanged when no rule applies.
func (r *Rewriter) Rewrite(normalized string) string {
	out, _ := r.Apply(normalized)
	return out
}

// Apply is Rewrite that also reports which rule fired ("" for none).
func (r *Rewriter) Apply(normalized string) (string, string) {
	tokens := strings.Fields(normalized)
	for _, rule := range r.rules {
		if !rule.matches(tokens) {
			continue
		}
		var b strings.Builder
		if err := rule.tmpl.Execute(&b, templateData{Query: normalized, Tokens: tokens}); err != nil {
			continue
		}
		if out := strings.TrimSpace(b.String()); out != "" {
			return out, rule.name
		}
	}
	return normalized, ""
}

// matches requires every term to prefix some token, so "cause" matches
// "causes" but not "because".
func (c compiledRule) matches(tokens []string) bool {
	for _, term := range c.terms {
		found := false
		for _, tok := range tokens {
			if strings.HasPrefix(tok, term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
