package answer

import (
	"fmt"
	"strings"
	"text/template"

	"medbot/internal/domain"
)

// DefaultSystemPrompt constrains the model to the retrieved context.
const DefaultSystemPrompt = "You are a medical assistant for question-answering tasks. " +
	"Use only the retrieved medical context to answer the question. " +
	"If the context is not relevant or the question is unclear, ask for clarification. " +
	"If the answer is not present in the context, say that you do not know. " +
	"Do not repeat words or phrases. " +
	"Use a maximum of three sentences and keep the answer concise." +
	"\n\n" +
	"{{.Context}}"

// FallbackAnswer is returned when the model produces no answer.
const FallbackAnswer = "Sorry, I could not find a relevant answer."

const contextSeparator = "\n\n"

// PromptBuilder renders the system instruction with as much retrieved
// context as the token budget allows.
type PromptBuilder struct {
	tmpl      *template.Template
	counter   TokenCounter
	maxTokens int
}

// NewPromptBuilder parses system as a text/template. A template without a
// {{.Context}} slot gets one appended after a blank line. maxTokens <= 0
// disables the budget.
func NewPromptBuilder(system string, counter TokenCounter, maxTokens int) (*PromptBuilder, error) {
	if strings.TrimSpace(system) == "" {
		system = DefaultSystemPrompt
	}
	if !strings.Contains(system, ".Context") {
		system += contextSeparator + "{{.Context}}"
	}
	tmpl, err := template.New("system").Option("missingkey=error").Parse(system)
	if err != nil {
		return nil, fmt.Errorf("parse system prompt: %w", err)
	}
	if counter == nil {
		counter = WordCounter{}
	}
	return &PromptBuilder{tmpl: tmpl, counter: counter, maxTokens: maxTokens}, nil
}

// Fit applies the context window policy: chunks are taken in rank order,
// the first chunk that overflows the budget is cut at a word boundary,
// and everything after it is dropped.
func (b *PromptBuilder) Fit(chunks []domain.RetrievedChunk) []string {
	out := make([]string, 0, len(chunks))
	used := 0
	for _, c := range chunks {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		if b.maxTokens <= 0 {
			out = append(out, text)
			continue
		}
		n := b.counter.Count(text)
		if used+n <= b.maxTokens {
			out = append(out, text)
			used += n
			continue
		}
		if cut := b.counter.Truncate(text, b.maxTokens-used); cut != "" {
			out = append(out, cut)
		}
		break
	}
	return out
}

// Build renders the generation request for query over chunks.
func (b *PromptBuilder) Build(query string, chunks []domain.RetrievedChunk, params domain.GenerationParams) (domain.GenerationRequest, error) {
	passages := b.Fit(chunks)
	var sb strings.Builder
	err := b.tmpl.Execute(&sb, struct {
		Context string
		Query   string
	}{
		Context: strings.Join(passages, contextSeparator),
		Query:   query,
	})
	if err != nil {
		return domain.GenerationRequest{}, fmt.Errorf("render system prompt: %w", err)
	}
	return domain.GenerationRequest{
		System:  sb.String(),
		User:    query,
		Context: passages,
		Params:  params,
	}, nil
}
