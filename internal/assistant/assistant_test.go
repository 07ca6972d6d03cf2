package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medbot/internal/answer"
	"medbot/internal/query"
)

type fakeAnswerer struct {
	mu      sync.Mutex
	text    string
	err     error
	queries []string
}

func (f *fakeAnswerer) Answer(ctx context.Context, q string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.text, f.err
}

func (f *fakeAnswerer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func newAssistant(t *testing.T, state *State) *Assistant {
	t.Helper()
	table, err := query.NewCorrectionsTable(query.DefaultCorrections())
	require.NoError(t, err)
	rw, err := query.NewRewriter(query.DefaultRules())
	require.NoError(t, err)
	guards := query.NewGuards(query.DefaultGreetings(), query.DefaultVaguePronouns(), 6)
	return New(guards, query.NewNormalizer(table), rw, state, time.Second, nil)
}

func readyAssistant(t *testing.T, a Answerer) *Assistant {
	t.Helper()
	state := &State{}
	require.NoError(t, state.MarkReady(a))
	return newAssistant(t, state)
}

func TestGreetingShortCircuits(t *testing.T) {
	fake := &fakeAnswerer{text: "x"}
	a := readyAssistant(t, fake)

	for _, in := range []string{"hello", "  Hello ", "HI", "good morning", "Hey!"} {
		r, err := a.Reply(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, KindGreeting, r.Kind, in)
		assert.Equal(t, "Hello 👋 I'm your medical assistant. Please ask a medical question.", r.Text)
	}
	assert.Zero(t, fake.calls())
}

func TestGreetingIsExactMatch(t *testing.T) {
	fake := &fakeAnswerer{text: "answer"}
	a := readyAssistant(t, fake)

	r, err := a.Reply(context.Background(), "hi there doctor, my head hurts badly today")
	require.NoError(t, err)
	assert.Equal(t, KindAnswer, r.Kind)
	assert.Equal(t, 1, fake.calls())
}

func TestVagueInputAsksForClarification(t *testing.T) {
	fake := &fakeAnswerer{text: "x"}
	a := readyAssistant(t, fake)

	r, err := a.Reply(context.Background(), "what about it")
	require.NoError(t, err)
	assert.Equal(t, KindClarify, r.Kind)
	assert.Equal(t, query.ClarifyReply, r.Text)
	assert.Zero(t, fake.calls())
}

func TestLongQuestionWithPronounIsAnswered(t *testing.T) {
	fake := &fakeAnswerer{text: "ok"}
	a := readyAssistant(t, fake)

	r, err := a.Reply(context.Background(), "is it safe to take paracetamol daily")
	require.NoError(t, err)
	assert.Equal(t, KindAnswer, r.Kind)
}

func TestNormalizesAndRewrites(t *testing.T) {
	fake := &fakeAnswerer{text: "Fever is caused by infections."}
	a := readyAssistant(t, fake)

	r, err := a.Reply(context.Background(), "I have a fever, what causes it and how do I treat it")
	require.NoError(t, err)
	assert.Equal(t, "What are the causes and medications for fever?", r.Query)
	assert.Equal(t, "fever-causes", r.Rule)
	assert.Equal(t, []string{"What are the causes and medications for fever?"}, fake.queries)

	r, err = a.Reply(context.Background(), "medicine for feaver in young kids please")
	require.NoError(t, err)
	assert.Equal(t, "medication for fever in young kids please", r.Normalized)
	assert.Equal(t, r.Normalized, r.Query)
	assert.Empty(t, r.Rule)
}

func TestNotReadyMakesNoCalls(t *testing.T) {
	a := newAssistant(t, &State{})

	r, err := a.Reply(context.Background(), "what is the treatment for diabetes")
	require.NoError(t, err)
	assert.Equal(t, KindNotReady, r.Kind)
	assert.Equal(t, "System is still starting. Please wait...", r.Text)
	assert.False(t, a.Ready())
}

func TestAnswerPassesThroughUnmodified(t *testing.T) {
	text := "  Diabetes is managed with diet, exercise and insulin.  "
	a := readyAssistant(t, &fakeAnswerer{text: text})

	r, err := a.Reply(context.Background(), "how is diabetes treated")
	require.NoError(t, err)
	assert.Equal(t, KindAnswer, r.Kind)
	assert.Equal(t, text, r.Text)
}

func TestFallbackKind(t *testing.T) {
	a := readyAssistant(t, &fakeAnswerer{text: answer.FallbackAnswer})

	r, err := a.Reply(context.Background(), "how is diabetes treated")
	require.NoError(t, err)
	assert.Equal(t, KindFallback, r.Kind)
	assert.Equal(t, "Sorry, I could not find a relevant answer.", r.Text)
}

func TestPunctuationOnlyInput(t *testing.T) {
	fake := &fakeAnswerer{text: "x"}
	a := readyAssistant(t, fake)

	for _, in := range []string{"", "   ", "?!", "..."} {
		r, err := a.Reply(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, KindEmpty, r.Kind, in)
		assert.Equal(t, EmptyReply, r.Text)
	}
	assert.Zero(t, fake.calls())
}

func TestUpstreamErrorIsReturned(t *testing.T) {
	uerr := &answer.UpstreamError{Op: "generate", Err: errors.New("502")}
	a := readyAssistant(t, &fakeAnswerer{err: uerr})

	_, err := a.Reply(context.Background(), "how is diabetes treated")
	assert.ErrorIs(t, err, uerr)
}

func TestReplyAppliesTimeout(t *testing.T) {
	state := &State{}
	require.NoError(t, state.MarkReady(deadlineAnswerer{}))
	a := newAssistant(t, state)
	a.timeout = 10 * time.Millisecond

	_, err := a.Reply(context.Background(), "how is diabetes treated")
	assert.ErrorIs(t, err, answer.ErrTimeout)
}

type deadlineAnswerer struct{}

func (deadlineAnswerer) Answer(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", &answer.UpstreamError{Op: "generate", Err: ctx.Err()}
}
