package assistant

import (
	"context"
	"errors"

	"go.uber.org/atomic"

	"medbot/internal/answer"
)

// Answerer produces an answer for a normalized, possibly rewritten query.
type Answerer interface {
	Answer(ctx context.Context, query string) (string, error)
}

// ErrAlreadyReady is returned by a second MarkReady.
var ErrAlreadyReady = errors.New("assistant state is already ready")

type holder struct{ answerer Answerer }

// State moves once from not ready to ready. The zero value is not ready.
type State struct {
	p atomic.Pointer[holder]
}

// MarkReady publishes the answerer to every request that follows.
func (s *State) MarkReady(a Answerer) error {
	if a == nil {
		return errors.New("nil answerer")
	}
	if !s.p.CompareAndSwap(nil, &holder{answerer: a}) {
		return ErrAlreadyReady
	}
	return nil
}

func (s *State) Ready() bool { return s.p.Load() != nil }

// Answerer returns the published answerer, if any.
func (s *State) Answerer() (Answerer, bool) {
	h := s.p.Load()
	if h == nil {
		return nil, false
	}
	return h.answerer, true
}

// Answer delegates to the answerer, or fails with answer.ErrNotReady
// without blocking.
func (s *State) Answer(ctx context.Context, query string) (string, error) {
	a, ok := s.Answerer()
	if !ok {
		return "", answer.ErrNotReady
	}
	return a.Answer(ctx, query)
}
