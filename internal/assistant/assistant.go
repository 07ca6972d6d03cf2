package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"medbot/internal/answer"
	"medbot/internal/metrics"
	"medbot/internal/query"
)

// Kind says which branch produced a reply.
type Kind string

const (
	KindGreeting Kind = "greeting"
	KindClarify  Kind = "clarify"
	KindEmpty    Kind = "empty"
	KindNotReady Kind = "not_ready"
	KindAnswer   Kind = "answer"
	KindFallback Kind = "fallback"
)

const (
	NotReadyReply = "System is still starting. Please wait..."
	EmptyReply    = "Please type a medical question."
)

// Reply is the outcome of one request.
type Reply struct {
	Kind Kind
	Text string
	// Normalized and Query are empty for replies decided by the guards.
	Normalized string
	Query      string
	Rule       string
}

// Assistant runs guards, normalization and rewriting in front of the
// answer pipeline held by State.
type Assistant struct {
	guards     *query.Guards
	normalizer *query.Normalizer
	rewriter   *query.Rewriter
	state      *State
	timeout    time.Duration
	log        *zap.Logger
}

func New(guards *query.Guards, normalizer *query.Normalizer, rewriter *query.Rewriter, state *State, timeout time.Duration, log *zap.Logger) *Assistant {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assistant{
		guards:     guards,
		normalizer: normalizer,
		rewriter:   rewriter,
		state:      state,
		timeout:    timeout,
		log:        log,
	}
}

func (a *Assistant) Ready() bool { return a.state.Ready() }

// Reply answers one raw user message. Guard and not-ready replies never
// touch the index or the model. A non-nil error is an upstream failure
// (an *answer.UpstreamError, possibly matching answer.ErrTimeout).
func (a *Assistant) Reply(ctx context.Context, raw string) (Reply, error) {
	r, err := a.reply(ctx, raw)
	if err != nil {
		metrics.IncReply("error")
		return r, err
	}
	metrics.IncReply(string(r.Kind))
	return r, nil
}

func (a *Assistant) reply(ctx context.Context, raw string) (Reply, error) {
	trimmed := strings.TrimSpace(raw)
	switch a.guards.Classify(trimmed) {
	case query.IntentGreeting:
		return Reply{Kind: KindGreeting, Text: query.GreetingReply}, nil
	case query.IntentVague:
		return Reply{Kind: KindClarify, Text: query.ClarifyReply}, nil
	}

	normalized := a.normalizer.Normalize(trimmed)
	if normalized == "" {
		return Reply{Kind: KindEmpty, Text: EmptyReply}, nil
	}
	q, rule := a.rewriter.Apply(normalized)
	r := Reply{Normalized: normalized, Query: q, Rule: rule}
	a.log.Debug("query prepared",
		zap.String("raw", trimmed),
		zap.String("normalized", normalized),
		zap.String("query", q),
		zap.String("rule", rule),
	)

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	text, err := a.state.Answer(ctx, q)
	switch {
	case errors.Is(err, answer.ErrNotReady):
		r.Kind, r.Text = KindNotReady, NotReadyReply
		return r, nil
	case err != nil:
		return r, err
	case text == answer.FallbackAnswer:
		r.Kind = KindFallback
	default:
		r.Kind = KindAnswer
	}
	r.Text = text
	return r, nil
}
