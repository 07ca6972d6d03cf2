package mcpserver

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medbot/internal/answer"
	"medbot/internal/assistant"
)

type fakeReplier struct {
	text string
	err  error
	got  string
}

func (f *fakeReplier) Reply(_ context.Context, raw string) (assistant.Reply, error) {
	f.got = raw
	return assistant.Reply{Kind: assistant.KindAnswer, Text: f.text}, f.err
}

func call(t *testing.T, f *fakeReplier, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = ToolName
	req.Params.Arguments = args
	res, err := HandleAsk(f, nil)(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestAskReturnsAnswerText(t *testing.T) {
	f := &fakeReplier{text: "Diabetes is a chronic condition."}
	res := call(t, f, map[string]any{"question": "what is diabetes"})
	assert.False(t, res.IsError)
	assert.Equal(t, "Diabetes is a chronic condition.", text(t, res))
	assert.Equal(t, "what is diabetes", f.got)
}

func TestAskRequiresQuestion(t *testing.T) {
	f := &fakeReplier{}
	res := call(t, f, map[string]any{"question": "  "})
	assert.True(t, res.IsError)
	assert.Empty(t, f.got)

	res = call(t, f, map[string]any{})
	assert.True(t, res.IsError)
}

func TestAskReportsUpstreamFailures(t *testing.T) {
	f := &fakeReplier{err: &answer.UpstreamError{Op: "generate", Err: context.DeadlineExceeded}}
	res := call(t, f, map[string]any{"question": "fever"})
	assert.True(t, res.IsError)
	assert.Equal(t, "answer timed out", text(t, res))

	f.err = &answer.UpstreamError{Op: "retrieve", Err: errors.New("index down")}
	res = call(t, f, map[string]any{"question": "fever"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "index down")
}

func TestNewRegistersTool(t *testing.T) {
	s := New("medbot", "test", &fakeReplier{}, nil)
	require.NotNil(t, s)
}
