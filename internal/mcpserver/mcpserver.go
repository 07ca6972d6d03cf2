// Package mcpserver exposes the assistant as an MCP tool over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"medbot/internal/answer"
	"medbot/internal/assistant"
)

const ToolName = "ask-medical-question"

// Replier answers one raw user message.
type Replier interface {
	Reply(ctx context.Context, raw string) (assistant.Reply, error)
}

func askSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "question": {
      "type": "string",
      "description": "The medical question in natural language"
    }
  },
  "required": ["question"]
}`)
}

// New builds an MCP server with the ask tool registered.
func New(name, version string, a Replier, log *zap.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Answers medical questions from an indexed medical reference. Not a substitute for a doctor."),
	)
	s.AddTool(
		mcp.NewToolWithRawSchema(ToolName, "Answer a medical question using retrieval over the indexed medical reference", askSchema()),
		HandleAsk(a, log),
	)
	return s
}

// HandleAsk returns the tool handler. Upstream failures come back as
// tool errors so the calling agent can see them.
func HandleAsk(a Replier, log *zap.Logger) server.ToolHandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, _ := req.GetArguments()["question"].(string)
		if strings.TrimSpace(q) == "" {
			return mcp.NewToolResultError("question is required"), nil
		}
		reply, err := a.Reply(ctx, q)
		if err != nil {
			log.Warn("mcp ask failed", zap.Error(err))
			if errors.Is(err, answer.ErrTimeout) {
				return mcp.NewToolResultError("answer timed out"), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("answer failed: %v", err)), nil
		}
		return mcp.NewToolResultText(reply.Text), nil
	}
}

// ServeStdio blocks serving MCP requests on stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
