package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/datachat/internal/session"
)

// AskDataInput defines the input schema for the ask_data tool.
type AskDataInput struct {
	Query          string `json:"query" jsonschema:"The question to ask about the data"`
	ConversationID string `json:"conversationId,omitempty" jsonschema:"Conversation to continue; omit to start a new one"`
}

// AskDataResult is the JSON body returned by ask_data.
type AskDataResult struct {
	ConversationID string          `json:"conversationId"`
	Text           string          `json:"text"`
	SQL            string          `json:"sql,omitempty"`
	ChartData      json.RawMessage `json:"chartData,omitempty"`
	IsError        bool            `json:"isError,omitempty"`
}

// NewAskDataHandler creates the ask_data tool handler.
// Each call is one turn of a session held in deps.Sessions.
func NewAskDataHandler(deps *Dependencies) mcp.ToolHandlerFor[AskDataInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskDataInput) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(input.Query) == "" {
			return ErrorResult("Query cannot be empty", "Provide a question"), nil, nil
		}

		var s *session.Session
		if input.ConversationID == "" {
			s = deps.Sessions.Create()
			deps.Logger.Info("conversation started", "conversation_id", s.ConversationID())
		} else {
			var ok bool
			s, ok = deps.Sessions.Get(input.ConversationID)
			if !ok {
				return ErrorResult("Unknown conversation "+input.ConversationID,
					"Omit conversationId to start a new conversation"), nil, nil
			}
		}

		err := s.SendMessage(ctx, input.Query)
		if errors.Is(err, session.ErrGenerating) {
			return ErrorResult("The previous question in this conversation is still being answered",
				"Wait for it to finish, then ask again"), nil, nil
		}
		if err != nil {
			return ErrorResult(err.Error(), ""), nil, nil
		}

		msgs := s.Messages()
		last := msgs[len(msgs)-1]
		result := AskDataResult{
			ConversationID: s.ConversationID(),
			Text:           last.Text,
			SQL:            last.SQL,
			ChartData:      last.ChartData,
			IsError:        last.IsError,
		}
		jsonBytes, _ := json.MarshalIndent(result, "", "  ")

		return TextResult(string(jsonBytes)), nil, nil
	}
}

// EndConversationInput defines the input schema for the end_conversation tool.
type EndConversationInput struct {
	ConversationID string `json:"conversationId" jsonschema:"Conversation to forget"`
}

// NewEndConversationHandler creates the end_conversation tool handler.
func NewEndConversationHandler(deps *Dependencies) mcp.ToolHandlerFor[EndConversationInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input EndConversationInput) (*mcp.CallToolResult, any, error) {
		if !deps.Sessions.Remove(input.ConversationID) {
			return ErrorResult("Unknown conversation "+input.ConversationID, ""), nil, nil
		}
		deps.Logger.Info("conversation ended", "conversation_id", input.ConversationID)
		return TextResult("ok"), nil, nil
	}
}
