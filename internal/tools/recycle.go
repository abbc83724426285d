package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RecycleDataInput defines the input schema for the recycle_data tool.
type RecycleDataInput struct {
	Params map[string]any `json:"params,omitempty" jsonschema:"Parameters forwarded to the feed, e.g. conversation_id"`
}

// NewRecycleDataHandler creates the recycle_data tool handler.
// The feed's payload is returned verbatim.
func NewRecycleDataHandler(deps *Dependencies) mcp.ToolHandlerFor[RecycleDataInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RecycleDataInput) (*mcp.CallToolResult, any, error) {
		payload, err := deps.Recycle.Execute(ctx, input.Params)
		if err != nil {
			deps.Logger.Error("recycle feed failed", "error", err)
			return ErrorResult("Recycle feed request failed", "Check that the recycle feed is running"), nil, nil
		}
		return TextResult(string(payload)), nil, nil
	}
}
