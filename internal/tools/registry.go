package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ping",
		Description: "Test tool - responds with pong or echoes input",
	}, NewPingHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name: "ask_data",
		Description: "Ask the data analysis assistant a question in natural language. " +
			"Returns the answer text (Markdown, may include tables), the generated SQL and chart data. " +
			"Pass the returned conversationId to continue the same conversation.",
	}, NewAskDataHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "end_conversation",
		Description: "Forget a conversation started with ask_data",
	}, NewEndConversationHandler(deps))

	if deps.Recycle != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "recycle_data",
			Description: "Fetch recycling traceability data from the recycle feed",
		}, NewRecycleDataHandler(deps))
	}
}
