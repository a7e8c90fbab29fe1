// Package demo provides a small MCP server used to exercise the
// tool-provider integration end to end.
package demo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates an MCP server with echo and current_time tools.
func NewServer() *server.MCPServer {
	s := server.NewMCPServer(
		"apollo-demo",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	echoTool := mcp.NewTool("echo",
		mcp.WithDescription("Echoes the given text back to the caller"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text to echo"),
		),
		mcp.WithBoolean("uppercase",
			mcp.Description("Return the text uppercased"),
		),
	)
	s.AddTool(echoTool, echoHandler)

	timeTool := mcp.NewTool("current_time",
		mcp.WithDescription("Returns the current time in RFC 3339 format"),
		mcp.WithString("timezone",
			mcp.Description("IANA timezone name, defaults to UTC"),
		),
	)
	s.AddTool(timeTool, timeHandler)

	return s
}

func echoHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	text, ok := args["text"].(string)
	if !ok {
		return mcp.NewToolResultError("text argument is required"), nil
	}

	if upper, _ := args["uppercase"].(bool); upper {
		text = strings.ToUpper(text)
	}
	return mcp.NewToolResultText(text), nil
}

func timeHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	loc := time.UTC
	if tz, ok := args["timezone"].(string); ok && tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("unknown timezone: %v", err)), nil
		}
		loc = parsed
	}
	return mcp.NewToolResultText(time.Now().In(loc).Format(time.RFC3339)), nil
}
