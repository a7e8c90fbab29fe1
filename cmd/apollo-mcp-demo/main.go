// Command apollo-mcp-demo runs the demo MCP server over stdio. It is used
// for trying out the tool-provider integration locally:
//
//	{"mcp": {"demo": {"type": "stdio", "command": ["apollo-mcp-demo"]}}}
package main

import (
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/apollo-chat/apollo/pkg/mcpserver/demo"
)

func main() {
	s := demo.NewServer()
	if err := server.ServeStdio(s); err != nil {
		log.Fatal(err)
	}
}
