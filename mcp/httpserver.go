package mcp

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewHTTPServer serves s over streamable HTTP at endpoint.
func NewHTTPServer(s *server.MCPServer, endpoint string) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s,
		server.WithEndpointPath(endpoint),
	)
}
