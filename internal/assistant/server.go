package assistant

import (
	"github.com/mark3labs/mcp-go/server"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// NewServer builds an MCP server exposing the calendar tools.
func NewServer(handler *CalendarHandler) (*server.MCPServer, error) {
	s := server.NewMCPServer(
		"famcal-assistant",
		Version,
		server.WithToolCapabilities(true),
	)
	if err := handler.RegisterTools(s); err != nil {
		return nil, err
	}
	return s, nil
}

// ServeStdio serves s on stdin and stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
