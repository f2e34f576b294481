package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is the MCP server's advertised implementation version.
const Version = "1.0.0"

// Server is the ingestion/retrieval service's tool surface, advertised
// over the Model Context Protocol.
type Server struct {
	ports  *Ports
	server *mcp.Server
}

// NewServer creates the MCP server and registers every tool against ports.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	impl := &mcp.Implementation{Name: "ingestcore", Version: Version}
	s := &Server{ports: ports, server: mcp.NewServer(impl, nil)}

	s.registerIngestionTools()
	s.registerQueryTools()
	s.registerMutationTools()
	s.registerVersioningTools()
	s.registerVerificationTools()
	s.registerBackupTools()

	return s, nil
}

// Run starts the server over stdio. It blocks until ctx is cancelled or
// the transport returns an error.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
