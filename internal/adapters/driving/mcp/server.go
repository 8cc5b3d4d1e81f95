package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is the MCP server version.
const Version = "0.1.0"

// ServerName is the implementation name reported to clients.
const ServerName = "kcache"

const (
	instructions = "kcache is a local knowledge cache. Call search with a question " +
		"or keywords to retrieve saved passages, ranked by relevance. When a search " +
		"reports reindex_required, stored vectors came from another embedding model " +
		"and the user must run `kcache reindex`."
	ingestInstructions = " Call ingest to save text the user wants to find later; " +
		"saving the same text twice returns the existing item."
)

// Option configures a Server.
type Option func(*Server)

// WithReadOnly hides the ingest tool even when an ingest service is set.
func WithReadOnly(readOnly bool) Option {
	return func(s *Server) {
		s.readOnly = readOnly
	}
}

// Server is the MCP server for kcache.
type Server struct {
	ports    *Ports
	server   *mcp.Server
	readOnly bool
	tools    []string
}

// NewServer creates a new MCP server with the given ports.
func NewServer(ports *Ports, opts ...Option) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{ports: ports}
	for _, opt := range opts {
		opt(s)
	}

	impl := &mcp.Implementation{
		Name:    ServerName,
		Version: Version,
	}
	s.server = mcp.NewServer(impl, &mcp.ServerOptions{Instructions: s.Instructions()})

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Writable reports whether clients may save new knowledge.
func (s *Server) Writable() bool {
	return !s.readOnly && s.ports.Ingest != nil
}

// Instructions returns the usage hint sent to clients on initialisation.
func (s *Server) Instructions() string {
	if s.Writable() {
		return instructions + ingestInstructions
	}
	return instructions
}

// Tools returns the names of the registered tools in registration order.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// Run starts the MCP server over stdio.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP starts the MCP server over HTTP on the specified address.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
