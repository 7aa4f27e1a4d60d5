package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/codememory-mcp/internal/docs"
	"github.com/dshills/codememory-mcp/internal/generator"
	"github.com/dshills/codememory-mcp/internal/indexer"
	"github.com/dshills/codememory-mcp/internal/relevance"
	"github.com/dshills/codememory-mcp/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "codememory-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Options holds the dependencies of a Server
type Options struct {
	Indexer   *indexer.Indexer
	Generator generator.Client // nil disables summarize_file and generate_docs
	Policy    relevance.Policy
	Logger    *slog.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp        *server.MCPServer
	storage    storage.Storage // nil with the JSON cache backend
	indexer    *indexer.Indexer
	summarizer *generator.Summarizer
	docs       *docs.Generator
	policy     relevance.Policy
	logger     *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(opts Options) (*Server, error) {
	if opts.Indexer == nil {
		return nil, errors.New("indexer is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		storage: opts.Indexer.Storage(),
		indexer: opts.Indexer,
		policy:  opts.Policy,
		logger:  opts.Logger,
	}
	if opts.Generator != nil {
		s.summarizer = generator.NewSummarizer(opts.Generator, opts.Logger)
		s.docs = docs.New(opts.Indexer, opts.Generator, opts.Policy, opts.Logger)
	}

	s.registerTools()
	return s, nil
}

// Serve runs the MCP server on stdio until the client disconnects
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexProjectTool(), s.handleIndexProject)
	s.mcp.AddTool(getRelevantMemoryTool(), s.handleGetRelevantMemory)
	s.mcp.AddTool(getProjectMemoryTool(), s.handleGetProjectMemory)
	s.mcp.AddTool(searchSymbolsTool(), s.handleSearchSymbols)
	s.mcp.AddTool(summarizeFileTool(), s.handleSummarizeFile)
	s.mcp.AddTool(generateDocsTool(), s.handleGenerateDocs)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
