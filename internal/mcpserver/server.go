// Package mcpserver exposes the Sage tool set over the Model Context
// Protocol via stdio transport.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sagekb/sage/internal/tools"
)

// Server wraps the MCP server over a tool service.
type Server struct {
	mcp *server.MCPServer
	svc *tools.Service
}

// New creates an MCP server with the full Sage tool set registered. Every
// tool returns JSON text; tool-level failures are JSON error payloads, not
// protocol errors. instructions, when non-empty, is advertised to clients
// during initialization (the workspace's tutor/learner prompt documents).
func New(svc *tools.Service, instructions string) *Server {
	s := &Server{svc: svc}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	}
	if instructions != "" {
		opts = append(opts, server.WithInstructions(instructions))
	}
	s.mcp = server.NewMCPServer("sage", "1.0.0", opts...)

	s.mcp.AddTool(mcp.NewTool(tools.ToolList,
		mcp.WithDescription("List all indexed documents as knowledge cards, optionally filtered by topic."),
		mcp.WithString("topic", mcp.Description("Optional case-insensitive substring to match against card topics")),
	), s.handle)

	s.mcp.AddTool(mcp.NewTool(tools.ToolRead,
		mcp.WithDescription("Read a document's content. Long documents are truncated; pass a page number to read a specific page of a PDF."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Document path relative to the workspace root")),
		mcp.WithNumber("page", mcp.Description("Optional 0-indexed page (PDFs only)")),
	), s.handle)

	s.mcp.AddTool(mcp.NewTool(tools.ToolSearch,
		mcp.WithDescription("Full-text search across all documents and notes. Returns ranked snippets with «» around matched terms."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithNumber("max_results", mcp.Description("Maximum results to return (default 5)")),
	), s.handle)

	s.mcp.AddTool(mcp.NewTool(tools.ToolWriteNote,
		mcp.WithDescription("Create or overwrite a note in the notes area."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Note name, e.g. ideas.md")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note content")),
	), s.handle)

	s.mcp.AddTool(mcp.NewTool(tools.ToolReadNote,
		mcp.WithDescription("Read a note from the notes area."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Note name")),
	), s.handle)

	s.mcp.AddTool(mcp.NewTool(tools.ToolListNotes,
		mcp.WithDescription("List all notes in the notes area."),
	), s.handle)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// handle routes every tool call through the service dispatcher, so the MCP
// boundary and any other transport share one argument contract.
func (s *Server) handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := s.svc.Dispatch(req.Params.Name, req.GetArguments())
	return mcp.NewToolResultText(string(out)), nil
}
