// Package mcpserver exposes the code-navigation operations as Model Context
// Protocol tools over stdio so coding agents can call them directly.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/teranos/codelens/callgraph"
	"github.com/teranos/codelens/logger"
	"github.com/teranos/codelens/symbols"
)

// DefaultDepth is the traversal depth used when a tool call omits one.
const DefaultDepth = 3

// Server wraps the call-graph service and symbol index behind MCP tools.
type Server struct {
	service       *callgraph.Service
	cache         *symbols.Cache
	workspaceRoot string
	server        *server.MCPServer
}

// New creates an MCP server over an already-constructed service and cache.
func New(service *callgraph.Service, cache *symbols.Cache, workspaceRoot, version string) *Server {
	s := &Server{
		service:       service,
		cache:         cache,
		workspaceRoot: workspaceRoot,
	}

	s.server = server.NewMCPServer(
		"codelens",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	zoomTool := mcp.NewTool("lens_zoom",
		mcp.WithDescription("Show a file's symbol outline at an adjustable nesting level"),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path relative to workspace root"),
		),
		mcp.WithNumber("level",
			mcp.Description("Nesting depth to show; 1 = top-level only, 0 = full outline (default: 1)"),
		),
	)
	s.server.AddTool(zoomTool, s.handleZoom)

	impactTool := mcp.NewTool("lens_impact",
		mcp.WithDescription("Show everything that transitively calls a symbol: the blast radius of changing it"),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path relative to workspace root"),
		),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Symbol name as it appears in the file's outline"),
		),
		mcp.WithNumber("depth",
			mcp.Description("Traversal depth (default: 3, max: 5)"),
		),
	)
	s.server.AddTool(impactTool, s.handleImpact)

	depsTool := mcp.NewTool("lens_deps",
		mcp.WithDescription("Show everything a symbol transitively calls"),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path relative to workspace root"),
		),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Symbol name as it appears in the file's outline"),
		),
		mcp.WithNumber("depth",
			mcp.Description("Traversal depth (default: 3, max: 5)"),
		),
	)
	s.server.AddTool(depsTool, s.handleDeps)

	refsTool := mcp.NewTool("lens_references",
		mcp.WithDescription("Find every reference to a symbol across the workspace"),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path relative to workspace root"),
		),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Symbol name as it appears in the file's outline"),
		),
		mcp.WithBoolean("include_declaration",
			mcp.Description("Include the declaration itself (default: true)"),
		),
	)
	s.server.AddTool(refsTool, s.handleReferences)

	renameTool := mcp.NewTool("lens_rename",
		mcp.WithDescription("Rename a symbol across the workspace"),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path relative to workspace root"),
		),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Current symbol name"),
		),
		mcp.WithString("new_name",
			mcp.Required(),
			mcp.Description("New name for the symbol"),
		),
	)
	s.server.AddTool(renameTool, s.handleRename)

	searchTool := mcp.NewTool("lens_search",
		mcp.WithDescription("Search top-level declarations across the workspace by name substring"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Case-insensitive name fragment"),
		),
	)
	s.server.AddTool(searchTool, s.handleSearch)
}

func (s *Server) handleZoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := request.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	level := request.GetInt("level", 1)

	outline, err := s.service.Zoom(ctx, file, level)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Zoom failed: %v", err)), nil
	}
	if len(outline) == 0 {
		return mcp.NewToolResultText("No symbols found"), nil
	}
	return mcp.NewToolResultText(renderOutline(outline)), nil
}

func (s *Server) handleImpact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleTraversal(ctx, request, s.service.Impact)
}

func (s *Server) handleDeps(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleTraversal(ctx, request, s.service.Deps)
}

type traversalFunc func(ctx context.Context, path, symbol string, depth int) (*callgraph.Analysis, error)

func (s *Server) handleTraversal(ctx context.Context, request mcp.CallToolRequest, run traversalFunc) (*mcp.CallToolResult, error) {
	file, err := request.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	symbol, err := request.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	depth := request.GetInt("depth", DefaultDepth)

	analysis, err := run(ctx, file, symbol, depth)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Traversal failed: %v", err)), nil
	}
	return mcp.NewToolResultText(renderAnalysis(analysis, s.workspaceRoot)), nil
}

func (s *Server) handleReferences(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := request.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	symbol, err := request.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	includeDecl := request.GetBool("include_declaration", true)

	locations, err := s.service.References(ctx, file, symbol, includeDecl)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Reference search failed: %v", err)), nil
	}
	if len(locations) == 0 {
		return mcp.NewToolResultText("No references found"), nil
	}
	return mcp.NewToolResultText(renderLocations(locations, s.workspaceRoot)), nil
}

func (s *Server) handleRename(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := request.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	symbol, err := request.RequireString("symbol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newName, err := request.RequireString("new_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	edit, err := s.service.Rename(ctx, file, symbol, newName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Rename failed: %v", err)), nil
	}
	if edit == nil {
		return mcp.NewToolResultText("Analyzer declined the rename"), nil
	}
	return mcp.NewToolResultText(renderWorkspaceEdit(edit, s.workspaceRoot)), nil
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.cache.Scan(ctx); err != nil {
		logger.Warnw("Symbol scan failed, answering from last index", "error", err)
	}
	results := s.cache.Search(query)
	if len(results) == 0 {
		return mcp.NewToolResultText("No matching symbols"), nil
	}
	return mcp.NewToolResultText(renderSymbols(results)), nil
}

// Serve blocks, speaking MCP over stdin/stdout.
func (s *Server) Serve() error {
	logger.Infow("MCP server listening on stdio", "workspace", s.workspaceRoot)
	return server.ServeStdio(s.server)
}
