package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/spotvec/internal/service"
)

const (
	// ServerName is the MCP server name
	ServerName = "spotvec"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp *server.MCPServer
	svc *service.Service
}

// NewServer creates an MCP server exposing svc as tools.
func NewServer(svc *service.Service, version string) *Server {
	s := &Server{
		mcp: server.NewMCPServer(ServerName, version),
		svc: svc,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio and blocks until stdin closes or ctx
// is done.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	// Authentication
	s.mcp.AddTool(exchangeCodeTool(), s.handleExchangeCode)
	s.mcp.AddTool(refreshTokenTool(), s.handleRefreshToken)
	s.mcp.AddTool(validateTokenTool(), s.handleValidateToken)

	// Ingestion
	s.mcp.AddTool(listPlaylistsTool(), s.handleListPlaylists)
	s.mcp.AddTool(processPlaylistTool(), s.handleProcessPlaylist)
	s.mcp.AddTool(initStoreTool(), s.handleInitStore)

	// Queries
	s.mcp.AddTool(searchSongsTool(), s.handleSearchSongs)
	s.mcp.AddTool(advancedSearchTool(), s.handleAdvancedSearch)
	s.mcp.AddTool(similarSongsTool(), s.handleSimilarSongs)
	s.mcp.AddTool(generatePlaylistTool(), s.handleGeneratePlaylist)
	s.mcp.AddTool(searchPlaylistsTool(), s.handleSearchPlaylists)
	s.mcp.AddTool(playlistsByMoodTool(), s.handlePlaylistsByMood)

	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
