// Package mcpadapter exposes the legal archive to MCP clients over stdio.
package mcpadapter

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/lovdata-assistant/internal/core/ports"
)

const ServerName = "lovdata-assistant"

const (
	toolSearchLegalDocuments = "search_legal_documents"
	toolGetLegalDocument     = "get_legal_document"
	toolListArchives         = "list_legal_archives"
	toolAskLegalQuestion     = "ask_legal_question"
)

// Services are the inbound ports exposed as tools. Assistant is optional.
type Services struct {
	Search    ports.SearchService
	Documents ports.DocumentReader
	Assistant ports.AssistantService
}

type Server struct {
	mcp      *server.MCPServer
	services Services
	tools    []string
}

func NewServer(version string, services Services) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(ServerName, version, server.WithToolCapabilities(true)),
		services: services,
	}
	s.addTool(searchLegalDocumentsTool(), s.handleSearch)
	s.addTool(getLegalDocumentTool(), s.handleGetDocument)
	s.addTool(listArchivesTool(), s.handleListArchives)
	if services.Assistant != nil {
		s.addTool(askLegalQuestionTool(), s.handleAsk)
	}
	return s
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
	s.tools = append(s.tools, tool.Name)
}

// Tools lists registered tool names in registration order.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// ServeStdio blocks until stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}
