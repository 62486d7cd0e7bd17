package mcpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

const defaultDocumentChars = 20000

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}
	filter, err := filterFromRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.services.Search.Search(ctx, domain.SearchRequest{
		Query:    query,
		Page:     request.GetInt("page", 1),
		PageSize: request.GetInt("page_size", 10),
		Filter:   filter,
	})
	if err != nil {
		slog.Error("mcp_tool_failed", "tool", toolSearchLegalDocuments, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatSearchResult(query, result)), nil
}

func (s *Server) handleGetDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	archive, err := request.RequireString("archive")
	if err != nil || strings.TrimSpace(archive) == "" {
		return mcp.NewToolResultError("archive parameter is required"), nil
	}
	member, err := request.RequireString("member")
	if err != nil || strings.TrimSpace(member) == "" {
		return mcp.NewToolResultError("member parameter is required"), nil
	}

	doc, err := s.services.Documents.GetByKey(ctx, archive, member)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("document not found: %s / %s", archive, member)), nil
		}
		slog.Error("mcp_tool_failed", "tool", toolGetLegalDocument, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatDocument(doc, request.GetInt("max_chars", defaultDocumentChars))), nil
}

func (s *Server) handleListArchives(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	archives, err := s.services.Documents.ListArchives(ctx)
	if err != nil {
		slog.Error("mcp_tool_failed", "tool", toolListArchives, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatArchives(archives)), nil
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("question parameter is required"), nil
	}
	filter, err := filterFromRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.services.Assistant.Run(ctx, domain.AgentRunRequest{Question: question, Filter: filter})
	if err != nil {
		slog.Error("mcp_tool_failed", "tool", toolAskLegalQuestion, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("assistant failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatAgentResult(result)), nil
}

func filterFromRequest(request mcp.CallToolRequest) (domain.SearchFilter, error) {
	filter := domain.SearchFilter{
		Year:     request.GetInt("year", 0),
		Ministry: strings.TrimSpace(request.GetString("ministry", "")),
	}
	if raw := request.GetString("law_type", ""); strings.TrimSpace(raw) != "" {
		lawType, ok := domain.ParseLawType(raw)
		if !ok {
			return domain.SearchFilter{}, fmt.Errorf("unknown law_type %q", raw)
		}
		filter.LawType = lawType
	}
	return filter, nil
}
