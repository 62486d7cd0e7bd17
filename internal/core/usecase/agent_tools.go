package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

const (
	ToolSearchLegalDocuments = "search_legal_documents"
	ToolWebSearch            = "web_search"
)

// ToolInput is the closed set of argument shapes accepted from the reasoning model.
type ToolInput interface {
	toolName() string
}

type LegalSearchArgs struct {
	Query    string `json:"query" validate:"required,min=2,max=500"`
	LawType  string `json:"lawType,omitempty" validate:"omitempty,oneof=lov forskrift vedtak instruks reglement delegering ikrafttredelse endring"`
	Year     int    `json:"year,omitempty" validate:"omitempty,min=1660,max=2100"`
	Ministry string `json:"ministry,omitempty" validate:"max=200"`
	Page     int    `json:"page" validate:"required,min=1,max=100"`
	PageSize int    `json:"pageSize" validate:"required,min=1,max=50"`
}

func (LegalSearchArgs) toolName() string { return ToolSearchLegalDocuments }

type WebSearchArgs struct {
	Query string `json:"query" validate:"required,min=2,max=500"`
	Num   int    `json:"num,omitempty" validate:"omitempty,min=1,max=20"`
}

func (WebSearchArgs) toolName() string { return ToolWebSearch }

var errUnknownTool = errors.New("unknown tool")

func toolDeclarations(webEnabled bool) []domain.ToolDeclaration {
	lawTypes := make([]string, 0, 8)
	for _, lt := range []domain.LawType{
		domain.LawTypeLov, domain.LawTypeForskrift, domain.LawTypeVedtak, domain.LawTypeInstruks,
		domain.LawTypeReglement, domain.LawTypeDelegering, domain.LawTypeIkrafttredelse, domain.LawTypeEndring,
	} {
		lawTypes = append(lawTypes, string(lt))
	}

	decls := []domain.ToolDeclaration{
		{
			Name:        ToolSearchLegalDocuments,
			Description: "Search Norwegian laws and regulations from Lovdata. Returns ranked passages with archive, member and section references.",
			Parameters: map[string]any{
				"query":    map[string]any{"type": "string", "description": "Search terms in Norwegian"},
				"lawType":  map[string]any{"type": "string", "enum": lawTypes, "description": "Restrict to one kind of legal document"},
				"year":     map[string]any{"type": "integer", "description": "Restrict to documents from this year"},
				"ministry": map[string]any{"type": "string", "description": "Restrict to documents issued by this ministry"},
				"page":     map[string]any{"type": "integer", "minimum": 1, "description": "Result page, starting at 1"},
				"pageSize": map[string]any{"type": "integer", "minimum": 1, "maximum": 50, "description": "Results per page"},
			},
			Required: []string{"query", "page", "pageSize"},
		},
	}
	if webEnabled {
		decls = append(decls, domain.ToolDeclaration{
			Name:        ToolWebSearch,
			Description: "Search the web. Use when the legal archive does not cover the question.",
			Parameters: map[string]any{
				"query": map[string]any{"type": "string", "description": "Search query"},
				"num":   map[string]any{"type": "integer", "minimum": 1, "maximum": 20, "description": "Number of results"},
			},
			Required: []string{"query"},
		})
	}
	return decls
}

// parseToolInput decodes and validates a tool call. Unknown tools and fields are rejected.
func parseToolInput(validate *validator.Validate, call domain.ToolCall, webEnabled bool) (ToolInput, error) {
	var input ToolInput
	switch strings.TrimSpace(call.Name) {
	case ToolSearchLegalDocuments:
		var args LegalSearchArgs
		if err := decodeStrict(call.Arguments, &args); err != nil {
			return nil, err
		}
		args.Query = strings.TrimSpace(args.Query)
		args.LawType = strings.ToLower(strings.TrimSpace(args.LawType))
		args.Ministry = strings.TrimSpace(args.Ministry)
		input = args
	case ToolWebSearch:
		if !webEnabled {
			return nil, fmt.Errorf("%w: %s is not available", errUnknownTool, ToolWebSearch)
		}
		var args WebSearchArgs
		if err := decodeStrict(call.Arguments, &args); err != nil {
			return nil, err
		}
		args.Query = strings.TrimSpace(args.Query)
		input = args
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownTool, call.Name)
	}

	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return input, nil
}

func decodeStrict(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("decode arguments: trailing data")
	}
	return nil
}

func toolErrorContent(tool string, err error) string {
	payload, _ := json.Marshal(map[string]string{
		"error": err.Error(),
		"tool":  tool,
	})
	return string(payload)
}

type legalToolItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Section  string `json:"section,omitempty"`
	LawType  string `json:"lawType,omitempty"`
	Year     string `json:"year,omitempty"`
	Ministry string `json:"ministry,omitempty"`
	Link     string `json:"link,omitempty"`
	Snippet  string `json:"snippet"`
}

type legalToolPayload struct {
	Query         string          `json:"query"`
	Page          int             `json:"page"`
	TotalHits     int             `json:"totalHits"`
	TotalPages    int             `json:"totalPages"`
	Results       []legalToolItem `json:"results"`
	Fallback      []legalToolItem `json:"webFallback,omitempty"`
	FallbackError string          `json:"webFallbackError,omitempty"`
}

type webToolPayload struct {
	Query   string          `json:"query"`
	Results []legalToolItem `json:"results"`
}

func toolItems(evidence []domain.Evidence) []legalToolItem {
	out := make([]legalToolItem, 0, len(evidence))
	for _, e := range evidence {
		out = append(out, legalToolItem{
			ID:       e.ID,
			Title:    e.Title,
			Section:  e.Metadata[domain.MetaSectionNumber],
			LawType:  e.Metadata[domain.MetaLawType],
			Year:     e.Metadata[domain.MetaYear],
			Ministry: e.Metadata[domain.MetaMinistry],
			Link:     e.Link,
			Snippet:  e.Snippet,
		})
	}
	return out
}
