package ollama

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

type chatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
}

type chatToolCall struct {
	ID       string           `json:"id,omitempty"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type chatTool struct {
	Type     string         `json:"type"`
	Function chatToolSchema `json:"function"`
}

type chatToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Reasoner drives the agent loop through /api/chat with native tool calling.
type Reasoner struct {
	client *Client
}

func NewReasoner(client *Client) *Reasoner {
	return &Reasoner{client: client}
}

func (r *Reasoner) Reason(ctx context.Context, req domain.ReasonerRequest) (domain.ReasonerResponse, error) {
	request := map[string]any{
		"model":    r.client.chatModel,
		"messages": buildChatMessages(req),
		"tools":    buildChatTools(req.Tools),
		"stream":   false,
	}

	var response struct {
		Message chatMessage `json:"message"`
	}
	if err := r.client.postJSON(ctx, "/api/chat", request, &response, "chat"); err != nil {
		return domain.ReasonerResponse{}, err
	}

	if len(response.Message.ToolCalls) > 0 {
		calls := make([]domain.ToolCall, 0, len(response.Message.ToolCalls))
		for _, call := range response.Message.ToolCalls {
			args := call.Function.Arguments
			if len(args) == 0 || string(args) == "null" {
				args = json.RawMessage(`{}`)
			}
			calls = append(calls, domain.ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: args,
			})
		}
		return domain.ReasonerResponse{ToolCalls: calls}, nil
	}
	return domain.ReasonerResponse{Answer: strings.TrimSpace(response.Message.Content)}, nil
}

func buildChatMessages(req domain.ReasonerRequest) []chatMessage {
	messages := []chatMessage{
		{Role: "system", Content: buildReasonerSystemPrompt(req.Evidence)},
		{Role: "user", Content: req.Question},
	}
	for _, turn := range req.Turns {
		assistant := chatMessage{Role: "assistant"}
		for _, call := range turn.Calls {
			assistant.ToolCalls = append(assistant.ToolCalls, chatToolCall{
				ID:       call.ID,
				Function: chatToolFunction{Name: call.Name, Arguments: call.Arguments},
			})
		}
		messages = append(messages, assistant)
		for _, result := range turn.Results {
			messages = append(messages, chatMessage{
				Role:     "tool",
				Content:  result.Content,
				ToolName: result.Name,
			})
		}
	}
	return messages
}

func buildChatTools(decls []domain.ToolDeclaration) []chatTool {
	tools := make([]chatTool, 0, len(decls))
	for _, decl := range decls {
		required := decl.Required
		if required == nil {
			required = []string{}
		}
		tools = append(tools, chatTool{
			Type: "function",
			Function: chatToolSchema{
				Name:        decl.Name,
				Description: decl.Description,
				Parameters: map[string]any{
					"type":       "object",
					"properties": decl.Parameters,
					"required":   required,
				},
			},
		})
	}
	return tools
}
