package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/resilience"
)

const (
	defaultMaxTokens     = 2048
	maxEvidenceTextRunes = 1200
)

type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
	// BaseURL overrides the API endpoint; used by tests and proxies.
	BaseURL            string
	ResilienceExecutor *resilience.Executor
}

// Reasoner runs one agent step through the Messages API with tool use.
type Reasoner struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	executor  *resilience.Executor
}

func NewReasoner(cfg Config) (*Reasoner, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "claude reasoner", errors.New("api key is required"))
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "claude reasoner", errors.New("model is required"))
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// retries belong to the resilience executor
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Reasoner{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
		executor:  cfg.ResilienceExecutor,
	}, nil
}

func (r *Reasoner) Reason(ctx context.Context, req domain.ReasonerRequest) (domain.ReasonerResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: r.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt(req.Evidence)}},
		Messages:  buildMessages(req),
		Tools:     buildTools(req.Tools),
	}

	var resp *anthropic.Message
	call := func(ctx context.Context) error {
		var err error
		resp, err = r.client.Messages.New(ctx, params)
		if err != nil {
			return toStatusError(err)
		}
		return nil
	}
	if err := resilience.Run(ctx, r.executor, "claude.messages", call, resilience.ClassifyHTTPError); err != nil {
		return domain.ReasonerResponse{}, resilience.WrapProviderError("claude messages", err)
	}

	var (
		text  strings.Builder
		calls []domain.ToolCall
	)
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			args := json.RawMessage(block.Input)
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			calls = append(calls, domain.ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
		}
	}
	if len(calls) > 0 {
		return domain.ReasonerResponse{ToolCalls: calls}, nil
	}
	return domain.ReasonerResponse{Answer: strings.TrimSpace(text.String())}, nil
}

func buildMessages(req domain.ReasonerRequest) []anthropic.MessageParam {
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(req.Question)),
	}
	for _, turn := range req.Turns {
		if len(turn.Calls) == 0 {
			continue
		}
		uses := make([]anthropic.ContentBlockParamUnion, 0, len(turn.Calls))
		for _, call := range turn.Calls {
			input := call.Arguments
			if len(input) == 0 {
				input = json.RawMessage(`{}`)
			}
			uses = append(uses, anthropic.NewToolUseBlock(call.ID, input, call.Name))
		}
		results := make([]anthropic.ContentBlockParamUnion, 0, len(turn.Results))
		for _, result := range turn.Results {
			results = append(results, anthropic.NewToolResultBlock(result.CallID, result.Content, result.IsError))
		}
		messages = append(messages,
			anthropic.NewAssistantMessage(uses...),
			anthropic.NewUserMessage(results...),
		)
	}
	return messages
}

func buildTools(decls []domain.ToolDeclaration) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(decls))
	for _, decl := range decls {
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        decl.Name,
				Description: anthropic.String(decl.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: decl.Parameters,
					Required:   decl.Required,
				},
			},
		})
	}
	return tools
}

func systemPrompt(evidence []domain.Evidence) string {
	var b strings.Builder
	b.WriteString("Du er en juridisk assistent for norsk rett. Bruk verktøyene for å finne rettskilder, ")
	b.WriteString("og svar på norsk med henvisninger som [1] når kildene er tilstrekkelige.\n")
	if len(evidence) == 0 {
		return b.String()
	}
	b.WriteString("\nKilder funnet så langt:\n")
	for idx, item := range evidence {
		text := item.Snippet
		if text == "" {
			text = item.Content
		}
		if runes := []rune(text); len(runes) > maxEvidenceTextRunes {
			text = string(runes[:maxEvidenceTextRunes]) + "…"
		}
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n", idx+1, item.Title, item.Source, text)
	}
	return b.String()
}

// toStatusError maps SDK API errors onto the shared HTTP status error so the
// resilience classifier treats every provider the same way.
func toStatusError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &resilience.HTTPStatusError{
			Provider:   "claude",
			Operation:  "messages",
			StatusCode: apiErr.StatusCode,
			Status:     fmt.Sprintf("%d %s", apiErr.StatusCode, http.StatusText(apiErr.StatusCode)),
			Body:       apiErr.Error(),
		}
	}
	return err
}
