package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
	"github.com/kirillkom/lovdata-assistant/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL            string
	Model              string
	APIKey             string
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

// Client scores query/document pairs with a Cohere or Jina compatible /v1/rerank endpoint.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "cross-encoder client", errors.New("base url is required"))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		executor:   cfg.ResilienceExecutor,
	}, nil
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int      `json:"index"`
		RelevanceScore *float64 `json:"relevance_score"`
	} `json:"results"`
}

// Score returns one slot per text; texts the service did not return stay nil.
// Out-of-range indexes make the whole response malformed.
func (c *Client) Score(ctx context.Context, query string, texts []string, topN int) ([]*float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(rerankRequest{Model: c.model, Query: query, Documents: texts, TopN: topN})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	var decoded rerankResponse
	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/rerank", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create rerank request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("rerank request: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError("cross-encoder", "rerank", resp)
		}
		decoded = rerankResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("decode rerank response: %w", err)
		}
		return nil
	}
	if err := resilience.Run(ctx, c.executor, "crossencoder.rerank", call, resilience.ClassifyHTTPError); err != nil {
		return nil, resilience.WrapProviderError("cross-encoder rerank", err)
	}

	scores := make([]*float64, len(texts))
	for _, result := range decoded.Results {
		if result.Index < 0 || result.Index >= len(texts) {
			return nil, fmt.Errorf("rerank result index %d out of range [0,%d)", result.Index, len(texts))
		}
		if result.RelevanceScore == nil {
			continue
		}
		score := *result.RelevanceScore
		scores[result.Index] = &score
	}
	return scores, nil
}
