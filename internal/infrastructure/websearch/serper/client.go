package serper

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

const (
	defaultBaseURL = "https://google.serper.dev"
	defaultNum     = 5
	maxNum         = 20
)

type Config struct {
	APIKey string
	// BaseURL is overridden in tests.
	BaseURL            string
	Country            string
	Language           string
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

// Client is a WebSearcher over the Serper Google search JSON API.
type Client struct {
	apiKey     string
	baseURL    string
	country    string
	language   string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "serper client", errors.New("api key is required"))
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	country := cfg.Country
	if country == "" {
		country = "no"
	}
	language := cfg.Language
	if language == "" {
		language = "no"
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		country:    country,
		language:   language,
		httpClient: &http.Client{Timeout: timeout},
		executor:   cfg.ResilienceExecutor,
	}, nil
}

type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
	GL  string `json:"gl,omitempty"`
	HL  string `json:"hl,omitempty"`
}

type searchResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic"`
}

func (c *Client) Search(ctx context.Context, query domain.WebSearchQuery) ([]domain.WebResult, error) {
	q := strings.TrimSpace(query.Query)
	if q == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "web search", errors.New("query is empty"))
	}
	if site := strings.TrimSpace(query.Site); site != "" {
		q = "site:" + site + " " + q
	}
	num := query.Num
	if num <= 0 {
		num = defaultNum
	}
	num = min(num, maxNum)

	body, err := json.Marshal(searchRequest{Q: q, Num: num, GL: c.country, HL: c.language})
	if err != nil {
		return nil, fmt.Errorf("marshal serper request: %w", err)
	}

	var decoded searchResponse
	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create serper request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-KEY", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("serper request: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError("serper", "search", resp)
		}
		decoded = searchResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("decode serper response: %w", err)
		}
		return nil
	}
	if err := resilience.Run(ctx, c.executor, "serper.search", call, resilience.ClassifyHTTPError); err != nil {
		return nil, resilience.WrapProviderError("serper search", err)
	}

	results := make([]domain.WebResult, 0, len(decoded.Organic))
	for _, item := range decoded.Organic {
		if len(results) == num {
			break
		}
		results = append(results, domain.WebResult{
			Title:   strings.TrimSpace(item.Title),
			Link:    strings.TrimSpace(item.Link),
			Snippet: strings.TrimSpace(item.Snippet),
			Date:    item.Date,
		})
	}
	return results, nil
}
