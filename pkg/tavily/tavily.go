package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/dhrits/job-hopper/agent/contract"
)

const (
	defaultBaseURL       = "https://api.tavily.com"
	defaultMaxResults    = 5
	maxResponseSizeBytes = 2 << 20
)

type Config struct {
	URL        string        `split_words:"true" default:"https://api.tavily.com"`
	APIKey     string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	MaxResults int           `split_words:"true" default:"5"`
	Timeout    time.Duration `split_words:"true" default:"15s"`
}

// Client talks to the Tavily search REST API. It serves both the web-search
// tool and document retrieval for the consultant tools.
type Client struct {
	baseURL    string
	apiKey     string
	maxResults int
	httpClient *http.Client
}

var (
	_ contractx.WebSearcher = (*Client)(nil)
	_ contractx.Retriever   = (*Client)(nil)
)

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid tavily url: %w", err)
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("tavily api key is required")
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxResults: maxResults,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

func MustNew(cfg Config, opts ...Option) *Client {
	client, err := NewClient(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return client
}

type searchRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth,omitempty"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
	Detail  string         `json:"detail,omitempty"`
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Search runs a web search for k results, falling back to the configured
// cap when k is not positive.
func (c *Client) Search(ctx context.Context, query string, k int) ([]contractx.Document, error) {
	if k <= 0 {
		k = c.maxResults
	}
	return c.search(ctx, query, k)
}

// Retrieve runs a search scoped to k results, for the consultant tools that
// want a small grounding set rather than a results page.
func (c *Client) Retrieve(ctx context.Context, query string, k int) ([]contractx.Document, error) {
	if k <= 0 {
		k = c.maxResults
	}
	return c.search(ctx, query, k)
}

func (c *Client) search(ctx context.Context, query string, maxResults int) ([]contractx.Document, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is empty")
	}

	body, err := json.Marshal(searchRequest{
		Query:      query,
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read tavily response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily responded %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed searchResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}

	docs := make([]contractx.Document, 0, len(parsed.Results))
	for _, res := range parsed.Results {
		docs = append(docs, contractx.Document{
			Title:   res.Title,
			URL:     res.URL,
			Content: res.Content,
		})
	}
	return docs, nil
}
