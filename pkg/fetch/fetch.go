package fetch

import (
	"context"
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
	defaultMaxBodyBytes = 1 << 20
	defaultUserAgent    = "job-hopper/1.0"
)

type Config struct {
	Timeout      time.Duration `split_words:"true" default:"15s"`
	MaxBodyBytes int64         `split_words:"true" default:"1048576"`
}

// Client fetches page content for the resolve_url tool. Bodies are truncated
// at the configured cap so a hostile page cannot flood the prompt window.
type Client struct {
	httpClient   *http.Client
	maxBodyBytes int64
}

var _ contractx.URLFetcher = (*Client)(nil)

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		maxBodyBytes: maxBody,
	}
}

// Fetch retrieves the page at rawURL and returns its body as text. Only
// http and https schemes are accepted.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", errors.New("url is empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", parsed.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: status %d", parsed.Host, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", parsed.Host, err)
	}

	return string(body), nil
}
