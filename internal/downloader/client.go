// Package downloader submits jobs to a SABnzbd-compatible download queue API.
package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrRejected is returned when the download queue refuses a submission.
var ErrRejected = errors.New("submission rejected")

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options are the optional parameters of a submission. Empty fields are
// left unset and the queue applies its own defaults.
type Options struct {
	Category       string
	PostProcessing string
	Script         string
}

// Client talks to the download queue's HTTP API.
type Client struct {
	client  HTTPClient
	baseURL string
	apiKey  string
	limiter *rate.Limiter
}

// New creates a Client for the API rooted at baseURL.
func New(client HTTPClient, baseURL, apiKey string) *Client {
	return &Client{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 5),
	}
}

// SetRateLimit overrides the default submission rate.
func (c *Client) SetRateLimit(every time.Duration, burst int) {
	c.limiter = rate.NewLimiter(rate.Every(every), burst)
}

// SubmitByID queues a job by its aggregator message-id.
func (c *Client) SubmitByID(ctx context.Context, id string, opts Options) error {
	return c.submit(ctx, "addid", id, opts)
}

// SubmitByURL queues a job by the URL of its NZB file.
func (c *Client) SubmitByURL(ctx context.Context, link string, opts Options) error {
	return c.submit(ctx, "addurl", link, opts)
}

type apiResponse struct {
	Status bool   `json:"status"`
	Error  string `json:"error"`
}

func (c *Client) submit(ctx context.Context, mode, name string, opts Options) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	q := url.Values{}
	q.Set("mode", mode)
	q.Set("name", name)
	q.Set("output", "json")
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	if opts.Category != "" {
		q.Set("cat", opts.Category)
	}
	if opts.PostProcessing != "" {
		q.Set("pp", opts.PostProcessing)
	}
	if opts.Script != "" {
		q.Set("script", opts.Script)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "RSSQueue/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	var r apiResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !r.Status {
		if r.Error == "" {
			r.Error = "no reason given"
		}
		return fmt.Errorf("%w: %s", ErrRejected, r.Error)
	}
	return nil
}
