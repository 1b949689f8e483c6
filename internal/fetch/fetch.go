package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (compatible; NotebookLM-Connector/0.1)"
	DefaultTimeout   = 30 * time.Second
)

type Options struct {
	UserAgent string
	Timeout   time.Duration
	// HTTPClient overrides the client built from Timeout. Redirects follow the client's policy.
	HTTPClient *http.Client
}

type Page struct {
	URL         string
	Body        string
	ContentType string
	StatusCode  int
}

// IsHTML reports whether the response declared a text/html content type.
func (p Page) IsHTML() bool {
	return strings.Contains(strings.ToLower(p.ContentType), "text/html")
}

type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d for %s", e.StatusCode, e.URL)
}

type Client struct {
	http      *http.Client
	userAgent string
	timeout   time.Duration
}

func NewClient(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{http: client, userAgent: opts.UserAgent, timeout: opts.Timeout}
}

// Get performs a GET and returns the body of a 2xx response. Any other status is a *StatusError.
func (c *Client) Get(ctx context.Context, url string) (Page, error) {
	if url == "" {
		return Page{}, errors.New("url is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Page{}, fmt.Errorf("fetch timed out after %s: %w", c.timeout, err)
		}
		return Page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Page{}, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, fmt.Errorf("read body: %w", err)
	}
	return Page{
		URL:         resp.Request.URL.String(),
		Body:        string(body),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
