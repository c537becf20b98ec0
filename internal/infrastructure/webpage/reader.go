package webpage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultMaxBody = 5 << 20

type Reader struct {
	client  *http.Client
	clean   CleanConfig
	maxBody int64
}

type Option func(*Reader)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Reader) { r.client = c }
}

func WithCleanConfig(cfg CleanConfig) Option {
	return func(r *Reader) { r.clean = cfg }
}

func NewReader(opts ...Option) *Reader {
	r := &Reader{
		client:  &http.Client{Timeout: 30 * time.Second},
		clean:   DefaultCleanConfig,
		maxBody: defaultMaxBody,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read fetches url and returns its text content. Non-HTML bodies are returned
// as is, truncated like page text.
func (r *Reader) Read(ctx context.Context, url string) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("unsupported url %q: only http and https are allowed", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "task-agent/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBody))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.Contains(contentType, "html") {
		return ExtractText(string(body), &r.clean), nil
	}
	return truncate(string(body), r.clean.MaxOutputSize), nil
}
