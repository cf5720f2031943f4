package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lemmatic/sitesearch/internal/config"
)

// maxBodySize caps how much of a response body is read into memory.
const maxBodySize = 10 << 20 // 10MB

// HTTPClient fetches pages with a bounded timeout and the currently
// rotated connection profile.
type HTTPClient struct {
	client   *http.Client
	profiles *config.Profiles
}

// HTTPResponse is the part of a fetch result the crawler cares about.
type HTTPResponse struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

// NewHTTPClient creates an HTTP client drawing User-Agent and Referrer
// from the given profile set on every request.
func NewHTTPClient(profiles *config.Profiles, timeout time.Duration) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &HTTPClient{
		client:   client,
		profiles: profiles,
	}
}

// Get fetches the URL with the current connection profile.
func (h *HTTPClient) Get(ctx context.Context, url string) (*HTTPResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	profile := h.profiles.Current()
	req.Header.Set("User-Agent", profile.UserAgent)
	if profile.Referrer != "" {
		req.Header.Set("Referer", profile.Referrer)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &HTTPResponse{
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: strings.ToLower(resp.Header.Get("Content-Type")),
	}, nil
}
