// Package download fetches installer artifacts and small version documents.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"fleet-installer/internal/logger"
)

// StatusError is returned for any HTTP status other than the accepted ones.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

// Client wraps an http.Client with a default User-Agent.
type Client struct {
	HTTP      *http.Client
	UserAgent string
}

// New returns a Client with a generous overall timeout; artifacts can be large.
func New(userAgent string) *Client {
	return &Client{
		HTTP:      &http.Client{Timeout: 60 * time.Minute},
		UserAgent: userAgent,
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) newRequest(ctx context.Context, method, url, userAgent string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", url, err)
	}
	if userAgent == "" {
		userAgent = c.UserAgent
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	return req, nil
}

// Download streams url into dest and marks it executable. Only HTTP 200 is
// success; on any failure a partially written dest is removed.
func (c *Client) Download(ctx context.Context, url, dest, userAgent string) (err error) {
	req, err := c.newRequest(ctx, http.MethodGet, url, userAgent)
	if err != nil {
		return err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("failed to GET %s: %w", url, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debug("[DEBUG] Failed to close response body: %v\n", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: url, Status: resp.StatusCode}
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", dest, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", dest, cerr)
		}
		if err != nil {
			_ = os.Remove(dest)
		}
	}()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write response to %s: %w", dest, err)
	}
	if err := out.Chmod(0755); err != nil {
		return fmt.Errorf("chmod %s: %w", dest, err)
	}

	logger.Debug("[DEBUG] Downloaded %d bytes from %s to %s\n", n, url, dest)
	return nil
}
