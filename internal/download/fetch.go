package download

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"fleet-installer/internal/cache"
	"fleet-installer/internal/logger"
)

// maxDocumentSize bounds Fetch bodies; they are version documents, not artifacts.
const maxDocumentSize = 8 << 20

// Response is the outcome of a conditional fetch.
type Response struct {
	Header http.Header
	Body   []byte
	// Cached is true when the server answered 304 and Body is the cached copy.
	Cached bool
}

// ETag returns the response's entity tag, if any.
func (r Response) ETag() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get("ETag")
}

// Fetch GETs url, sending If-None-Match when etag is set. A 304 returns
// cachedBody unchanged; any status other than 200 or 304 is a *StatusError.
func (c *Client) Fetch(ctx context.Context, url, etag string, cachedBody []byte, userAgent string) (Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url, userAgent)
	if err != nil {
		return Response{}, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		logger.Debug("[DEBUG] %s not modified, using cached copy\n", url)
		return Response{Header: resp.Header, Body: cachedBody, Cached: true}, nil
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
		if err != nil {
			return Response{}, fmt.Errorf("read %s: %w", url, err)
		}
		return Response{Header: resp.Header, Body: body}, nil
	default:
		return Response{}, &StatusError{URL: url, Status: resp.StatusCode}
	}
}

// CachedFetch wraps Fetch with ETag and body persistence under key in store.
// The cache is only updated from fresh 200 responses that carry an ETag.
func (c *Client) CachedFetch(ctx context.Context, store *cache.Store, key, url, userAgent string) (Response, error) {
	etagName, bodyName := key+".etag", key+".body"

	etag, hasETag := store.Read(etagName)
	body, hasBody := store.Read(bodyName)
	if hasETag != hasBody {
		logger.Debug("[DEBUG] Dropping incomplete cache entry %s\n", key)
		for _, name := range []string{etagName, bodyName} {
			if err := store.Remove(name); err != nil {
				logger.Warn("[WARN] %v\n", err)
			}
		}
	}
	if !hasETag || !hasBody {
		etag, body = "", ""
	}

	resp, err := c.Fetch(ctx, url, etag, []byte(body), userAgent)
	if err != nil {
		return Response{}, err
	}
	if !resp.Cached {
		if tag := resp.ETag(); tag != "" {
			if err := store.Write(bodyName, string(resp.Body)); err != nil {
				logger.Warn("[WARN] %v\n", err)
			} else if err := store.Write(etagName, tag); err != nil {
				logger.Warn("[WARN] %v\n", err)
			}
		}
	}
	return resp, nil
}
