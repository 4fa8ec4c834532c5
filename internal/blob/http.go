package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"
)

// HTTP is an Object fetched with HTTP range requests.
type HTTP struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// OpenHTTP returns an Object for url. No request is made until the first
// read. A positive limit caps requests per second.
func OpenHTTP(url string, limit float64) *HTTP {
	h := &HTTP{url: url, client: http.DefaultClient}
	if limit > 0 {
		h.limiter = rate.NewLimiter(rate.Limit(limit), max(1, int(limit)))
	}
	return h
}

func (h *HTTP) do(ctx context.Context, method string, header http.Header) (*http.Response, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, h.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, h.url, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: %w", method, h.url, ErrNotFound)
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		// Range starts past the end.
		return resp, nil
	case resp.StatusCode >= 300:
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: unexpected status %s", method, h.url, resp.Status)
	}
	return resp, nil
}

func (h *HTTP) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if length == 0 {
		return http.NoBody, nil
	}
	rng := fmt.Sprintf("bytes=%d-", offset)
	if length > 0 {
		rng += strconv.FormatInt(offset+length-1, 10)
	}

	resp, err := h.do(ctx, http.MethodGet, http.Header{"Range": {rng}})
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		return resp.Body, nil
	case http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return http.NoBody, nil
	}

	// The server ignored the Range header and sent the whole object.
	if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil && err != io.EOF {
		resp.Body.Close()
		return nil, fmt.Errorf("skip to offset %d: %w", offset, err)
	}
	if length < 0 {
		return resp.Body, nil
	}
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(resp.Body, length), resp.Body}, nil
}

func (h *HTTP) Size(ctx context.Context) (int64, error) {
	resp, err := h.do(ctx, http.MethodHead, nil)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("HEAD %s: unknown content length", h.url)
	}
	return resp.ContentLength, nil
}

func (h *HTTP) Close() error {
	return nil
}
