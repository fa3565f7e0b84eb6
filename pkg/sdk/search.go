package clipsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"
)

// SearchText runs a text search.
func (c *Client) SearchText(ctx context.Context, q TextQuery) (*SearchResult, error) {
	if q.Query == "" {
		return nil, errors.New("clipsearch: query required")
	}

	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("clipsearch: encode query: %w", err)
	}

	req, err := c.newRequest(ctx, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	return c.doSearch(req)
}

// SearchImage runs an image search. The image travels as a multipart upload.
func (c *Client) SearchImage(ctx context.Context, q ImageQuery) (*SearchResult, error) {
	if len(q.Image) == 0 {
		return nil, errors.New("clipsearch: image required")
	}

	filename := q.Filename
	if filename == "" {
		filename = "probe"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("clipsearch: build multipart: %w", err)
	}
	if _, err := part.Write(q.Image); err != nil {
		return nil, fmt.Errorf("clipsearch: build multipart: %w", err)
	}
	if len(q.Attributes) > 0 {
		attrs, err := json.Marshal(q.Attributes)
		if err != nil {
			return nil, fmt.Errorf("clipsearch: encode attributes: %w", err)
		}
		if err := mw.WriteField("attributes", string(attrs)); err != nil {
			return nil, fmt.Errorf("clipsearch: build multipart: %w", err)
		}
	}
	if q.Limit > 0 {
		if err := mw.WriteField("limit", strconv.Itoa(q.Limit)); err != nil {
			return nil, fmt.Errorf("clipsearch: build multipart: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("clipsearch: build multipart: %w", err)
	}

	req, err := c.newRequest(ctx, &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	return c.doSearch(req)
}

// HealthCheck queries the server health endpoint. It needs no API key.
func (c *Client) HealthCheck(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("clipsearch: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clipsearch: health request: %w", err)
	}
	defer resp.Body.Close()

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("clipsearch: decode health response: %w", err)
	}
	return &h, nil
}

func (c *Client) newRequest(ctx context.Context, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/search", body)
	if err != nil {
		return nil, fmt.Errorf("clipsearch: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", c.apiKey)
	return req, nil
}

func (c *Client) doSearch(req *http.Request) (*SearchResult, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clipsearch: search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp)
	}

	var result SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("clipsearch: decode response: %w", err)
	}
	result.RateLimit = parseRateLimit(resp.Header)
	return &result, nil
}

func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.NewDecoder(resp.Body).Decode(&body) == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if sec, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			apiErr.RetryAfter = time.Duration(sec) * time.Second
		}
	}
	return apiErr
}

// parseRateLimit reads the quota headers. Returns nil when the server did
// not consult the counters (bypass or fail-open).
func parseRateLimit(h http.Header) *RateLimitInfo {
	if h.Get("X-RateLimit-Limit-Minute") == "" {
		return nil
	}

	atoi := func(key string) int {
		v, _ := strconv.Atoi(h.Get(key))
		return v
	}
	reset := func(key string) time.Time {
		unix, err := strconv.ParseInt(h.Get(key), 10, 64)
		if err != nil {
			return time.Time{}
		}
		return time.Unix(unix, 0)
	}

	return &RateLimitInfo{
		MinuteLimit:     atoi("X-RateLimit-Limit-Minute"),
		MinuteRemaining: atoi("X-RateLimit-Remaining-Minute"),
		MinuteReset:     reset("X-RateLimit-Reset-Minute"),
		HourLimit:       atoi("X-RateLimit-Limit-Hour"),
		HourRemaining:   atoi("X-RateLimit-Remaining-Hour"),
		HourReset:       reset("X-RateLimit-Reset-Hour"),
	}
}
