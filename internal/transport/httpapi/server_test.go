package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuanCabardoneschi/clip-search-api/internal/domain"
	"github.com/JuanCabardoneschi/clip-search-api/internal/ratelimit"
	"github.com/JuanCabardoneschi/clip-search-api/internal/usecase/gate"
	healthuc "github.com/JuanCabardoneschi/clip-search-api/internal/usecase/health"
	searchuc "github.com/JuanCabardoneschi/clip-search-api/internal/usecase/search"
)

func postJSON(t *testing.T, url, apiKey, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/api/search", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func rankedResponse() searchuc.Response {
	featured := true
	return searchuc.Response{
		RequestID:       "req-1",
		State:           searchuc.StateRanked,
		TotalCandidates: 3,
		Results: []domain.ScoredCandidate{{
			Product: domain.Product{
				ID: "p1", CategoryID: "c1", Name: "red sneaker",
				Price: 99.5, Stock: 3, Featured: &featured,
				Attributes: map[string]string{"color": "red"},
			},
			VisualScore:   0.8,
			MetadataScore: 0.5,
			BusinessScore: 1,
			FusedScore:    0.54321,
		}},
		Categories: []gate.Admission{
			{Category: domain.Category{ID: "c1", Name: "shoes"}, Confidence: 91.234},
		},
		RateLimit: ratelimit.Decision{
			Allowed: true,
			Minute:  ratelimit.Window{Limit: 60, Remaining: 59, ResetAfter: 30 * time.Second},
			Hour:    ratelimit.Window{Limit: 1000, Remaining: 999, ResetAfter: time.Hour},
		},
		Elapsed: 42 * time.Millisecond,
	}
}

func TestSearchTextRanked(t *testing.T) {
	searcher := &mockSearcher{resp: rankedResponse()}
	server := newTestServer(searcher, nil)
	defer server.Close()

	resp := postJSON(t, server.URL, "key-1",
		`{"query": "red sneakers", "attributes": {"color": "red"}, "limit": 5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "60", resp.Header.Get("X-RateLimit-Limit-Minute"))
	assert.Equal(t, "59", resp.Header.Get("X-RateLimit-Remaining-Minute"))
	assert.Equal(t, "1000", resp.Header.Get("X-RateLimit-Limit-Hour"))

	body := decodeBody[searchResponse](t, resp)
	assert.True(t, body.Success)
	assert.Equal(t, "req-1", body.RequestID)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "p1", body.Results[0].ProductID)
	assert.Equal(t, 54.32, body.Results[0].SimilarityScore)
	assert.Equal(t, 80.0, body.Results[0].VisualScore)
	require.Len(t, body.Categories, 1)
	assert.Equal(t, 91.23, body.Categories[0].Confidence)

	assert.Equal(t, domain.ProbeText, searcher.lastReq.Probe.Kind)
	assert.Equal(t, "red sneakers", searcher.lastReq.Probe.Text)
	assert.Equal(t, "key-1", searcher.lastReq.APIKey)
	assert.Equal(t, "t1", searcher.lastReq.Tenant.ID)
	assert.Equal(t, 5, searcher.lastReq.Limit)
}

func TestSearchImageMultipart(t *testing.T) {
	searcher := &mockSearcher{resp: rankedResponse()}
	server := newTestServer(searcher, nil)
	defer server.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "probe.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("attributes", `{"color": "red"}`))
	require.NoError(t, mw.WriteField("limit", "3"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/search", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(APIKeyHeader, "key-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, domain.ProbeImage, searcher.lastReq.Probe.Kind)
	assert.Len(t, searcher.lastReq.Probe.Image, 7)
	assert.Equal(t, map[string]string{"color": "red"}, searcher.lastReq.Attributes)
	assert.Equal(t, 3, searcher.lastReq.Limit)
}

func TestSearchRateLimited(t *testing.T) {
	searcher := &mockSearcher{resp: searchuc.Response{
		RequestID: "req-2",
		State:     searchuc.StateRateLimited,
		RateLimit: ratelimit.Decision{
			Allowed:    false,
			Minute:     ratelimit.Window{Limit: 60, Remaining: 0, ResetAfter: 12 * time.Second},
			Hour:       ratelimit.Window{Limit: 1000, Remaining: 400, ResetAfter: time.Hour},
			RetryAfter: 12 * time.Second,
		},
	}}
	server := newTestServer(searcher, nil)
	defer server.Close()

	resp := postJSON(t, server.URL, "key-1", `{"query": "x"}`)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "12", resp.Header.Get("Retry-After"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining-Minute"))

	body := decodeBody[errorResponse](t, resp)
	assert.Equal(t, "rate_limited", body.Code)
}

func TestSearchNoCategoryMatch(t *testing.T) {
	searcher := &mockSearcher{resp: searchuc.Response{
		RequestID:           "req-3",
		State:               searchuc.StateNoCategoryMatch,
		AvailableCategories: []string{"shoes", "shirts"},
		RateLimit:           ratelimit.Decision{Allowed: true},
	}}
	server := newTestServer(searcher, nil)
	defer server.Close()

	resp := postJSON(t, server.URL, "key-1", `{"query": "spaceship"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[searchResponse](t, resp)
	assert.False(t, body.Success)
	assert.Equal(t, []string{"shoes", "shirts"}, body.AvailableCategories)
	assert.NotEmpty(t, body.Message)
}

func TestSearchBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"empty query", `{"query": "   "}`},
		{"missing query", `{"attributes": {"color": "red"}}`},
	}
	server := newTestServer(&mockSearcher{}, nil)
	defer server.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, server.URL, "key-1", tt.body)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestSearchErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("embed: %w", domain.ErrEmbeddingProviderError), http.StatusBadGateway, "embedding_provider_error"},
		{fmt.Errorf("embed: %w", domain.ErrDependencyTimeout), http.StatusGatewayTimeout, "dependency_timeout"},
		{fmt.Errorf("t: %w", domain.ErrConfiguration), http.StatusInternalServerError, "configuration_error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			server := newTestServer(&mockSearcher{err: tt.err}, nil)
			defer server.Close()

			resp := postJSON(t, server.URL, "key-1", `{"query": "x"}`)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decodeBody[errorResponse](t, resp)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(&mockSearcher{}, nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[healthResponse](t, resp)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Checks["catalog"])
}

func TestHealthDegraded(t *testing.T) {
	health := healthuc.New(&stubPinger{err: errors.New("locked")}, &stubPinger{}, nil)
	server := newTestServer(&mockSearcher{}, health)
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	body := decodeBody[healthResponse](t, resp)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "error", body.Checks["catalog"])
}
