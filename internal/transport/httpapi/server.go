// Package httpapi exposes the search pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JuanCabardoneschi/clip-search-api/internal/domain"
	logpkg "github.com/JuanCabardoneschi/clip-search-api/internal/logger"
	"github.com/JuanCabardoneschi/clip-search-api/internal/ratelimit"
	healthuc "github.com/JuanCabardoneschi/clip-search-api/internal/usecase/health"
	searchuc "github.com/JuanCabardoneschi/clip-search-api/internal/usecase/search"
)

// maxImageBytes bounds uploaded probe images.
const maxImageBytes = 10 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Searcher runs one query through the ranking pipeline.
type Searcher interface {
	Search(ctx context.Context, req searchuc.Request) (searchuc.Response, error)
}

// Server holds the HTTP handlers.
type Server struct {
	search        Searcher
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search Searcher, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		search: search,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"),
		sentinelHandler(domain.ErrTenantInactive, http.StatusForbidden, "tenant_inactive"),
		sentinelHandler(domain.ErrTenantNotFound, http.StatusForbidden, "invalid_api_key"),
		sentinelHandler(domain.ErrConfiguration, http.StatusInternalServerError, "configuration_error"),
		sentinelHandler(domain.ErrDependencyTimeout, http.StatusGatewayTimeout, "dependency_timeout"),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, "embedding_provider_error"),
		sentinelHandler(domain.ErrDependencyUnavailable, http.StatusServiceUnavailable, "dependency_unavailable"),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"),
	}
	return s
}

// Mount registers the API routes on the router.
func (s *Server) Mount(r chi.Router) {
	r.Post("/api/search", s.handleSearch)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// handleSearch handles POST /api/search. Text queries arrive as JSON, image
// probes as multipart form data with an "image" file field.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_api_key", "missing X-API-Key header")
		return
	}

	req, err := s.parseSearchRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	req.Tenant = tenant
	req.APIKey = APIKeyFromContext(r.Context())

	resp, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setRateLimitHeaders(w, resp.RateLimit)

	if resp.State == searchuc.StateRateLimited {
		if resp.RateLimit.RetryAfter > 0 {
			w.Header().Set("Retry-After",
				strconv.Itoa(int(math.Ceil(resp.RateLimit.RetryAfter.Seconds()))))
		}
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Code:    "rate_limited",
			Message: "rate limit exceeded",
		})
		return
	}

	writeJSON(w, http.StatusOK, toSearchResponse(resp))
}

// parseSearchRequest builds a pipeline request from either body encoding.
func (s *Server) parseSearchRequest(r *http.Request) (searchuc.Request, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return searchuc.Request{}, errors.New("missing or malformed Content-Type")
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return parseImageSearch(r)
	}
	return parseTextSearch(r)
}

func parseTextSearch(r *http.Request) (searchuc.Request, error) {
	var body searchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return searchuc.Request{}, errors.New("invalid JSON body")
	}
	if strings.TrimSpace(body.Query) == "" {
		return searchuc.Request{}, errors.New("query is required")
	}
	return searchuc.Request{
		Probe:      domain.Probe{Kind: domain.ProbeText, Text: body.Query},
		Attributes: body.Attributes,
		Limit:      body.Limit,
	}, nil
}

func parseImageSearch(r *http.Request) (searchuc.Request, error) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return searchuc.Request{}, errors.New("invalid multipart body")
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return searchuc.Request{}, errors.New("image file field is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return searchuc.Request{}, errors.New("failed to read image")
	}
	if len(data) == 0 {
		return searchuc.Request{}, errors.New("image is empty")
	}
	if len(data) > maxImageBytes {
		return searchuc.Request{}, errors.New("image exceeds the 10 MB limit")
	}

	req := searchuc.Request{Probe: domain.Probe{Kind: domain.ProbeImage, Image: data}}

	if raw := r.FormValue("attributes"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Attributes); err != nil {
			return searchuc.Request{}, errors.New("attributes must be a JSON object of strings")
		}
	}
	if raw := r.FormValue("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return searchuc.Request{}, errors.New("limit must be a non-negative integer")
		}
		req.Limit = limit
	}

	return req, nil
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for name, result := range report.Checks {
		checks[name] = string(result)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

// setRateLimitHeaders reports both admission windows on every decision that
// consulted the counters, success and rejection alike.
func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	if d.Bypassed || d.FailOpen {
		return
	}
	setWindowHeaders(w, "Minute", d.Minute)
	setWindowHeaders(w, "Hour", d.Hour)
}

func setWindowHeaders(w http.ResponseWriter, suffix string, win ratelimit.Window) {
	if win.Limit == 0 {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit-"+suffix, strconv.Itoa(win.Limit))
	h.Set("X-RateLimit-Remaining-"+suffix, strconv.Itoa(win.Remaining))
	h.Set("X-RateLimit-Reset-"+suffix,
		strconv.FormatInt(time.Now().Add(win.ResetAfter).Unix(), 10))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrTenantNotFound,
		domain.ErrTenantInactive,
		domain.ErrRateLimited,
		domain.ErrConfiguration,
		domain.ErrDependencyTimeout,
		domain.ErrDependencyUnavailable,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	// The wide-event middleware stores a request-scoped logger carrying
	// the request id.
	logpkg.FromContext(r.Context()).Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
