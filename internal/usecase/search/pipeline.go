// Package search runs a query through the full ranking pipeline: admission,
// probe embedding, category gating, candidate scoring and final ordering.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JuanCabardoneschi/clip-search-api/internal/domain"
	"github.com/JuanCabardoneschi/clip-search-api/internal/metrics"
	"github.com/JuanCabardoneschi/clip-search-api/internal/ratelimit"
	"github.com/JuanCabardoneschi/clip-search-api/internal/usecase/gate"
)

// State is the terminal outcome of a pipeline run. Empty outcomes are
// ordinary states, not errors.
type State string

const (
	StateRanked                  State = "ranked"
	StateRateLimited             State = "rate_limited"
	StateNoCategoryMatch         State = "no_category_match"
	StateNoCandidates            State = "no_candidates"
	StateNoResultsAboveThreshold State = "no_results_above_threshold"
	stateError                   State = "error"
)

// Request is one search invocation for an already-authenticated tenant.
type Request struct {
	Tenant     domain.Tenant
	APIKey     string
	Probe      domain.Probe
	Attributes map[string]string
	Limit      int
}

// Response carries the outcome and, for ranked runs, the ordered results.
type Response struct {
	RequestID string
	State     State

	Results         []domain.ScoredCandidate
	TotalCandidates int

	// Categories admitted by the gate; AvailableCategories lists every
	// active category name when nothing was admitted.
	Categories          []gate.Admission
	AvailableCategories []string

	RateLimit ratelimit.Decision
	Elapsed   time.Duration
}

// RateLimiter decides admission for an API key.
type RateLimiter interface {
	Allow(ctx context.Context, apiKey string) ratelimit.Decision
}

// CategoryGate admits categories for a probe embedding.
type CategoryGate interface {
	Admit(ctx context.Context, tenant domain.Tenant, probe []float32) ([]gate.Admission, []string, error)
}

// CandidateReader loads scorable products for the admitted categories.
type CandidateReader interface {
	Candidates(ctx context.Context, tenantID string, categoryIDs []string) ([]domain.Candidate, error)
}

// Scorer fuses the per-candidate ranking score.
type Scorer interface {
	Score(tenant domain.Tenant, probe []float32, query map[string]string, c domain.Candidate) domain.ScoredCandidate
}

// Config bounds result sizes and dependency calls.
type Config struct {
	DefaultLimit int
	MaxLimit     int
	OpTimeout    time.Duration
}

// Pipeline wires the search stages together.
type Pipeline struct {
	limiter    RateLimiter
	embedder   domain.Embedder
	gate       CategoryGate
	candidates CandidateReader
	scorer     Scorer
	cfg        Config
	logger     *zap.Logger
}

// New builds a Pipeline.
func New(
	limiter RateLimiter,
	embedder domain.Embedder,
	categoryGate CategoryGate,
	candidates CandidateReader,
	scorer Scorer,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		limiter:    limiter,
		embedder:   embedder,
		gate:       categoryGate,
		candidates: candidates,
		scorer:     scorer,
		cfg:        cfg,
		logger:     logger,
	}
}

// Search executes the pipeline. Identical inputs against identical catalog
// state produce identical rankings; ties order by product ID.
func (p *Pipeline) Search(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp := Response{RequestID: uuid.NewString()}

	finish := func(state State, err error) (Response, error) {
		resp.State = state
		resp.Elapsed = time.Since(start)
		p.observe(req, resp, err)
		return resp, err
	}

	if err := req.Probe.Validate(); err != nil {
		return finish(stateError, err)
	}
	if err := req.Tenant.Validate(); err != nil {
		return finish(stateError, err)
	}
	if !req.Tenant.Active {
		return finish(stateError, fmt.Errorf("tenant %s: %w", req.Tenant.ID, domain.ErrTenantInactive))
	}

	limit := req.Limit
	if limit <= 0 {
		limit = p.cfg.DefaultLimit
	}
	if p.cfg.MaxLimit > 0 && limit > p.cfg.MaxLimit {
		limit = p.cfg.MaxLimit
	}

	resp.RateLimit = p.limiter.Allow(ctx, req.APIKey)
	if !resp.RateLimit.Allowed {
		return finish(StateRateLimited, nil)
	}

	probe, err := p.embed(ctx, req.Probe)
	if err != nil {
		return finish(stateError, err)
	}

	admitted, labels, err := p.gate.Admit(ctx, req.Tenant, probe)
	if err != nil {
		return finish(stateError, err)
	}
	resp.Categories = admitted
	resp.AvailableCategories = labels
	if len(admitted) == 0 {
		return finish(StateNoCategoryMatch, nil)
	}

	ids := make([]string, len(admitted))
	for i, a := range admitted {
		ids[i] = a.Category.ID
	}
	candidates, err := p.candidates.Candidates(ctx, req.Tenant.ID, ids)
	if err != nil {
		return finish(stateError, fmt.Errorf("load candidates: %w", err))
	}
	resp.TotalCandidates = len(candidates)
	if len(candidates) == 0 {
		return finish(StateNoCandidates, nil)
	}

	scored := make([]domain.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		sc := p.scorer.Score(req.Tenant, probe, req.Attributes, c)
		if sc.FusedScore*100 >= req.Tenant.ProductSimilarityThreshold {
			scored = append(scored, sc)
		}
	}
	metrics.SearchCandidatesScored.WithLabelValues(req.Tenant.ID).Observe(float64(len(candidates)))
	if len(scored) == 0 {
		return finish(StateNoResultsAboveThreshold, nil)
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].FusedScore != scored[j].FusedScore {
			return scored[i].FusedScore > scored[j].FusedScore
		}
		return scored[i].Product.ID < scored[j].Product.ID
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	resp.Results = scored

	return finish(StateRanked, nil)
}

// embed runs the probe through the embedder under the dependency timeout.
func (p *Pipeline) embed(ctx context.Context, probe domain.Probe) ([]float32, error) {
	if p.cfg.OpTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.OpTimeout)
		defer cancel()
	}

	res, err := p.embedder.Embed(ctx, probe)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embed probe: %w: %w", domain.ErrDependencyTimeout, err)
		}
		return nil, fmt.Errorf("embed probe: %w", err)
	}
	if len(res.Embedding) == 0 {
		return nil, fmt.Errorf("embed probe: %w: empty embedding", domain.ErrEmbeddingProviderError)
	}
	return res.Embedding, nil
}

// observe emits the wide event and the per-run metrics.
func (p *Pipeline) observe(req Request, resp Response, err error) {
	metrics.SearchRequestsTotal.WithLabelValues(req.Tenant.ID, string(resp.State)).Inc()
	metrics.SearchDuration.WithLabelValues(req.Tenant.ID).Observe(resp.Elapsed.Seconds())

	fields := []zap.Field{
		zap.String("request_id", resp.RequestID),
		zap.String("tenant_id", req.Tenant.ID),
		zap.String("state", string(resp.State)),
		zap.String("probe_kind", string(req.Probe.Kind)),
		zap.Int("candidates", resp.TotalCandidates),
		zap.Int("results", len(resp.Results)),
		zap.Int("admitted_categories", len(resp.Categories)),
		zap.Duration("elapsed", resp.Elapsed),
	}
	if resp.RateLimit.FailOpen {
		fields = append(fields, zap.Bool("rate_limit_fail_open", true))
	}
	if err != nil {
		p.logger.Error("search failed", append(fields, zap.Error(err))...)
		return
	}
	p.logger.Info("search completed", fields...)
}
