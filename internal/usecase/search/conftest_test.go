package search

import (
	"context"
	"time"

	"github.com/JuanCabardoneschi/clip-search-api/internal/domain"
	"github.com/JuanCabardoneschi/clip-search-api/internal/ratelimit"
	"github.com/JuanCabardoneschi/clip-search-api/internal/usecase/gate"
	"github.com/JuanCabardoneschi/clip-search-api/internal/usecase/scoring"
)

type mockLimiter struct {
	decision ratelimit.Decision
	lastKey  string
}

func (m *mockLimiter) Allow(_ context.Context, apiKey string) ratelimit.Decision {
	m.lastKey = apiKey
	return m.decision
}

func allowAll() *mockLimiter {
	return &mockLimiter{decision: ratelimit.Decision{Allowed: true}}
}

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  int
	block  bool // honor ctx cancellation instead of returning
}

func (m *mockEmbedder) Embed(ctx context.Context, _ domain.Probe) (domain.EmbeddingResult, error) {
	m.calls++
	if m.block {
		<-ctx.Done()
		return domain.EmbeddingResult{}, ctx.Err()
	}
	return m.result, m.err
}

type mockGate struct {
	admitted []gate.Admission
	labels   []string
	err      error
}

func (m *mockGate) Admit(_ context.Context, _ domain.Tenant, _ []float32) ([]gate.Admission, []string, error) {
	return m.admitted, m.labels, m.err
}

type mockCandidateReader struct {
	candidates []domain.Candidate
	err        error
	lastIDs    []string
}

func (m *mockCandidateReader) Candidates(_ context.Context, _ string, ids []string) ([]domain.Candidate, error) {
	m.lastIDs = ids
	return m.candidates, m.err
}

// deps bundles default mocks for a pipeline that reaches the ranked state.
type deps struct {
	limiter    *mockLimiter
	embedder   *mockEmbedder
	gate       *mockGate
	candidates *mockCandidateReader
}

func newDeps() *deps {
	return &deps{
		limiter:  allowAll(),
		embedder: &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 0}}},
		gate: &mockGate{
			admitted: []gate.Admission{{Category: domain.Category{ID: "c1", Name: "shoes"}, Confidence: 90}},
			labels:   []string{"shoes"},
		},
		candidates: &mockCandidateReader{},
	}
}

func (d *deps) pipeline() *Pipeline {
	return New(d.limiter, d.embedder, d.gate, d.candidates, scoring.New(nil, nil),
		Config{DefaultLimit: 10, MaxLimit: 50, OpTimeout: time.Second}, nil)
}

func activeTenant() domain.Tenant {
	return domain.Tenant{
		ID:                          "t1",
		Name:                        "demo store",
		Active:                      true,
		CategoryConfidenceThreshold: 70,
		ProductSimilarityThreshold:  30,
		Weights:                     domain.DefaultFusionWeights(),
	}
}

func textRequest(tenant domain.Tenant) Request {
	return Request{
		Tenant: tenant,
		APIKey: "key-1",
		Probe:  domain.Probe{Kind: domain.ProbeText, Text: "red sneakers"},
	}
}

func inStockCandidate(id string, vec []float32) domain.Candidate {
	return domain.Candidate{
		Product: domain.Product{ID: id, TenantID: "t1", CategoryID: "c1", Name: id, Stock: 3, Active: true},
		Embedding: domain.ProductEmbedding{
			ProductID: id, Vector: vec, Status: domain.EmbeddingCompleted,
		},
	}
}
