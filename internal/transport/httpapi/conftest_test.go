package httpapi

import (
	"context"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JuanCabardoneschi/clip-search-api/internal/domain"
	healthuc "github.com/JuanCabardoneschi/clip-search-api/internal/usecase/health"
	searchuc "github.com/JuanCabardoneschi/clip-search-api/internal/usecase/search"
)

type mockSearcher struct {
	resp    searchuc.Response
	err     error
	lastReq searchuc.Request
}

func (m *mockSearcher) Search(_ context.Context, req searchuc.Request) (searchuc.Response, error) {
	m.lastReq = req
	return m.resp, m.err
}

type mockResolver struct {
	tenants map[string]domain.Tenant
}

func (m *mockResolver) TenantByAPIKey(_ context.Context, apiKey string) (domain.Tenant, error) {
	t, ok := m.tenants[apiKey]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return t, nil
}

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(_ context.Context) error { return p.err }

func testTenant() domain.Tenant {
	return domain.Tenant{
		ID:                          "t1",
		Name:                        "demo",
		Active:                      true,
		CategoryConfidenceThreshold: 70,
		ProductSimilarityThreshold:  30,
		Weights:                     domain.DefaultFusionWeights(),
	}
}

// newTestServer wires the full middleware chain around mock dependencies.
func newTestServer(searcher Searcher, health *healthuc.Service) *httptest.Server {
	resolver := &mockResolver{tenants: map[string]domain.Tenant{
		"key-1":        testTenant(),
		"key-inactive": {ID: "t2", Active: false},
	}}

	if health == nil {
		health = healthuc.New(&stubPinger{}, &stubPinger{}, nil)
	}

	logger := zap.NewNop()
	s := NewServer(searcher, health, logger)

	r := chi.NewRouter()
	r.Use(APIKeyMiddleware(resolver, logger))
	s.Mount(r)

	return httptest.NewServer(r)
}
