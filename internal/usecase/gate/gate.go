// Package gate narrows a search to the categories whose centroid is close
// enough to the probe embedding. Products outside admitted categories never
// reach scoring.
package gate

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/JuanCabardoneschi/clip-search-api/internal/domain"
)

// CategoryReader provides the active categories of a tenant.
type CategoryReader interface {
	Categories(ctx context.Context, tenantID string) ([]domain.Category, error)
}

// Admission is a category that passed the confidence threshold.
type Admission struct {
	Category   domain.Category
	Confidence float64 // 0..100
}

// Gate filters categories by centroid similarity.
type Gate struct {
	categories CategoryReader
	logger     *zap.Logger
}

// New builds a Gate.
func New(categories CategoryReader, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{categories: categories, logger: logger}
}

// Admit scores every category centroid of the tenant against the probe and
// keeps those at or above the tenant's confidence threshold, most confident
// first. Categories without a computed centroid cannot be admitted. The
// second return value lists all active category names, used to suggest
// alternatives when nothing is admitted.
func (g *Gate) Admit(
	ctx context.Context, tenant domain.Tenant, probe []float32,
) ([]Admission, []string, error) {
	cats, err := g.categories.Categories(ctx, tenant.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load categories: %w", err)
	}

	labels := make([]string, 0, len(cats))
	admitted := make([]Admission, 0, len(cats))
	for _, c := range cats {
		labels = append(labels, c.Name)
		if c.Centroid == nil {
			continue
		}
		confidence := domain.Cosine(probe, c.Centroid) * 100
		if confidence >= tenant.CategoryConfidenceThreshold {
			admitted = append(admitted, Admission{Category: c, Confidence: confidence})
		}
	}

	sort.Slice(admitted, func(i, j int) bool {
		if admitted[i].Confidence != admitted[j].Confidence {
			return admitted[i].Confidence > admitted[j].Confidence
		}
		return admitted[i].Category.ID < admitted[j].Category.ID
	})

	g.logger.Debug("category gate evaluated",
		zap.String("tenant_id", tenant.ID),
		zap.Int("categories", len(cats)),
		zap.Int("admitted", len(admitted)),
		zap.Float64("threshold", tenant.CategoryConfidenceThreshold))

	return admitted, labels, nil
}
