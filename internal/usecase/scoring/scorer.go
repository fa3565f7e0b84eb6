// Package scoring fuses visual similarity, attribute matching and business
// signals into a single ranking score per candidate.
package scoring

import (
	"github.com/JuanCabardoneschi/clip-search-api/internal/domain"
)

// BusinessPolicy computes the 0..1 business desirability of a product.
type BusinessPolicy interface {
	Score(p domain.Product) float64
}

// BusinessPolicyFunc adapts a function to the BusinessPolicy interface.
type BusinessPolicyFunc func(p domain.Product) float64

func (f BusinessPolicyFunc) Score(p domain.Product) float64 { return f(p) }

// Business signal weights. Stock always participates; featured and discount
// join the denominator only when the product carries the field.
const (
	stockWeight    = 0.4
	featuredWeight = 0.3
	discountWeight = 0.3
)

// DefaultBusinessPolicy rewards in-stock, featured and discounted products.
func DefaultBusinessPolicy() BusinessPolicy {
	return BusinessPolicyFunc(func(p domain.Product) float64 {
		score, total := 0.0, stockWeight
		if p.Stock > 0 {
			score += stockWeight
		}
		if p.Featured != nil {
			total += featuredWeight
			if *p.Featured {
				score += featuredWeight
			}
		}
		if p.Discount != nil {
			total += discountWeight
			if *p.Discount > 0 {
				score += discountWeight
			}
		}
		return score / total
	})
}

// Scorer computes the per-candidate fusion score.
type Scorer struct {
	comparators *Registry
	business    BusinessPolicy
}

// New builds a Scorer. Nil arguments get the defaults.
func New(comparators *Registry, business BusinessPolicy) *Scorer {
	if comparators == nil {
		comparators = NewRegistry()
	}
	if business == nil {
		business = DefaultBusinessPolicy()
	}
	return &Scorer{comparators: comparators, business: business}
}

// Score ranks one candidate against the probe embedding and the query
// attributes. Component scores are 0..1; the fused score is the weighted sum
// under the tenant's fusion weights, taken as configured.
func (s *Scorer) Score(
	tenant domain.Tenant, probe []float32, query map[string]string, c domain.Candidate,
) domain.ScoredCandidate {
	visual := domain.Clamp01(domain.Cosine(probe, c.Embedding.Vector))
	metadata := s.metadataScore(tenant.AttributeRules, query, c.Product.Attributes)
	business := s.business.Score(c.Product)

	w := tenant.Weights
	fused := w.Visual*visual + w.Metadata*metadata + w.Business*business

	return domain.ScoredCandidate{
		Product:       c.Product,
		VisualScore:   visual,
		MetadataScore: metadata,
		BusinessScore: business,
		FusedScore:    fused,
	}
}

// metadataScore is the matched share of the total enabled rule weight. Rules
// whose attribute is absent from the query or the product count against the
// score, never out of it.
func (s *Scorer) metadataScore(
	rules map[string]domain.AttributeRule, query, attrs map[string]string,
) float64 {
	var matched, total float64
	for name, rule := range rules {
		if !rule.Enabled {
			continue
		}
		total += rule.Weight
		qv, qok := query[name]
		pv, pok := attrs[name]
		if qok && pok && s.comparators.Lookup(rule.Comparator).Match(qv, pv) {
			matched += rule.Weight
		}
	}
	if total == 0 {
		return 0
	}
	return matched / total
}
