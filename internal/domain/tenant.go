package domain

import "fmt"

// KeyPrefix namespaces all cache and counter keys in the shared store.
const KeyPrefix = "clipsearch:"

// Default thresholds, matching the admin panel defaults for new tenants.
const (
	DefaultCategoryConfidenceThreshold = 70
	DefaultProductSimilarityThreshold  = 30
)

// FusionWeights holds the per-tenant weighting of the three scoring layers.
// Weights are expected to sum to 1.0 but this is not enforced: the fused
// score is the raw weighted sum and may exceed 1 for unnormalized weights.
type FusionWeights struct {
	Visual   float64
	Metadata float64
	Business float64
}

// DefaultFusionWeights returns the weighting applied when a tenant has no
// search configuration of its own.
func DefaultFusionWeights() FusionWeights {
	return FusionWeights{Visual: 0.6, Metadata: 0.3, Business: 0.1}
}

// AttributeRule configures metadata scoring for a single product attribute.
type AttributeRule struct {
	Enabled    bool
	Weight     float64
	Comparator string // "exact" (default), "numeric-range", "set-overlap"
}

// Tenant is the isolation boundary. All configuration is owned by the
// external admin collaborator and read-only to the search core.
type Tenant struct {
	ID     string
	Name   string
	Active bool

	// Thresholds are percentages in [0, 100].
	CategoryConfidenceThreshold float64
	ProductSimilarityThreshold  float64

	Weights        FusionWeights
	AttributeRules map[string]AttributeRule
}

// Validate checks the externally-supplied configuration. A malformed tenant
// config fails the request immediately rather than defaulting silently.
func (t *Tenant) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: missing tenant id", ErrConfiguration)
	}
	if t.CategoryConfidenceThreshold < 0 || t.CategoryConfidenceThreshold > 100 {
		return fmt.Errorf("%w: category confidence threshold %v out of [0,100]",
			ErrConfiguration, t.CategoryConfidenceThreshold)
	}
	if t.ProductSimilarityThreshold < 0 || t.ProductSimilarityThreshold > 100 {
		return fmt.Errorf("%w: product similarity threshold %v out of [0,100]",
			ErrConfiguration, t.ProductSimilarityThreshold)
	}
	if t.Weights.Visual < 0 || t.Weights.Metadata < 0 || t.Weights.Business < 0 {
		return fmt.Errorf("%w: fusion weights must be non-negative, got %+v",
			ErrConfiguration, t.Weights)
	}
	for name, rule := range t.AttributeRules {
		if rule.Weight < 0 || rule.Weight > 1 {
			return fmt.Errorf("%w: attribute %q weight %v out of [0,1]",
				ErrConfiguration, name, rule.Weight)
		}
	}
	return nil
}
