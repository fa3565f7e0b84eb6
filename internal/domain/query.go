package domain

// SearchQuery is the ephemeral per-request input, discarded after response.
type SearchQuery struct {
	TenantID   string
	Probe      Probe
	Attributes map[string]string
	Limit      int
}

// ScoredCandidate carries the per-layer scores for one candidate product.
// VisualScore, MetadataScore and BusinessScore are bounded to [0, 1];
// FusedScore is the raw weighted sum and may exceed 1 when the tenant's
// fusion weights do not sum to 1.
type ScoredCandidate struct {
	Product       Product
	VisualScore   float64
	MetadataScore float64
	BusinessScore float64
	FusedScore    float64
}
