package domain

// EmbeddingStatus tracks the processing lifecycle of a product embedding.
type EmbeddingStatus string

const (
	EmbeddingPending    EmbeddingStatus = "pending"
	EmbeddingProcessing EmbeddingStatus = "processing"
	EmbeddingCompleted  EmbeddingStatus = "completed"
	EmbeddingFailed     EmbeddingStatus = "failed"
)

// Product belongs to exactly one tenant and at most one category.
// Featured and Discount are optional business fields: a nil pointer means
// the tenant's catalog does not carry the field and the business scorer
// leaves it out of the denominator.
type Product struct {
	ID         string
	TenantID   string
	CategoryID string
	Name       string

	// Attributes maps attribute key to scalar value; the schema is defined
	// per tenant by the external attribute configuration.
	Attributes map[string]string

	Price    float64
	Stock    int
	Active   bool
	Featured *bool
	Discount *float64
}

// ProductEmbedding is the visual fingerprint of one product image.
// Only completed embeddings with non-nil vectors participate in retrieval.
type ProductEmbedding struct {
	ProductID         string
	Vector            []float32
	SourceFingerprint string
	Status            EmbeddingStatus
}

// Candidate pairs a product with its embedding for scoring.
type Candidate struct {
	Product   Product
	Embedding ProductEmbedding
}
