package domain

// Category groups products of one tenant for the classification gate.
type Category struct {
	ID       string
	TenantID string
	Name     string

	// Prompt is the classification prompt text used only by the external
	// embedding collaborator when recomputing centroids.
	Prompt string

	// Centroid is the L2-normalized mean of all completed product
	// embeddings in the category, nil until computed. A category with a
	// nil centroid cannot be matched.
	Centroid []float32

	Active bool
}
