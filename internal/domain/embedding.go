package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ProbeKind distinguishes image and text probes.
type ProbeKind string

const (
	ProbeImage ProbeKind = "image"
	ProbeText  ProbeKind = "text"
)

// Probe is the search input: raw image bytes or a free-text query.
type Probe struct {
	Kind  ProbeKind
	Image []byte
	Text  string
}

// Validate rejects malformed probe data.
func (p Probe) Validate() error {
	switch p.Kind {
	case ProbeImage:
		if len(p.Image) == 0 {
			return ErrInvalidInput
		}
	case ProbeText:
		if strings.TrimSpace(p.Text) == "" {
			return ErrInvalidInput
		}
	default:
		return ErrInvalidInput
	}
	return nil
}

// Fingerprint returns the deterministic content hash used as the embedding
// cache key. Text probes are normalized (trimmed, lowercased) first so
// trivially different spellings of the same query share one cache entry.
func (p Probe) Fingerprint() string {
	var h [32]byte
	switch p.Kind {
	case ProbeImage:
		h = sha256.Sum256(p.Image)
	default:
		h = sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(p.Text))))
	}
	return hex.EncodeToString(h[:])
}

// Embedder is the shared vectorization contract between layers. Vectors are
// comparable via cosine similarity and share a fixed dimensionality across
// all tenants.
type Embedder interface {
	Embed(ctx context.Context, probe Probe) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the
// decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}
