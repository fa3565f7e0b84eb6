// Package catalog is the read-only accessor for tenant configuration,
// category centroids and product embeddings. The data is owned by the admin
// collaborator; this package only issues scoped queries and never writes.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	// SQLite driver; the catalog file is produced by the admin panel.
	_ "github.com/mattn/go-sqlite3"

	"github.com/JuanCabardoneschi/clip-search-api/internal/domain"
)

// Repository reads the shared catalog database.
type Repository struct {
	db *sql.DB
}

// Open opens the catalog database file read-only.
func Open(path string) (*Repository, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	return &Repository{db: db}, nil
}

// New wraps an existing database handle, used by tests.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Close releases the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks catalog availability.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// TenantByAPIKey resolves an API key to its tenant with search configuration.
// A tenant without a search config row gets the default fusion weights, the
// way the admin panel would create one.
func (r *Repository) TenantByAPIKey(ctx context.Context, apiKey string) (domain.Tenant, error) {
	const q = `
		SELECT c.id, c.name, c.is_active,
		       COALESCE(c.category_confidence_threshold, ?),
		       COALESCE(c.product_similarity_threshold, ?),
		       s.visual_weight, s.metadata_weight, s.business_weight, s.metadata_config
		FROM clients c
		LEFT JOIN store_search_config s ON s.store_id = c.id
		WHERE c.api_key = ?`

	var (
		t                domain.Tenant
		visual, metadata sql.NullFloat64
		business         sql.NullFloat64
		metaConfig       sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q,
		domain.DefaultCategoryConfidenceThreshold,
		domain.DefaultProductSimilarityThreshold,
		apiKey,
	).Scan(
		&t.ID, &t.Name, &t.Active,
		&t.CategoryConfidenceThreshold, &t.ProductSimilarityThreshold,
		&visual, &metadata, &business, &metaConfig,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("query tenant: %w", err)
	}

	if visual.Valid {
		t.Weights = domain.FusionWeights{
			Visual:   visual.Float64,
			Metadata: metadata.Float64,
			Business: business.Float64,
		}
	} else {
		t.Weights = domain.DefaultFusionWeights()
	}

	if metaConfig.Valid && metaConfig.String != "" {
		rules, err := parseAttributeRules(metaConfig.String)
		if err != nil {
			return domain.Tenant{}, fmt.Errorf("%w: metadata_config for tenant %s: %w",
				domain.ErrConfiguration, t.ID, err)
		}
		t.AttributeRules = rules
	}

	return t, nil
}

// Categories returns the active categories of a tenant. A category without a
// computed centroid comes back with a nil Centroid.
func (r *Repository) Categories(ctx context.Context, tenantID string) ([]domain.Category, error) {
	const q = `
		SELECT id, name, COALESCE(clip_prompt, ''), centroid_embedding
		FROM categories
		WHERE client_id = ? AND is_active = 1
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var cats []domain.Category
	for rows.Next() {
		c := domain.Category{TenantID: tenantID, Active: true}
		var centroid sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Prompt, &centroid); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if centroid.Valid && centroid.String != "" {
			vec, err := decodeVector(centroid.String)
			if err != nil {
				return nil, fmt.Errorf("centroid for category %s: %w", c.ID, err)
			}
			c.Centroid = vec
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// Candidates returns active products of the tenant in the given categories,
// each paired with a completed embedding. Results are scoped exclusively to
// the requesting tenant.
func (r *Repository) Candidates(
	ctx context.Context, tenantID string, categoryIDs []string,
) ([]domain.Candidate, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	q := fmt.Sprintf(`
		SELECT p.id, p.category_id, p.name, COALESCE(p.attributes, ''),
		       COALESCE(p.price, 0), COALESCE(p.stock, 0),
		       p.is_featured, p.discount,
		       i.clip_embedding, COALESCE(i.fingerprint, '')
		FROM products p
		JOIN images i ON i.product_id = p.id
		WHERE p.client_id = ?
		  AND p.is_active = 1
		  AND i.status = ?
		  AND i.clip_embedding IS NOT NULL
		  AND p.category_id IN (%s)
		ORDER BY p.id`, placeholders(len(categoryIDs)))

	args := make([]any, 0, len(categoryIDs)+2)
	args = append(args, tenantID, string(domain.EmbeddingCompleted))
	for _, id := range categoryIDs {
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []domain.Candidate
	for rows.Next() {
		var (
			c        domain.Candidate
			attrs    string
			featured sql.NullBool
			discount sql.NullFloat64
			embed    string
		)
		c.Product.TenantID = tenantID
		c.Product.Active = true
		err := rows.Scan(
			&c.Product.ID, &c.Product.CategoryID, &c.Product.Name, &attrs,
			&c.Product.Price, &c.Product.Stock,
			&featured, &discount,
			&embed, &c.Embedding.SourceFingerprint,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}

		if featured.Valid {
			c.Product.Featured = &featured.Bool
		}
		if discount.Valid {
			c.Product.Discount = &discount.Float64
		}
		if attrs != "" {
			c.Product.Attributes, err = parseAttributes(attrs)
			if err != nil {
				return nil, fmt.Errorf("attributes for product %s: %w", c.Product.ID, err)
			}
		}

		c.Embedding.ProductID = c.Product.ID
		c.Embedding.Status = domain.EmbeddingCompleted
		c.Embedding.Vector, err = decodeVector(embed)
		if err != nil {
			return nil, fmt.Errorf("embedding for product %s: %w", c.Product.ID, err)
		}

		out = append(out, c)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// decodeVector parses a JSON float array as stored by the admin panel.
func decodeVector(s string) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(s), &vec); err != nil {
		return nil, fmt.Errorf("decode vector: %w", err)
	}
	if len(vec) == 0 {
		return nil, nil
	}
	return vec, nil
}

// parseAttributes flattens the product attribute JSON object to strings.
// Values are scalars by contract; numbers keep their literal form.
func parseAttributes(s string) (map[string]string, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		case nil:
			// absent value, skip
		default:
			return nil, fmt.Errorf("attribute %q is not a scalar", k)
		}
	}
	return out, nil
}

// parseAttributeRules decodes the per-tenant metadata scoring configuration.
func parseAttributeRules(s string) (map[string]domain.AttributeRule, error) {
	var raw map[string]struct {
		Enabled    bool    `json:"enabled"`
		Weight     float64 `json:"weight"`
		Comparator string  `json:"comparator"`
	}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("decode metadata config: %w", err)
	}

	rules := make(map[string]domain.AttributeRule, len(raw))
	for name, r := range raw {
		rules[name] = domain.AttributeRule{
			Enabled:    r.Enabled,
			Weight:     r.Weight,
			Comparator: r.Comparator,
		}
	}
	return rules, nil
}
