package scoring

import (
	"math"
	"testing"

	"github.com/JuanCabardoneschi/clip-search-api/internal/domain"
)

func boolPtr(b bool) *bool          { return &b }
func floatPtr(f float64) *float64   { return &f }
func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func testTenant() domain.Tenant {
	return domain.Tenant{
		ID:      "t1",
		Active:  true,
		Weights: domain.DefaultFusionWeights(),
		AttributeRules: map[string]domain.AttributeRule{
			"color": {Enabled: true, Weight: 0.6},
			"size":  {Enabled: true, Weight: 0.4},
		},
	}
}

func candidate(vec []float32, attrs map[string]string) domain.Candidate {
	return domain.Candidate{
		Product:   domain.Product{ID: "p1", Stock: 1, Attributes: attrs},
		Embedding: domain.ProductEmbedding{ProductID: "p1", Vector: vec, Status: domain.EmbeddingCompleted},
	}
}

func TestComparators(t *testing.T) {
	tests := []struct {
		name       string
		comparator string
		query      string
		product    string
		want       bool
	}{
		{"exact match", ComparatorExact, "Red", " red ", true},
		{"exact mismatch", ComparatorExact, "red", "blue", false},
		{"numeric in range", ComparatorNumericRange, "38-44", "42", true},
		{"numeric below range", ComparatorNumericRange, "38-44", "36", false},
		{"numeric single value", ComparatorNumericRange, "42", "42", true},
		{"numeric garbage product", ComparatorNumericRange, "38-44", "large", false},
		{"set overlap", ComparatorSetOverlap, "red,blue", "Blue, green", true},
		{"set disjoint", ComparatorSetOverlap, "red,blue", "green,yellow", false},
		{"set empty query", ComparatorSetOverlap, "", "red", false},
	}

	reg := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reg.Lookup(tt.comparator).Match(tt.query, tt.product); got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.query, tt.product, got, tt.want)
			}
		})
	}
}

func TestLookupUnknownDefaultsToExact(t *testing.T) {
	reg := NewRegistry()
	if !reg.Lookup("no-such-comparator").Match("red", "RED") {
		t.Error("unknown comparator should fall back to exact matching")
	}
	if !reg.Lookup("").Match("red", "red") {
		t.Error("empty comparator name should fall back to exact matching")
	}
}

func TestRegisterCustomComparator(t *testing.T) {
	reg := NewRegistry()
	reg.Register("always", ComparatorFunc(func(_, _ string) bool { return true }))
	if !reg.Lookup("always").Match("x", "y") {
		t.Error("custom comparator not used")
	}
}

func TestVisualScoreClamped(t *testing.T) {
	s := New(nil, nil)
	tenant := testTenant()

	got := s.Score(tenant, []float32{1, 0}, nil, candidate([]float32{-1, 0}, nil))
	if got.VisualScore != 0 {
		t.Errorf("opposed vectors: visual = %v, want 0", got.VisualScore)
	}

	got = s.Score(tenant, []float32{1, 0}, nil, candidate([]float32{1, 0}, nil))
	if got.VisualScore != 1 {
		t.Errorf("identical vectors: visual = %v, want 1", got.VisualScore)
	}
}

func TestMetadataScoreMatchedShare(t *testing.T) {
	s := New(nil, nil)
	tenant := testTenant()
	query := map[string]string{"color": "red", "size": "44"}
	attrs := map[string]string{"color": "red", "size": "42"}

	got := s.Score(tenant, []float32{1, 0}, query, candidate([]float32{1, 0}, attrs))
	if !almostEqual(got.MetadataScore, 0.6) {
		t.Errorf("metadata = %v, want 0.6 (only color matched)", got.MetadataScore)
	}
}

func TestMetadataScoreDisabledRuleIgnored(t *testing.T) {
	s := New(nil, nil)
	tenant := testTenant()
	tenant.AttributeRules["size"] = domain.AttributeRule{Enabled: false, Weight: 0.4}
	query := map[string]string{"color": "red"}
	attrs := map[string]string{"color": "red"}

	got := s.Score(tenant, []float32{1, 0}, query, candidate([]float32{1, 0}, attrs))
	if got.MetadataScore != 1 {
		t.Errorf("metadata = %v, disabled rules must not dilute the score", got.MetadataScore)
	}
}

func TestMetadataScoreMissingAttributeCountsAgainst(t *testing.T) {
	s := New(nil, nil)
	tenant := testTenant()
	query := map[string]string{"color": "red", "size": "42"}
	attrs := map[string]string{"color": "red"} // product has no size

	got := s.Score(tenant, []float32{1, 0}, query, candidate([]float32{1, 0}, attrs))
	if !almostEqual(got.MetadataScore, 0.6) {
		t.Errorf("metadata = %v, want 0.6", got.MetadataScore)
	}
}

func TestMetadataScoreNoRules(t *testing.T) {
	s := New(nil, nil)
	tenant := testTenant()
	tenant.AttributeRules = nil

	got := s.Score(tenant, []float32{1, 0}, map[string]string{"color": "red"},
		candidate([]float32{1, 0}, map[string]string{"color": "red"}))
	if got.MetadataScore != 0 {
		t.Errorf("metadata = %v, want 0 without rules", got.MetadataScore)
	}
}

func TestBusinessPolicyStockOnly(t *testing.T) {
	policy := DefaultBusinessPolicy()

	if got := policy.Score(domain.Product{Stock: 5}); got != 1 {
		t.Errorf("in stock, no optional fields: %v, want 1", got)
	}
	if got := policy.Score(domain.Product{Stock: 0}); got != 0 {
		t.Errorf("out of stock: %v, want 0", got)
	}
}

func TestBusinessPolicyOptionalFields(t *testing.T) {
	policy := DefaultBusinessPolicy()

	// Featured present but false widens the denominator without scoring.
	got := policy.Score(domain.Product{Stock: 5, Featured: boolPtr(false)})
	if !almostEqual(got, 0.4/0.7) {
		t.Errorf("score = %v, want %v", got, 0.4/0.7)
	}

	got = policy.Score(domain.Product{Stock: 5, Featured: boolPtr(true), Discount: floatPtr(0.2)})
	if got != 1 {
		t.Errorf("all signals positive: %v, want 1", got)
	}

	// Zero discount is a present field with no benefit.
	got = policy.Score(domain.Product{Stock: 5, Discount: floatPtr(0)})
	if !almostEqual(got, 0.4/0.7) {
		t.Errorf("score = %v, want %v", got, 0.4/0.7)
	}
}

func TestFusedScoreWeightedSum(t *testing.T) {
	s := New(nil, nil)
	tenant := testTenant()
	query := map[string]string{"color": "red", "size": "44"}
	attrs := map[string]string{"color": "red", "size": "42"}

	got := s.Score(tenant, []float32{1, 0}, query, candidate([]float32{0.6, 0.8}, attrs))
	// visual 0.6, metadata 0.6, business 1 under weights 0.6/0.3/0.1
	want := 0.6*0.6 + 0.3*0.6 + 0.1*1
	if !almostEqual(got.FusedScore, want) {
		t.Errorf("fused = %v, want %v", got.FusedScore, want)
	}
}

func TestFusedScoreWeightsNotRenormalized(t *testing.T) {
	s := New(nil, nil)
	tenant := testTenant()
	tenant.Weights = domain.FusionWeights{Visual: 2, Metadata: 0, Business: 0}

	got := s.Score(tenant, []float32{1, 0}, nil, candidate([]float32{1, 0}, nil))
	if got.FusedScore != 2 {
		t.Errorf("fused = %v, configured weights apply as-is", got.FusedScore)
	}
}
