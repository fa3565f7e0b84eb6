package httpapi

import (
	"math"

	"github.com/JuanCabardoneschi/clip-search-api/internal/usecase/gate"
	"github.com/JuanCabardoneschi/clip-search-api/internal/usecase/search"
)

// searchRequest is the JSON body of a text search.
type searchRequest struct {
	Query      string            `json:"query"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Limit      int               `json:"limit,omitempty"`
}

// searchResponse is returned for every completed pipeline run, including the
// empty outcomes, which report success=false with an explanation.
type searchResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	Message   string `json:"message,omitempty"`

	Results         []resultItem   `json:"results,omitempty"`
	TotalCandidates int            `json:"total_candidates"`
	Categories      []categoryItem `json:"categories,omitempty"`

	// AvailableCategories lists every active category when the probe
	// matched none, so clients can show alternatives.
	AvailableCategories []string `json:"available_categories,omitempty"`

	QueryTimeMs int64 `json:"query_time_ms"`
}

type resultItem struct {
	ProductID  string            `json:"product_id"`
	Name       string            `json:"name"`
	CategoryID string            `json:"category_id"`
	Price      float64           `json:"price"`
	Stock      int               `json:"stock"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Featured   *bool             `json:"featured,omitempty"`
	Discount   *float64          `json:"discount,omitempty"`

	// Scores are percentages rounded to two decimals.
	SimilarityScore float64 `json:"similarity_score"`
	VisualScore     float64 `json:"visual_score"`
	MetadataScore   float64 `json:"metadata_score"`
	BusinessScore   float64 `json:"business_score"`
}

type categoryItem struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func toSearchResponse(resp search.Response) searchResponse {
	out := searchResponse{
		Success:         resp.State == search.StateRanked,
		RequestID:       resp.RequestID,
		TotalCandidates: resp.TotalCandidates,
		Categories:      toCategoryItems(resp.Categories),
		QueryTimeMs:     resp.Elapsed.Milliseconds(),
	}

	switch resp.State {
	case search.StateRanked:
		out.Results = make([]resultItem, len(resp.Results))
		for i, r := range resp.Results {
			out.Results[i] = resultItem{
				ProductID:       r.Product.ID,
				Name:            r.Product.Name,
				CategoryID:      r.Product.CategoryID,
				Price:           r.Product.Price,
				Stock:           r.Product.Stock,
				Attributes:      r.Product.Attributes,
				Featured:        r.Product.Featured,
				Discount:        r.Product.Discount,
				SimilarityScore: percent(r.FusedScore),
				VisualScore:     percent(r.VisualScore),
				MetadataScore:   percent(r.MetadataScore),
				BusinessScore:   percent(r.BusinessScore),
			}
		}
	case search.StateNoCategoryMatch:
		out.Message = "no category matched the probe"
		out.AvailableCategories = resp.AvailableCategories
	case search.StateNoCandidates:
		out.Message = "no products available in the matched categories"
	case search.StateNoResultsAboveThreshold:
		out.Message = "no products scored above the similarity threshold"
	}

	return out
}

func toCategoryItems(admitted []gate.Admission) []categoryItem {
	if len(admitted) == 0 {
		return nil
	}
	items := make([]categoryItem, len(admitted))
	for i, a := range admitted {
		items[i] = categoryItem{
			ID:         a.Category.ID,
			Name:       a.Category.Name,
			Confidence: round2(a.Confidence),
		}
	}
	return items
}

func percent(score float64) float64 {
	return round2(score * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
