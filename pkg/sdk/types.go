package clipsearch

import "time"

// TextQuery searches the catalog by free text.
type TextQuery struct {
	Query      string            `json:"query"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Limit      int               `json:"limit,omitempty"`
}

// ImageQuery searches the catalog by an example image.
type ImageQuery struct {
	Image      []byte
	Filename   string
	Attributes map[string]string
	Limit      int
}

// SearchResult is the parsed server response. Success is false for the empty
// outcomes (no category match, no candidates, nothing above threshold).
type SearchResult struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	Message   string `json:"message,omitempty"`

	Results             []Product  `json:"results,omitempty"`
	TotalCandidates     int        `json:"total_candidates"`
	Categories          []Category `json:"categories,omitempty"`
	AvailableCategories []string   `json:"available_categories,omitempty"`

	QueryTimeMs int64 `json:"query_time_ms"`

	// RateLimit is parsed from response headers, not the JSON body.
	RateLimit *RateLimitInfo `json:"-"`
}

// Product is one ranked result. Scores are percentages.
type Product struct {
	ProductID  string            `json:"product_id"`
	Name       string            `json:"name"`
	CategoryID string            `json:"category_id"`
	Price      float64           `json:"price"`
	Stock      int               `json:"stock"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Featured   *bool             `json:"featured,omitempty"`
	Discount   *float64          `json:"discount,omitempty"`

	SimilarityScore float64 `json:"similarity_score"`
	VisualScore     float64 `json:"visual_score"`
	MetadataScore   float64 `json:"metadata_score"`
	BusinessScore   float64 `json:"business_score"`
}

// Category is a category admitted for the probe.
type Category struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// RateLimitInfo reports the remaining quota of both admission windows.
type RateLimitInfo struct {
	MinuteLimit     int
	MinuteRemaining int
	MinuteReset     time.Time
	HourLimit       int
	HourRemaining   int
	HourReset       time.Time
}

// Health is the server health report.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
