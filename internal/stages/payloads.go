package stages

import (
	"marketpipe/internal/services/search"
)

// Analysis type tags carried by insight and implication payloads.
const (
	AnalysisTypeInsight     = "insight"
	AnalysisTypeImplication = "implication"
)

// RequestPayload is the payload of a request_acceptance item. It is also
// the shape the gateway writes when a request is submitted.
type RequestPayload struct {
	ProjectID   string `json:"project_id"`
	RequestID   string `json:"request_id"`
	Query       string `json:"query"`
	Description string `json:"description,omitempty"`
}

// SerpPayload is the payload of a serp item: one search query against one
// configured source. Results are filled in on completion.
type SerpPayload struct {
	Query   string          `json:"query"`
	Source  string          `json:"source"`
	Results []search.Result `json:"results,omitempty"`
}

// EnrichPayload is the payload of a perplexity item: one batch of URLs to
// enrich. ContentRef points into the blob store once enrichment completes.
type EnrichPayload struct {
	Query      string   `json:"query"`
	Source     string   `json:"source"`
	URLs       []string `json:"urls"`
	ContentRef string   `json:"content_ref,omitempty"`
}

// AnalysisPayload is the payload of an insight or implication item. The two
// stages share the shape; AnalysisType tells them apart. ResultRef points
// into the blob store once analysis completes.
type AnalysisPayload struct {
	Query        string `json:"query"`
	AnalysisType string `json:"analysis_type"`
	ContentRef   string `json:"content_ref"`
	ResultRef    string `json:"result_ref,omitempty"`
}

// EnrichedContent is the blob stored by the perplexity stage.
type EnrichedContent struct {
	Query   string   `json:"query"`
	URLs    []string `json:"urls"`
	Content string   `json:"content"`
}

// AnalysisResult is the blob stored by the insight and implication stages.
type AnalysisResult struct {
	Query        string `json:"query"`
	AnalysisType string `json:"analysis_type"`
	Content      string `json:"content"`
}
