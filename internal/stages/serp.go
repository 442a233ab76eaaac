package stages

import (
	"context"

	"marketpipe/internal/queue"
	"marketpipe/internal/services"
	"marketpipe/internal/services/search"
	"marketpipe/internal/workflow"
)

// Searcher is the SERP boundary, satisfied by search.Client.
type Searcher interface {
	Search(ctx context.Context, query, engine string) ([]search.Result, error)
}

// Serp runs each query against its source and fans the discovered URLs out
// into perplexity items, one per batch of urlBatchSize URLs.
type Serp struct {
	searcher     Searcher
	urlBatchSize int
}

// NewSerp builds the serp stage.
func NewSerp(searcher Searcher, urlBatchSize int) *Serp {
	if urlBatchSize <= 0 {
		urlBatchSize = 5
	}
	return &Serp{searcher: searcher, urlBatchSize: urlBatchSize}
}

// Process runs the search and stores the organic results in the payload.
func (s *Serp) Process(ctx context.Context, item *queue.Item) (workflow.Result, error) {
	var payload SerpPayload
	if err := item.DecodePayload(&payload); err != nil {
		return workflow.Result{}, services.Wrap(services.ErrValidation, workflow.StageSerp, "decode payload", "", err)
	}

	results, err := s.searcher.Search(ctx, payload.Query, payload.Source)
	if err != nil {
		return workflow.Result{}, err
	}
	payload.Results = results

	encoded, err := queue.EncodePayload(payload)
	if err != nil {
		return workflow.Result{}, services.Wrap(services.ErrValidation, workflow.StageSerp, "encode payload", "", err)
	}
	return workflow.Result{PayloadJSON: encoded}, nil
}

// Expand batches the result URLs and creates one perplexity item per batch.
// An empty result set expands to nothing; the branch simply ends there.
func (s *Serp) Expand(ctx context.Context, item *queue.Item) ([]workflow.Expansion, error) {
	var payload SerpPayload
	if err := item.DecodePayload(&payload); err != nil {
		return nil, services.Wrap(services.ErrValidation, workflow.StageSerp, "decode payload", "", err)
	}

	urls := make([]string, 0, len(payload.Results))
	for _, result := range payload.Results {
		if result.URL != "" {
			urls = append(urls, result.URL)
		}
	}

	var expansions []workflow.Expansion
	for start := 0; start < len(urls); start += s.urlBatchSize {
		end := min(start+s.urlBatchSize, len(urls))
		encoded, err := queue.EncodePayload(EnrichPayload{
			Query:  payload.Query,
			Source: payload.Source,
			URLs:   urls[start:end],
		})
		if err != nil {
			return nil, err
		}
		expansions = append(expansions, workflow.Expansion{
			Stage:       workflow.StagePerplexity,
			PayloadJSON: encoded,
		})
	}
	return expansions, nil
}
