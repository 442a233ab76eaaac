package stages

import (
	"context"
	"strings"

	"marketpipe/internal/queue"
	"marketpipe/internal/services"
	"marketpipe/internal/workflow"
)

// Completer is the chat completion boundary, satisfied by llm.Client.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ContentStore is the blob boundary, satisfied by blob.Store. Large stage
// outputs live here; items carry only the returned key.
type ContentStore interface {
	PutJSON(value any) (string, error)
	GetJSON(key string, out any) error
}

const enrichSystemPrompt = `You are a market research assistant. Given a research query and a list of source URLs, produce a thorough synthesis of what those sources say about the query. Cover the main findings, notable data points, and any disagreements between sources. Respond with plain prose.`

// Perplexity enriches each URL batch through the LLM, stores the enriched
// content in the blob store, and fans out into exactly one insight and one
// implication item.
type Perplexity struct {
	completer Completer
	blobs     ContentStore
}

// NewPerplexity builds the perplexity stage.
func NewPerplexity(completer Completer, blobs ContentStore) *Perplexity {
	return &Perplexity{completer: completer, blobs: blobs}
}

// Process enriches the batch and replaces the payload's URL list outcome
// with a content reference.
func (p *Perplexity) Process(ctx context.Context, item *queue.Item) (workflow.Result, error) {
	var payload EnrichPayload
	if err := item.DecodePayload(&payload); err != nil {
		return workflow.Result{}, services.Wrap(services.ErrValidation, workflow.StagePerplexity, "decode payload", "", err)
	}
	if len(payload.URLs) == 0 {
		return workflow.Result{}, services.Wrap(services.ErrValidation, workflow.StagePerplexity, "validate", "no urls to enrich", nil)
	}

	userPrompt := "Research query: " + payload.Query + "\n\nSources:\n" + strings.Join(payload.URLs, "\n")
	content, err := p.completer.Complete(ctx, enrichSystemPrompt, userPrompt)
	if err != nil {
		return workflow.Result{}, err
	}

	ref, err := p.blobs.PutJSON(EnrichedContent{
		Query:   payload.Query,
		URLs:    payload.URLs,
		Content: content,
	})
	if err != nil {
		return workflow.Result{}, services.Wrap(services.ErrTransient, workflow.StagePerplexity, "store content", "", err)
	}
	payload.ContentRef = ref

	encoded, err := queue.EncodePayload(payload)
	if err != nil {
		return workflow.Result{}, services.Wrap(services.ErrValidation, workflow.StagePerplexity, "encode payload", "", err)
	}
	return workflow.Result{PayloadJSON: encoded}, nil
}

// Expand creates exactly two successor items, one per analysis stage, each
// carrying the same content reference but a different analysis type.
func (p *Perplexity) Expand(ctx context.Context, item *queue.Item) ([]workflow.Expansion, error) {
	var payload EnrichPayload
	if err := item.DecodePayload(&payload); err != nil {
		return nil, services.Wrap(services.ErrValidation, workflow.StagePerplexity, "decode payload", "", err)
	}

	targets := []struct {
		stage        string
		analysisType string
	}{
		{workflow.StageInsight, AnalysisTypeInsight},
		{workflow.StageImplication, AnalysisTypeImplication},
	}

	expansions := make([]workflow.Expansion, 0, len(targets))
	for _, target := range targets {
		encoded, err := queue.EncodePayload(AnalysisPayload{
			Query:        payload.Query,
			AnalysisType: target.analysisType,
			ContentRef:   payload.ContentRef,
		})
		if err != nil {
			return nil, err
		}
		expansions = append(expansions, workflow.Expansion{
			Stage:       target.stage,
			PayloadJSON: encoded,
		})
	}
	return expansions, nil
}
