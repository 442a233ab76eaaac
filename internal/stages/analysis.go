package stages

import (
	"context"

	"marketpipe/internal/queue"
	"marketpipe/internal/services"
	"marketpipe/internal/workflow"
)

const insightSystemPrompt = `You are a market research analyst. Given enriched research content, extract the key insights: what the data shows, which patterns stand out, and which claims are best supported. Respond with plain prose organized into short paragraphs.`

const implicationSystemPrompt = `You are a market strategy analyst. Given enriched research content, derive the business implications: what the findings mean for strategy, which risks and opportunities they expose, and what actions they suggest. Respond with plain prose organized into short paragraphs.`

// Analysis is the shared implementation of the insight and implication
// stages. Both are terminal: they analyze enriched content and store the
// result, with no fan-out.
type Analysis struct {
	stage        string
	analysisType string
	systemPrompt string
	completer    Completer
	blobs        ContentStore
}

// NewInsight builds the insight stage.
func NewInsight(completer Completer, blobs ContentStore) *Analysis {
	return &Analysis{
		stage:        workflow.StageInsight,
		analysisType: AnalysisTypeInsight,
		systemPrompt: insightSystemPrompt,
		completer:    completer,
		blobs:        blobs,
	}
}

// NewImplication builds the implication stage.
func NewImplication(completer Completer, blobs ContentStore) *Analysis {
	return &Analysis{
		stage:        workflow.StageImplication,
		analysisType: AnalysisTypeImplication,
		systemPrompt: implicationSystemPrompt,
		completer:    completer,
		blobs:        blobs,
	}
}

// Process loads the enriched content, runs the analysis, and stores the
// result blob, leaving its key in the payload.
func (a *Analysis) Process(ctx context.Context, item *queue.Item) (workflow.Result, error) {
	var payload AnalysisPayload
	if err := item.DecodePayload(&payload); err != nil {
		return workflow.Result{}, services.Wrap(services.ErrValidation, a.stage, "decode payload", "", err)
	}
	if payload.ContentRef == "" {
		return workflow.Result{}, services.Wrap(services.ErrValidation, a.stage, "validate", "missing content_ref", nil)
	}

	var enriched EnrichedContent
	if err := a.blobs.GetJSON(payload.ContentRef, &enriched); err != nil {
		return workflow.Result{}, services.Wrap(services.ErrTransient, a.stage, "load content", "", err)
	}

	userPrompt := "Research query: " + enriched.Query + "\n\nEnriched content:\n" + enriched.Content
	content, err := a.completer.Complete(ctx, a.systemPrompt, userPrompt)
	if err != nil {
		return workflow.Result{}, err
	}

	ref, err := a.blobs.PutJSON(AnalysisResult{
		Query:        enriched.Query,
		AnalysisType: a.analysisType,
		Content:      content,
	})
	if err != nil {
		return workflow.Result{}, services.Wrap(services.ErrTransient, a.stage, "store result", "", err)
	}
	payload.ResultRef = ref

	encoded, err := queue.EncodePayload(payload)
	if err != nil {
		return workflow.Result{}, services.Wrap(services.ErrValidation, a.stage, "encode payload", "", err)
	}
	return workflow.Result{PayloadJSON: encoded}, nil
}
