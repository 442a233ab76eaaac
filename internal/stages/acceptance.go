package stages

import (
	"context"
	"strings"

	"marketpipe/internal/queue"
	"marketpipe/internal/services"
	"marketpipe/internal/workflow"
)

// Acceptance validates incoming research requests and fans them out into
// one serp item per configured source.
type Acceptance struct {
	sources []string
}

// NewAcceptance builds the request_acceptance stage over the configured
// source list.
func NewAcceptance(sources []string) *Acceptance {
	return &Acceptance{sources: sources}
}

// Process validates the request payload. Malformed requests fail without
// consuming retry budget; there is nothing transient about a missing query.
func (a *Acceptance) Process(ctx context.Context, item *queue.Item) (workflow.Result, error) {
	var payload RequestPayload
	if err := item.DecodePayload(&payload); err != nil {
		return workflow.Result{}, services.Wrap(services.ErrValidation, workflow.StageRequestAcceptance, "decode payload", "", err)
	}
	payload.Query = strings.TrimSpace(payload.Query)
	if payload.Query == "" {
		return workflow.Result{}, services.Wrap(services.ErrValidation, workflow.StageRequestAcceptance, "validate", "query is required", nil)
	}
	if strings.TrimSpace(payload.ProjectID) == "" || strings.TrimSpace(payload.RequestID) == "" {
		return workflow.Result{}, services.Wrap(services.ErrValidation, workflow.StageRequestAcceptance, "validate", "project_id and request_id are required", nil)
	}
	if len(a.sources) == 0 {
		return workflow.Result{}, services.Wrap(services.ErrConfiguration, workflow.StageRequestAcceptance, "validate", "no search sources configured", nil)
	}

	encoded, err := queue.EncodePayload(payload)
	if err != nil {
		return workflow.Result{}, services.Wrap(services.ErrValidation, workflow.StageRequestAcceptance, "encode payload", "", err)
	}
	return workflow.Result{PayloadJSON: encoded}, nil
}

// Expand creates one serp item per configured source, each carrying the
// validated query.
func (a *Acceptance) Expand(ctx context.Context, item *queue.Item) ([]workflow.Expansion, error) {
	var payload RequestPayload
	if err := item.DecodePayload(&payload); err != nil {
		return nil, services.Wrap(services.ErrValidation, workflow.StageRequestAcceptance, "decode payload", "", err)
	}

	expansions := make([]workflow.Expansion, 0, len(a.sources))
	for _, source := range a.sources {
		source = strings.TrimSpace(source)
		if source == "" {
			continue
		}
		encoded, err := queue.EncodePayload(SerpPayload{Query: payload.Query, Source: source})
		if err != nil {
			return nil, err
		}
		expansions = append(expansions, workflow.Expansion{
			Stage:       workflow.StageSerp,
			PayloadJSON: encoded,
		})
	}
	return expansions, nil
}
