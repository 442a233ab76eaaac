package main

import (
	"time"

	"marketpipe/internal/blob"
	"marketpipe/internal/config"
	"marketpipe/internal/services/llm"
	"marketpipe/internal/services/search"
	"marketpipe/internal/stages"
	"marketpipe/internal/workflow"
)

func workerConfig(cfg *config.Config) workflow.WorkerConfig {
	return workflow.WorkerConfig{
		BatchSize:          cfg.Workflow.BatchSize,
		PollInterval:       time.Duration(cfg.Workflow.PollInterval) * time.Second,
		ItemDelay:          time.Duration(cfg.Workflow.ItemDelay) * time.Second,
		ItemTimeout:        time.Duration(cfg.Workflow.ItemTimeout) * time.Second,
		ErrorRetryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		HeartbeatInterval:  time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second,
	}
}

func registerStages(supervisor *workflow.Supervisor, cfg *config.Config, blobs *blob.Store) error {
	searcher := search.NewClient(cfg.Search)
	completer := llm.NewClient(cfg.LLM)

	acceptance := stages.NewAcceptance(cfg.Pipeline.Sources)
	serp := stages.NewSerp(searcher, cfg.Pipeline.URLBatchSize)
	perplexity := stages.NewPerplexity(completer, blobs)
	insight := stages.NewInsight(completer, blobs)
	implication := stages.NewImplication(completer, blobs)

	if err := supervisor.Register(workflow.StageRequestAcceptance, acceptance, acceptance); err != nil {
		return err
	}
	if err := supervisor.Register(workflow.StageSerp, serp, serp); err != nil {
		return err
	}
	if err := supervisor.Register(workflow.StagePerplexity, perplexity, perplexity); err != nil {
		return err
	}
	if err := supervisor.Register(workflow.StageInsight, insight, nil); err != nil {
		return err
	}
	return supervisor.Register(workflow.StageImplication, implication, nil)
}
