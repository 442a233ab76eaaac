// Package stages provides the processors and expanders for the research
// pipeline: request acceptance, SERP search, Perplexity enrichment, and the
// insight and implication analyses. Each stage is wired into the workflow
// engine through the Processor and Expander interfaces; the engine never
// sees stage payload shapes.
package stages
