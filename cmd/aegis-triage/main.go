// Command aegis-triage runs the alert triage poll loop: it pulls
// unprocessed alerts from the vector store, embeds and enriches each one
// against the threat knowledge graph, and writes back a risk-scored report.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/scrypster/aegis/internal/config"
	"github.com/scrypster/aegis/internal/engine"
	"github.com/scrypster/aegis/internal/llm"
	"github.com/scrypster/aegis/internal/metrics"
	"github.com/scrypster/aegis/internal/scheduler"
	"github.com/scrypster/aegis/internal/store/graphstorefactory"
	"github.com/scrypster/aegis/internal/store/vectorstorefactory"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	vectorStore, err := vectorstorefactory.New(ctx, cfg.VectorStore)
	if err != nil {
		log.Fatalf("aegis-triage: vector store: %v", err)
	}
	defer vectorStore.Close()

	if err := vectorStore.EnsureIndexTemplate(ctx); err != nil {
		log.Fatalf("aegis-triage: ensure index template: %v", err)
	}

	graphStore, err := graphstorefactory.New(ctx, cfg.GraphStore)
	if err != nil {
		log.Printf("aegis-triage: graph store unavailable at startup, continuing degraded: %v", err)
	} else {
		defer graphStore.Close()
	}

	embeddingGen, err := llm.NewEmbeddingGenerator(cfg.Embedding)
	if err != nil {
		log.Fatalf("aegis-triage: embedding provider: %v", err)
	}
	embeddingClient := llm.NewEmbeddingClient(embeddingGen, cfg.Embedding.Dimension)

	textGen, err := llm.NewTextGenerator(cfg.LLM)
	if err != nil {
		log.Fatalf("aegis-triage: llm provider: %v", err)
	}

	metricsReg := metrics.New()

	retriever := engine.NewHybridRetriever(vectorStore, graphStore, cfg.Retrieval, cfg.Timeouts)
	retriever.Metrics = metricsReg

	analyzer := engine.NewAnalyzer(textGen, cfg.Timeouts.LLM)
	analyzer.Metrics = metricsReg

	persister := engine.NewGraphPersister(graphStore)
	persister.Metrics = metricsReg

	processor := engine.NewAlertProcessor(embeddingClient, vectorStore, retriever, analyzer, persister, cfg.Timeouts)
	processor.Metrics = metricsReg

	sched := scheduler.New(vectorStore, processor, metricsReg, cfg.Scheduler)

	log.Printf("aegis-triage: starting, vectorstore=%s graphstore=%v embedding=%s llm=%s",
		cfg.VectorStore.Engine, graphStore != nil, cfg.Embedding.Provider, cfg.LLM.Provider)

	sched.Run(ctx)

	log.Println("aegis-triage: stopped")
}
