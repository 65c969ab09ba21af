package engine

import (
	"context"
	"time"

	"github.com/scrypster/aegis/internal/config"
	"github.com/scrypster/aegis/internal/llm"
	"github.com/scrypster/aegis/internal/metrics"
	"github.com/scrypster/aegis/internal/store/vectorstore"
	"github.com/scrypster/aegis/pkg/types"
)

// AlertProcessor wires C1/C5/C6/C7/C8/C2/C9 together into the per-alert
// processing sequence. It never returns an error: every failure mode
// is converted into a terminal enrichment so the alert leaves the
// unprocessed set.
type AlertProcessor struct {
	Embedding *llm.EmbeddingClient
	Vector    vectorstore.Store
	Retriever *HybridRetriever
	Analyzer  *Analyzer
	Persister *GraphPersister

	Timeouts config.TimeoutConfig
	Metrics  *metrics.Registry
}

func NewAlertProcessor(
	embedding *llm.EmbeddingClient,
	vector vectorstore.Store,
	retriever *HybridRetriever,
	analyzer *Analyzer,
	persister *GraphPersister,
	timeouts config.TimeoutConfig,
) *AlertProcessor {
	return &AlertProcessor{
		Embedding: embedding,
		Vector:    vector,
		Retriever: retriever,
		Analyzer:  analyzer,
		Persister: persister,
		Timeouts:  timeouts,
	}
}

// Process runs the full pipeline for one alert and writes back its
// enrichment. Returns true only when the alert was embedded and its first
// enrichment write succeeded (for scheduler-level metrics); malformed alerts
// and embedding failures get a fallback enrichment write and return false.
func (p *AlertProcessor) Process(ctx context.Context, alert *types.Alert) bool {
	started := time.Now()

	if !alert.WellFormed() {
		p.writeUnprocessable(ctx, alert, started)
		return false
	}

	embedCtx, cancel := context.WithTimeout(ctx, p.timeout(p.Timeouts.Embedding))
	vector, err := p.Embedding.Embed(embedCtx, BuildAlertSummary(alert))
	cancel()
	if err != nil {
		p.writeFailure(ctx, alert, vector, err, started)
		return false
	}

	plan := Plan(alert)
	bundle := p.Retriever.Retrieve(ctx, alert, vector, plan)
	fc := FormatContext(BuildAlertSummary(alert), bundle)

	report, risk := p.Analyzer.Analyze(ctx, fc)

	enrichment := types.Enrichment{
		Vector: vector,
		Analysis: &types.Analysis{
			ReportText:   report,
			ProviderID:   p.providerID(),
			Timestamp:    started,
			RiskLevel:    risk,
			PlanSummary:  types.PlanSummary{QueryKinds: plan.Kinds(), CountsByKind: plan.CountsByKind()},
			GraphStats:   types.GraphStats{Persisted: false},
			ProcessingMS: time.Since(started).Milliseconds(),
		},
	}

	writeCtx, writeCancel := context.WithTimeout(ctx, p.timeout(p.Timeouts.VectorStore))
	writeErr := p.Vector.UpdateEnrichment(writeCtx, alert.ID, enrichment)
	writeCancel()

	graphStats := p.Persister.Persist(ctx, alert, bundle, report, risk)
	if graphStats != enrichment.Analysis.GraphStats {
		enrichment.Analysis.GraphStats = graphStats
		rewriteCtx, rewriteCancel := context.WithTimeout(ctx, p.timeout(p.Timeouts.VectorStore))
		_ = p.Vector.UpdateEnrichment(rewriteCtx, alert.ID, enrichment)
		rewriteCancel()
	}

	if p.Metrics != nil {
		p.Metrics.IncAlertResult(writeErr == nil)
	}
	return writeErr == nil
}

func (p *AlertProcessor) writeUnprocessable(ctx context.Context, alert *types.Alert, started time.Time) {
	enrichment := types.Enrichment{
		Vector: p.bestEffortVector(ctx, alert.ID),
		Analysis: &types.Analysis{
			ReportText:   "unprocessable: alert is missing both rule and agent fields",
			ProviderID:   p.providerID(),
			Timestamp:    started,
			RiskLevel:    types.RiskUnknown,
			ProcessingMS: time.Since(started).Milliseconds(),
		},
	}
	writeCtx, cancel := context.WithTimeout(ctx, p.timeout(p.Timeouts.VectorStore))
	defer cancel()
	_ = p.Vector.UpdateEnrichment(writeCtx, alert.ID, enrichment)
	if p.Metrics != nil {
		p.Metrics.IncAlertResult(false)
	}
}

func (p *AlertProcessor) writeFailure(ctx context.Context, alert *types.Alert, vector []float32, cause error, started time.Time) {
	if vector == nil {
		vector = p.zeroVector()
	}
	enrichment := types.Enrichment{
		Vector: vector,
		Analysis: &types.Analysis{
			ReportText:   llm.AnalysisFailedReport(cause),
			ProviderID:   p.providerID(),
			Timestamp:    started,
			RiskLevel:    types.RiskUnknown,
			ProcessingMS: time.Since(started).Milliseconds(),
		},
	}
	writeCtx, cancel := context.WithTimeout(ctx, p.timeout(p.Timeouts.VectorStore))
	defer cancel()
	_ = p.Vector.UpdateEnrichment(writeCtx, alert.ID, enrichment)
	if p.Metrics != nil {
		p.Metrics.IncAlertResult(false)
	}
}

// bestEffortVector tries one bounded embedding call against text (e.g. the
// alert's own ID when no other summary is available), falling back to a
// zero vector of the configured dimension if that call also fails, so
// every enrichment carrying Analysis also carries Vector.
func (p *AlertProcessor) bestEffortVector(ctx context.Context, text string) []float32 {
	embedCtx, cancel := context.WithTimeout(ctx, p.timeout(p.Timeouts.Embedding))
	defer cancel()
	vector, err := p.Embedding.Embed(embedCtx, text)
	if err != nil {
		return p.zeroVector()
	}
	return vector
}

func (p *AlertProcessor) zeroVector() []float32 {
	dim := 256
	if p.Embedding != nil && p.Embedding.Dimension > 0 {
		dim = p.Embedding.Dimension
	}
	return make([]float32, dim)
}

func (p *AlertProcessor) providerID() string {
	if p.Analyzer == nil || p.Analyzer.LLM == nil {
		return ""
	}
	return p.Analyzer.LLM.GetModel()
}

func (p *AlertProcessor) timeout(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return 10 * time.Second
}
