package engine

import (
	"context"
	"time"

	"github.com/scrypster/aegis/internal/llm"
	"github.com/scrypster/aegis/internal/metrics"
	"github.com/scrypster/aegis/pkg/types"
)

// Analyzer is the LLM-facing analysis stage (C8): selects a prompt template
// based on graph_present, calls the LLM under a bounded timeout, and
// extracts the risk-level token. It never propagates an LLM failure — a
// failed call becomes a structured analysis-failed report instead.
type Analyzer struct {
	LLM     llm.TextGenerator
	Timeout time.Duration
	Metrics *metrics.Registry
}

func NewAnalyzer(generator llm.TextGenerator, timeout time.Duration) *Analyzer {
	return &Analyzer{LLM: generator, Timeout: timeout}
}

// Analyze renders the appropriate template from fc, calls the LLM, and
// returns the raw report text plus the risk level extracted from its
// canonical position.
func (a *Analyzer) Analyze(ctx context.Context, fc FormattedContext) (reportText string, risk types.RiskLevel) {
	prompt := a.renderPrompt(fc)

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report, err := a.LLM.Complete(callCtx, prompt)
	if err != nil {
		report = llm.AnalysisFailedReport(err)
		return report, types.RiskUnknown
	}

	if a.Metrics != nil {
		a.Metrics.AddTokensIn(llm.EstimateTokens(prompt))
	}

	return report, llm.ExtractRiskLevel(report)
}

func (a *Analyzer) renderPrompt(fc FormattedContext) string {
	if fc.GraphPresent {
		return llm.GraphAwareTemplate(fc.AlertSummary, fc.GraphContext)
	}
	return llm.PlainTemplate(fc.AlertSummary, fc.SimilarAlerts, fc.SystemMetrics, fc.ProcessContext, fc.NetworkContext, fc.AdditionalCtx)
}
