// Package llm provides LLM and embedding provider clients (C1/C4): the
// HTTP clients for OpenAI/Anthropic/Ollama, the circuit breaker wrapping
// them, and the prompt templates and canonical-position parsing the
// Analyzer (C8) uses against whatever text a provider returns.
package llm

import "fmt"

// GraphAwareTemplate renders the graph-aware triage prompt: used
// when the context formatter reports graph_present = true, with a
// four-point analysis instruction covering event summary, graph
// interpretation, risk rating, and a recommendation citing graph entities.
func GraphAwareTemplate(alertSummary, graphContext string) string {
	return fmt.Sprintf(`You are a security analyst triaging an alert from a SIEM pipeline.

ALERT SUMMARY:
%s

GRAPH CONTEXT (related entities and attack paths from the threat knowledge graph):
%s

Using the graph context above, do all of the following:
1. Summarize the event.
2. Interpret the graph: identify attack paths, related entities, and any lateral movement.
3. Rate risk as exactly one of: Critical, High, Medium, Low, Informational.
4. Give a recommendation that references specific graph entities by name.

Begin your response with the risk rating.`, alertSummary, graphContext)
}

// PlainTemplate renders the non-graph triage prompt: used when
// graph_present is false. Any of the five context strings may be empty.
func PlainTemplate(alertSummary, similarAlertsContext, systemMetricsContext, processContext, networkContext, additionalContext string) string {
	return fmt.Sprintf(`You are a security analyst triaging an alert from a SIEM pipeline.

ALERT SUMMARY:
%s

SIMILAR PRIOR ALERTS:
%s

SYSTEM METRICS:
%s

PROCESS ACTIVITY:
%s

NETWORK ACTIVITY:
%s

ADDITIONAL CONTEXT:
%s

Do all of the following:
1. Summarize the event.
2. Interpret what is known from the context above.
3. Rate risk as exactly one of: Critical, High, Medium, Low, Informational.
4. Give a recommendation.

Begin your response with the risk rating.`,
		alertSummary, similarAlertsContext, systemMetricsContext, processContext, networkContext, additionalContext)
}

// AnalysisFailedReport builds the structured fallback report the Analyzer
// returns when the LLM call itself fails. The exception
// message is embedded so the stored enrichment still carries the reason a
// human reading the report later would need.
func AnalysisFailedReport(cause error) string {
	return fmt.Sprintf("analysis-failed: the LLM provider call did not complete: %v", cause)
}
