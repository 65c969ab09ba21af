package llm_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/scrypster/aegis/internal/llm"
	"github.com/scrypster/aegis/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestExtractRiskLevel_SingleToken(t *testing.T) {
	assert.Equal(t, types.RiskHigh, llm.ExtractRiskLevel("Risk: High. This looks like a brute force attempt."))
}

func TestExtractRiskLevel_CaseInsensitive(t *testing.T) {
	assert.Equal(t, types.RiskCritical, llm.ExtractRiskLevel("RISK RATING: CRITICAL"))
}

func TestExtractRiskLevel_MultipleTokensHighestSeverityWins(t *testing.T) {
	report := "Not critical, this is informational at most, though medium risk is possible."
	assert.Equal(t, types.RiskCritical, llm.ExtractRiskLevel(report))
}

func TestExtractRiskLevel_NoTokenIsUnknown(t *testing.T) {
	assert.Equal(t, types.RiskUnknown, llm.ExtractRiskLevel("The event could not be classified."))
}

func TestExtractRiskLevel_OnlyScansCanonicalWindow(t *testing.T) {
	report := strings.Repeat("x", 600) + " critical"
	assert.Equal(t, types.RiskUnknown, llm.ExtractRiskLevel(report))
}

func TestAnalysisFailedReport_EmbedsCause(t *testing.T) {
	report := llm.AnalysisFailedReport(errors.New("circuit breaker is open"))
	assert.Contains(t, report, "analysis-failed")
	assert.Contains(t, report, "circuit breaker is open")
}
