package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scrypster/aegis/pkg/types"
	"github.com/stretchr/testify/assert"
)

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeGenerator) GetModel() string { return "fake-model" }

func TestAnalyzer_GraphPresent_UsesGraphAwareTemplate(t *testing.T) {
	gen := &fakeGenerator{response: "Risk: Critical. Brute force attack chain identified."}
	a := NewAnalyzer(gen, time.Second)

	report, risk := a.Analyze(context.Background(), FormattedContext{
		AlertSummary: "summary", GraphPresent: true, GraphContext: "(IPAddress:1.2.3.4)",
	})
	assert.Equal(t, gen.response, report)
	assert.Equal(t, types.RiskCritical, risk)
}

func TestAnalyzer_LLMFailure_ReturnsAnalysisFailedReport(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("provider timeout")}
	a := NewAnalyzer(gen, time.Second)

	report, risk := a.Analyze(context.Background(), FormattedContext{AlertSummary: "summary"})
	assert.Contains(t, report, "analysis-failed")
	assert.Contains(t, report, "provider timeout")
	assert.Equal(t, types.RiskUnknown, risk)
}

func TestAnalyzer_PlainTemplate_WhenGraphAbsent(t *testing.T) {
	gen := &fakeGenerator{response: "Risk: Low. Nothing unusual."}
	a := NewAnalyzer(gen, time.Second)

	_, risk := a.Analyze(context.Background(), FormattedContext{AlertSummary: "summary", GraphPresent: false})
	assert.Equal(t, types.RiskLow, risk)
}
