package engine

import (
	"context"
	"testing"
	"time"

	"github.com/scrypster/aegis/internal/config"
	"github.com/scrypster/aegis/internal/store/graphstore"
	"github.com/scrypster/aegis/internal/store/vectorstore"
	"github.com/scrypster/aegis/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func retrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{ResultCap: 50, GraphMinimum: 10, RetrievalConcurrency: 4}
}

func timeoutConfig() config.TimeoutConfig {
	return config.TimeoutConfig{
		VectorStore:      time.Second,
		GraphStorePerTpl: time.Second,
		LLM:              time.Second,
	}
}

func TestHybridRetriever_VectorKNN_PopulatesSimilarAlertsSlot(t *testing.T) {
	vs := vectorstore.NewFake()
	alert := &types.Alert{ID: "a1", Timestamp: time.Now(), Rule: types.Rule{Description: "test"}, Agent: types.Agent{Name: "host-1"}}
	other := &types.Alert{ID: "a2", Timestamp: time.Now(), Rule: types.Rule{Description: "other"}, Agent: types.Agent{Name: "host-1"},
		Enrichment: &types.Enrichment{Analysis: &types.Analysis{ReportText: "prior report"}}}
	vs.Seed(alert, other)
	vs.SeedVector("a2", []float32{1, 0, 0})

	r := NewHybridRetriever(vs, nil, retrievalConfig(), timeoutConfig())
	plan := types.Plan{Tasks: []types.RetrievalTask{
		{Kind: types.KindVectorKNN, Priority: types.PriorityHigh, Slot: types.SlotSimilarAlerts, Parameters: map[string]any{"k": 5}},
	}}

	bundle := r.Retrieve(context.Background(), alert, []float32{1, 0, 0}, plan)
	require.Len(t, bundle[types.SlotSimilarAlerts], 1)
	assert.Equal(t, "a2", bundle[types.SlotSimilarAlerts][0].Fields["id"])
}

func TestHybridRetriever_GraphDegraded_SkipsCypherTemplateTasks(t *testing.T) {
	vs := vectorstore.NewFake()
	alert := &types.Alert{ID: "a1", Timestamp: time.Now(), Rule: types.Rule{Description: "ssh"}, Agent: types.Agent{Name: "host-1"}}
	vs.Seed(alert)

	r := NewHybridRetriever(vs, nil, retrievalConfig(), timeoutConfig())
	plan := Plan(alert)

	bundle := r.Retrieve(context.Background(), alert, nil, plan)
	assert.Empty(t, bundle[types.SlotAttackPaths])
	assert.Empty(t, bundle[types.SlotLateralMovement])
}

func TestHybridRetriever_CypherTemplate_PopulatesGraphSlot(t *testing.T) {
	vs := vectorstore.NewFake()
	gs := graphstore.NewFake()
	gs.RunFunc = func(ctx context.Context, query string, params map[string]any) ([]graphstore.Row, error) {
		return []graphstore.Row{{"a": "placeholder"}}, nil
	}

	alert := &types.Alert{ID: "a1", Timestamp: time.Now(), Rule: types.Rule{Description: "ssh brute force", Level: 8}, Agent: types.Agent{Name: "host-1"}, Data: map[string]any{"srcip": "203.0.113.1"}}
	r := NewHybridRetriever(vs, gs, retrievalConfig(), timeoutConfig())
	plan := Plan(alert)

	bundle := r.Retrieve(context.Background(), alert, nil, plan)
	assert.NotEmpty(t, bundle[types.SlotAttackPaths])
}

func TestHybridRetriever_LowGraphHitCount_FallsBackToDefaultKeywordTasks(t *testing.T) {
	vs := vectorstore.NewFake()
	alert := &types.Alert{ID: "a1", Timestamp: time.Now(), Rule: types.Rule{Description: "routine", Level: 1}, Agent: types.Agent{Name: "host-1"}, FullLog: "cpu spike detected"}
	vs.Seed(alert)

	r := NewHybridRetriever(vs, nil, retrievalConfig(), timeoutConfig())
	plan := types.Plan{Tasks: []types.RetrievalTask{
		{Kind: types.KindVectorKNN, Priority: types.PriorityHigh, Slot: types.SlotSimilarAlerts, Parameters: map[string]any{"k": 5}},
	}}

	bundle := r.Retrieve(context.Background(), alert, nil, plan)
	assert.NotEmpty(t, bundle[types.SlotHostMetrics])
}

func TestHybridRetriever_TaskFailureIsolated_NeverPanics(t *testing.T) {
	vs := vectorstore.NewFake()
	vs.Unavailable = true
	alert := &types.Alert{ID: "a1", Timestamp: time.Now(), Rule: types.Rule{Description: "test"}, Agent: types.Agent{Name: "host-1"}}

	r := NewHybridRetriever(vs, nil, retrievalConfig(), timeoutConfig())
	plan := types.Plan{Tasks: []types.RetrievalTask{
		{Kind: types.KindVectorKNN, Priority: types.PriorityHigh, Slot: types.SlotSimilarAlerts, Parameters: map[string]any{"k": 5}},
	}}

	bundle := r.Retrieve(context.Background(), alert, []float32{1, 0}, plan)
	require.Len(t, bundle[types.SlotSimilarAlerts], 1)
	assert.True(t, bundle[types.SlotSimilarAlerts][0].Failed)
}
