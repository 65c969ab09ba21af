package engine

import (
	"context"
	"testing"
	"time"

	"github.com/scrypster/aegis/internal/store/graphstore"
	"github.com/scrypster/aegis/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sshAlert() *types.Alert {
	return &types.Alert{
		ID:        "a1",
		Timestamp: time.Date(2024, 12, 15, 14, 32, 15, 0, time.UTC),
		Rule:      types.Rule{ID: 100002, Description: "SSH brute force attack detected", Level: 8},
		Agent:     types.Agent{ID: "A1", Name: "web-01"},
		Data:      map[string]any{"srcip": "203.0.113.45", "dstip": "192.168.1.10", "srcuser": "admin"},
	}
}

func TestGraphPersister_Persist_CreatesExpectedNodesAndEdges(t *testing.T) {
	gs := graphstore.NewFake()
	p := NewGraphPersister(gs)

	stats := p.Persist(context.Background(), sshAlert(), types.NewContextBundle(), "Risk: Critical", types.RiskCritical)

	require.True(t, stats.Persisted)
	assert.True(t, gs.HasEdge(types.RelTriggeredOn, types.NodeAlert, "a1", types.NodeHost, "A1"))
	assert.True(t, gs.HasEdge(types.RelHasSourceIP, types.NodeAlert, "a1", types.NodeIPAddress, "203.0.113.45"))
	assert.True(t, gs.HasEdge(types.RelInvolvesUser, types.NodeAlert, "a1", types.NodeUser, "admin"))
}

func TestGraphPersister_Persist_DegradedModeStillExtractsButDoesNotPersist(t *testing.T) {
	gs := graphstore.NewFake()
	gs.Unavailable = true
	p := NewGraphPersister(gs)

	stats := p.Persist(context.Background(), sshAlert(), types.NewContextBundle(), "report", types.RiskHigh)
	assert.False(t, stats.Persisted)
}

func TestGraphPersister_Persist_IsIdempotent(t *testing.T) {
	gs := graphstore.NewFake()
	p := NewGraphPersister(gs)
	alert := sshAlert()
	bundle := types.NewContextBundle()

	first := p.Persist(context.Background(), alert, bundle, "report", types.RiskHigh)
	second := p.Persist(context.Background(), alert, bundle, "report", types.RiskHigh)

	assert.Greater(t, first.RelationshipsCreated, 0)
	assert.Equal(t, 0, second.RelationshipsCreated)
	assert.Equal(t, 0, second.EntitiesCreated)
}

func TestExtractThreatIndicators_FindsIPHashAndDomain(t *testing.T) {
	report := "Connection to 203.0.113.45 and evil.example.com, payload hash d41d8cd98f00b204e9800998ecf8427e"
	indicators := extractThreatIndicators(report)

	var kinds []string
	for _, ind := range indicators {
		kinds = append(kinds, ind.kind)
	}
	assert.Contains(t, kinds, "ip")
	assert.Contains(t, kinds, "hash")
	assert.Contains(t, kinds, "domain")
}

func TestGraphPersister_SimilarToEdge_RequiresThreshold(t *testing.T) {
	gs := graphstore.NewFake()
	p := NewGraphPersister(gs)
	bundle := types.NewContextBundle()
	bundle[types.SlotSimilarAlerts] = []types.EvidenceRecord{
		{Source: types.SlotSimilarAlerts, Score: 0.5, Fields: map[string]any{"id": "a2"}},
		{Source: types.SlotSimilarAlerts, Score: 0.9, Fields: map[string]any{"id": "a3"}},
	}
	// Both similar alerts were persisted earlier, so their nodes exist as edge endpoints.
	_, err := gs.Upsert(context.Background(), []types.Node{
		{Type: types.NodeAlert, Key: "a2"},
		{Type: types.NodeAlert, Key: "a3"},
	}, nil)
	require.NoError(t, err)

	p.Persist(context.Background(), sshAlert(), bundle, "report", types.RiskHigh)
	assert.False(t, gs.HasEdge(types.RelSimilarTo, types.NodeAlert, "a1", types.NodeAlert, "a2"))
	assert.True(t, gs.HasEdge(types.RelSimilarTo, types.NodeAlert, "a1", types.NodeAlert, "a3"))
}

func TestIsInternalIP(t *testing.T) {
	assert.True(t, isInternalIP("192.168.1.10"))
	assert.True(t, isInternalIP("127.0.0.1"))
	assert.False(t, isInternalIP("203.0.113.45"))
	assert.False(t, isInternalIP("not-an-ip"))
}
