package graphstore_test

import (
	"context"
	"testing"

	"github.com/scrypster/aegis/internal/store/graphstore"
	"github.com/scrypster/aegis/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_Upsert_CountsNewNodesAndEdges(t *testing.T) {
	f := graphstore.NewFake()
	alert := types.Node{Type: types.NodeAlert, Key: "a1"}
	host := types.Node{Type: types.NodeHost, Key: "h1"}

	summary, err := f.Upsert(context.Background(), []types.Node{alert, host}, []types.Relationship{
		{Type: types.RelTriggeredOn, From: alert, To: host},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.NodesCreated)
	assert.Equal(t, 1, summary.RelationshipsCreated)
	assert.Equal(t, 0, summary.EdgesSkipped)
	assert.True(t, f.HasEdge(types.RelTriggeredOn, types.NodeAlert, "a1", types.NodeHost, "h1"))
}

func TestFake_Upsert_IsIdempotent(t *testing.T) {
	f := graphstore.NewFake()
	alert := types.Node{Type: types.NodeAlert, Key: "a1"}
	host := types.Node{Type: types.NodeHost, Key: "h1"}
	rel := types.Relationship{Type: types.RelTriggeredOn, From: alert, To: host}

	_, err := f.Upsert(context.Background(), []types.Node{alert, host}, []types.Relationship{rel})
	require.NoError(t, err)

	summary, err := f.Upsert(context.Background(), []types.Node{alert, host}, []types.Relationship{rel})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.NodesCreated)
	assert.Equal(t, 0, summary.RelationshipsCreated)
	assert.Equal(t, 2, f.NodeCount())
}

func TestFake_Upsert_SkipsEdgeWithMissingEndpoint(t *testing.T) {
	f := graphstore.NewFake()
	alert := types.Node{Type: types.NodeAlert, Key: "a1"}
	missingHost := types.Node{Type: types.NodeHost, Key: "unregistered"}

	summary, err := f.Upsert(context.Background(), []types.Node{alert}, []types.Relationship{
		{Type: types.RelTriggeredOn, From: alert, To: missingHost},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.EdgesSkipped)
	assert.Equal(t, 0, summary.RelationshipsCreated)
}

func TestFake_Unavailable_ReturnsErrUnavailable(t *testing.T) {
	f := graphstore.NewFake()
	f.Unavailable = true

	_, err := f.Upsert(context.Background(), nil, nil)
	assert.ErrorIs(t, err, graphstore.ErrUnavailable)

	_, err = f.Run(context.Background(), "MATCH (n) RETURN n", nil, 0)
	assert.ErrorIs(t, err, graphstore.ErrUnavailable)
}
