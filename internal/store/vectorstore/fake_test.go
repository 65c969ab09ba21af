package vectorstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/scrypster/aegis/internal/store/vectorstore"
	"github.com/scrypster/aegis/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_ListUnprocessed_ExcludesAnalyzed(t *testing.T) {
	f := vectorstore.NewFake()
	f.Seed(
		&types.Alert{ID: "a1", Timestamp: time.Unix(100, 0)},
		&types.Alert{ID: "a2", Timestamp: time.Unix(50, 0), Enrichment: &types.Enrichment{Analysis: &types.Analysis{}}},
	)

	out, err := f.ListUnprocessed(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a1", out[0].ID)
}

func TestFake_KNN_RanksBySimilarity(t *testing.T) {
	f := vectorstore.NewFake()
	f.Seed(&types.Alert{ID: "near"}, &types.Alert{ID: "far"})
	require.NoError(t, f.UpdateEnrichment(context.Background(), "near", types.Enrichment{Vector: []float32{1, 0}}))
	require.NoError(t, f.UpdateEnrichment(context.Background(), "far", types.Enrichment{Vector: []float32{0, 1}}))

	out, err := f.KNN(context.Background(), []float32{1, 0}, 2, vectorstore.KNNFilter{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "near", out[0].Alert.ID)
}

func TestFake_KeywordTimeWindow_FiltersByWindowAndHost(t *testing.T) {
	f := vectorstore.NewFake()
	f.Seed(
		&types.Alert{ID: "in", Timestamp: time.Unix(100, 0), Agent: types.Agent{Name: "host1"}, FullLog: "ssh brute force attempt"},
		&types.Alert{ID: "out-of-window", Timestamp: time.Unix(1_000_000, 0), Agent: types.Agent{Name: "host1"}, FullLog: "ssh brute force attempt"},
		&types.Alert{ID: "wrong-host", Timestamp: time.Unix(100, 0), Agent: types.Agent{Name: "host2"}, FullLog: "ssh brute force attempt"},
	)

	out, err := f.KeywordTimeWindow(context.Background(), vectorstore.KeywordQuery{
		Keywords: []string{"brute", "force"},
		Host:     "host1",
		From:     time.Unix(0, 0),
		To:       time.Unix(200, 0),
		Size:     10,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "in", out[0].Alert.ID)
}

func TestFake_UpdateEnrichment_UnavailableWhenFlagged(t *testing.T) {
	f := vectorstore.NewFake()
	f.Unavailable = true
	err := f.UpdateEnrichment(context.Background(), "anything", types.Enrichment{})
	assert.ErrorIs(t, err, vectorstore.ErrUnavailable)
}
