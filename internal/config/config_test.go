package config_test

import (
	"testing"

	"github.com/scrypster/aegis/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoad_DefaultsScheduler(t *testing.T) {
	cfg := config.Load()
	assert.Equal(t, 60, cfg.Scheduler.IntervalSeconds)
	assert.Equal(t, 10, cfg.Scheduler.BatchSize)
	assert.Equal(t, 5, cfg.Scheduler.AlertConcurrency)
}

func TestLoad_DefaultsRetrieval(t *testing.T) {
	cfg := config.Load()
	assert.Equal(t, 5, cfg.Retrieval.K)
	assert.Equal(t, 50, cfg.Retrieval.ResultCap)
	assert.Equal(t, 10, cfg.Retrieval.GraphMinimum)
	assert.Equal(t, 1800, cfg.Retrieval.CorrelationWindowSeconds)
	assert.InDelta(t, 0.7, cfg.Retrieval.SimilarityThreshold, 1e-9)
	assert.Equal(t, 8, cfg.Retrieval.RetrievalConcurrency)
}

func TestLoad_CanOverrideViaEnv(t *testing.T) {
	t.Setenv("AEGIS_SCHEDULER_BATCH_SIZE", "25")
	t.Setenv("AEGIS_RETRIEVAL_SIMILARITY_THRESHOLD", "0.85")

	cfg := config.Load()
	assert.Equal(t, 25, cfg.Scheduler.BatchSize)
	assert.InDelta(t, 0.85, cfg.Retrieval.SimilarityThreshold, 1e-9)
}

func TestLoad_InvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("AEGIS_SCHEDULER_BATCH_SIZE", "not-a-number")
	cfg := config.Load()
	assert.Equal(t, 10, cfg.Scheduler.BatchSize)
}

func TestLoad_GraphStoreDefaultsToEmptyURI(t *testing.T) {
	cfg := config.Load()
	assert.Empty(t, cfg.GraphStore.URI, "empty URI signals degraded-mode startup")
}
