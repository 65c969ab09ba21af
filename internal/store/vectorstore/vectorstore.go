// Package vectorstore implements the Vector Store Adapter (C2): k-NN
// search and document update against the SIEM's alert index, backed by
// either Postgres+pgvector or SQLite+FTS5.
package vectorstore

import (
	"context"
	"errors"
	"time"

	"github.com/scrypster/aegis/pkg/types"
)

// ErrUnavailable is returned by the in-memory Fake's methods when its
// Unavailable flag is set. The Postgres and SQLite backends do not return
// it; their failures surface as driver errors with added context.
var ErrUnavailable = errors.New("vector store unavailable")

// KNNFilter narrows a KNN call. ExcludeUnanalyzed is default
// filter ("excludes alerts lacking ai_analysis, so retrieved history is
// guaranteed to carry a prior report") and defaults true at the call sites
// that build this, not here — a filter with the zero value would silently
// include unanalyzed alerts, so callers set it explicitly.
type KNNFilter struct {
	ExcludeUnanalyzed bool
}

// KNNResult is one k-NN hit: the matched alert plus its cosine similarity.
type KNNResult struct {
	Alert      *types.Alert
	Similarity float64
}

// KeywordQuery parameterizes a keyword_time_window call: keywords matched
// against rule description and full_log, scoped to a host and a time
// window. The alert's data fields are not searched.
type KeywordQuery struct {
	Keywords []string
	Host     string
	From     time.Time
	To       time.Time
	Size     int
}

// KeywordResult is one keyword+time-window hit.
type KeywordResult struct {
	Alert     *types.Alert
	Score     float64
	Timestamp time.Time
}

// Store is the interface every vector store backend implements.
type Store interface {
	// ListUnprocessed returns up to limit alerts lacking ai_analysis,
	// oldest event time first (; P4).
	ListUnprocessed(ctx context.Context, limit int) ([]*types.Alert, error)

	// KNN returns the top-k nearest alerts by cosine similarity.
	KNN(ctx context.Context, vector []float32, k int, filter KNNFilter) ([]KNNResult, error)

	// KeywordTimeWindow executes a keyword search bounded to a time window,
	// best score first. Terms match exactly (full-text tokens in the SQL
	// backends, substrings in Fake); there is no fuzzy matching and no
	// per-field boosting.
	KeywordTimeWindow(ctx context.Context, q KeywordQuery) ([]KeywordResult, error)

	// UpdateEnrichment performs a partial, idempotent document update.
	UpdateEnrichment(ctx context.Context, alertID string, enrichment types.Enrichment) error

	// EnsureIndexTemplate is the hook for installing the alert_vector k-NN
	// index at runtime. Safe to call repeatedly. The Postgres and SQLite
	// backends do nothing here: Postgres creates its pgvector HNSW index when
	// the store is opened, and SQLite has no vector index.
	EnsureIndexTemplate(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
