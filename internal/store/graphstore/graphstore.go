// Package graphstore implements the Graph Store Adapter (C3): schema
// management, parameterized Cypher execution, and entity/relationship
// upsert against the threat knowledge graph.
package graphstore

import (
	"context"
	"errors"
	"time"

	"github.com/scrypster/aegis/pkg/types"
)

// ErrUnavailable marks degraded mode: the driver could not be reached at
// startup or a query could not be executed. Callers (C6, C9) treat this as
// a signal to skip graph-sourced work, never as a fatal error.
var ErrUnavailable = errors.New("graph store unavailable")

// Row is one result row from Run, keyed by the Cypher RETURN alias.
type Row map[string]any

// Store is the interface every graph store backend implements.
type Store interface {
	// EnsureSchema creates uniqueness constraints for each node identity key
	// and indexes for Alert.timestamp, IPAddress.address, Host.agent_id,
	// User.username when missing. Safe to call repeatedly.
	EnsureSchema(ctx context.Context) error

	// Run executes a parameterized query and returns its rows. Parameters
	// are always bound, never interpolated as strings.
	Run(ctx context.Context, query string, params map[string]any, timeout time.Duration) ([]Row, error)

	// Upsert applies MERGE-style semantics for every node and edge in nodes
	// and rels, returning how many were newly created. Edges whose
	// endpoints could not be merged are dropped and counted, never fatal.
	Upsert(ctx context.Context, nodes []types.Node, rels []types.Relationship) (types.UpsertSummary, error)

	// Close releases any resources held by the store.
	Close() error
}

// TemplateQuery pairs the raw Cypher text of a registered template with the
// parameter names it expects, so callers (the Decision Engine, the Hybrid
// Retriever) can validate bindings before Run.
type TemplateQuery struct {
	Cypher string
	Params []string
}
