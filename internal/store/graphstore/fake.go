package graphstore

import (
	"context"
	"sync"
	"time"

	"github.com/scrypster/aegis/pkg/types"
)

type fakeNodeKey struct {
	Type types.NodeType
	Key  string
}

type fakeEdgeKey struct {
	Type     types.RelationshipType
	FromType types.NodeType
	FromKey  string
	ToType   types.NodeType
	ToKey    string
}

// Fake is an in-memory Store for tests and for degraded-mode-free unit
// testing of C6/C9 without a live Neo4j instance.
type Fake struct {
	mu    sync.Mutex
	nodes map[fakeNodeKey]types.Node
	edges map[fakeEdgeKey]types.Relationship

	// Unavailable, when true, makes every method return ErrUnavailable,
	// exercising the degraded-mode paths in C6/C9.
	Unavailable bool

	// RunFunc, when set, lets a test script Run's return rows for a given
	// template without modeling real graph traversal.
	RunFunc func(ctx context.Context, query string, params map[string]any) ([]Row, error)
}

func NewFake() *Fake {
	return &Fake{nodes: make(map[fakeNodeKey]types.Node), edges: make(map[fakeEdgeKey]types.Relationship)}
}

func (f *Fake) EnsureSchema(ctx context.Context) error {
	if f.Unavailable {
		return ErrUnavailable
	}
	return nil
}

func (f *Fake) Run(ctx context.Context, query string, params map[string]any, timeout time.Duration) ([]Row, error) {
	if f.Unavailable {
		return nil, ErrUnavailable
	}
	if f.RunFunc != nil {
		return f.RunFunc(ctx, query, params)
	}
	return nil, nil
}

func (f *Fake) Upsert(ctx context.Context, nodes []types.Node, rels []types.Relationship) (types.UpsertSummary, error) {
	if f.Unavailable {
		return types.UpsertSummary{}, ErrUnavailable
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var summary types.UpsertSummary
	for _, n := range nodes {
		k := fakeNodeKey{Type: n.Type, Key: n.Key}
		if _, exists := f.nodes[k]; !exists {
			summary.NodesCreated++
		}
		f.nodes[k] = n
	}
	for _, r := range rels {
		fromK := fakeNodeKey{Type: r.From.Type, Key: r.From.Key}
		toK := fakeNodeKey{Type: r.To.Type, Key: r.To.Key}
		if _, ok := f.nodes[fromK]; !ok {
			summary.EdgesSkipped++
			continue
		}
		if _, ok := f.nodes[toK]; !ok {
			summary.EdgesSkipped++
			continue
		}
		ek := fakeEdgeKey{Type: r.Type, FromType: r.From.Type, FromKey: r.From.Key, ToType: r.To.Type, ToKey: r.To.Key}
		if _, exists := f.edges[ek]; !exists {
			summary.RelationshipsCreated++
		}
		f.edges[ek] = r
	}
	return summary, nil
}

func (f *Fake) Close() error { return nil }

// NodeCount reports how many distinct (type, key) nodes have been upserted,
// for test assertions.
func (f *Fake) NodeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.nodes)
}

// HasEdge reports whether a given edge has been upserted, for test assertions.
func (f *Fake) HasEdge(relType types.RelationshipType, fromType types.NodeType, fromKey string, toType types.NodeType, toKey string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.edges[fakeEdgeKey{Type: relType, FromType: fromType, FromKey: fromKey, ToType: toType, ToKey: toKey}]
	return ok
}
