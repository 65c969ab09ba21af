// Package graphstorefactory constructs the configured graphstore.Store
// backend. It lives outside package graphstore so that backend packages
// (like neo4j) can depend on graphstore's types without creating an import
// cycle through the factory.
package graphstorefactory

import (
	"context"

	"github.com/scrypster/aegis/internal/config"
	"github.com/scrypster/aegis/internal/store/graphstore"
	neo4jstore "github.com/scrypster/aegis/internal/store/graphstore/neo4j"
)

// New opens the configured graph backend. An empty URI means no graph store
// is configured; callers treat this the same as ErrUnavailable — C6/C9 run
// in degraded mode from process start rather than failing to boot.
func New(ctx context.Context, cfg config.GraphStoreConfig) (graphstore.Store, error) {
	if cfg.URI == "" {
		return nil, graphstore.ErrUnavailable
	}
	store, err := neo4jstore.New(ctx, neo4jstore.Config{
		URI:      cfg.URI,
		Username: cfg.Username,
		Password: cfg.Password,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}
