// Package vectorstorefactory constructs the configured vectorstore.Store
// backend. It lives outside package vectorstore so that backend packages
// (postgres, sqlite) can depend on vectorstore's types without creating an
// import cycle through the factory.
package vectorstorefactory

import (
	"context"
	"fmt"

	"github.com/scrypster/aegis/internal/config"
	"github.com/scrypster/aegis/internal/store/vectorstore"
	pgstore "github.com/scrypster/aegis/internal/store/vectorstore/postgres"
	litestore "github.com/scrypster/aegis/internal/store/vectorstore/sqlite"
)

// New selects and opens the configured backend, the same construction-time
// provider-switch shape as llm.NewTextGenerator.
func New(ctx context.Context, cfg config.VectorStoreConfig) (vectorstore.Store, error) {
	switch cfg.Engine {
	case "postgres":
		store, err := pgstore.New(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite", "":
		store, err := litestore.New(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("vectorstore: unsupported engine %q", cfg.Engine)
	}
}
