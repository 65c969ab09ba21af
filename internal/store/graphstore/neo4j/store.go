// Package neo4j implements the graph store adapter against Neo4j. Session
// and transaction handling follow the neo4j-go-driver/v5 client pattern
// used throughout the retrieved example pack (yairfalse/tapio's
// pkg/integrations/neo4j client): one driver per process, one session per
// call, parameterized queries, write-transaction counters read off the
// result summary rather than re-queried.
package neo4j

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/scrypster/aegis/internal/store/graphstore"
	"github.com/scrypster/aegis/pkg/types"
)

// Config holds the connection parameters for the Neo4j driver.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Store implements graphstore.Store using the Neo4j Bolt driver.
type Store struct {
	driver neo4j.DriverWithContext
	cfg    Config
}

// New opens a driver and verifies connectivity. If connectivity cannot be
// verified, it returns graphstore.ErrUnavailable wrapping the underlying
// error rather than failing hard — degraded-mode contract
// starts at construction time, not just at query time.
func New(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: create driver: %v", graphstore.ErrUnavailable, err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("%w: verify connectivity: %v", graphstore.ErrUnavailable, err)
	}

	return &Store{driver: driver, cfg: cfg}, nil
}

func (s *Store) Close() error {
	return s.driver.Close(context.Background())
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	var statements []string
	for _, nt := range identityNodeTypes {
		statements = append(statements, fmt.Sprintf(
			"CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE n.key IS UNIQUE", string(nt)))
	}
	for _, idx := range secondaryIndexes {
		statements = append(statements, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS FOR (n:%s) ON (n.%s)", idx.label, idx.property))
	}

	for _, stmt := range statements {
		if err := s.write(ctx, func(tx neo4j.ManagedTransaction) error {
			_, err := tx.Run(ctx, stmt, nil)
			return err
		}); err != nil {
			return fmt.Errorf("graphstore/neo4j: ensure schema %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *Store) Run(ctx context.Context, query string, params map[string]any, timeout time.Duration) ([]graphstore.Row, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session := s.driver.NewSession(runCtx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.cfg.Database,
	})
	defer session.Close(runCtx)

	result, err := session.Run(runCtx, query, params)
	if err != nil {
		return nil, fmt.Errorf("%w: run: %v", graphstore.ErrUnavailable, err)
	}

	var rows []graphstore.Row
	for result.Next(runCtx) {
		record := result.Record()
		row := make(graphstore.Row, len(record.Keys))
		for i, key := range record.Keys {
			row[key] = record.Values[i]
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("graphstore/neo4j: result: %w", err)
	}
	return rows, nil
}

// Upsert MERGEs every node by (label, key), then MERGEs every relationship
// between endpoints that already exist. An endpoint missing from the graph
// (the MERGE ... MATCH for relationships finds nothing) is dropped and
// counted in EdgesSkipped, never raised as an error.
func (s *Store) Upsert(ctx context.Context, nodes []types.Node, rels []types.Relationship) (types.UpsertSummary, error) {
	var summary types.UpsertSummary

	err := s.write(ctx, func(tx neo4j.ManagedTransaction) error {
		for _, n := range nodes {
			created, err := upsertNode(ctx, tx, n)
			if err != nil {
				return err
			}
			if created {
				summary.NodesCreated++
			}
		}
		for _, r := range rels {
			created, skipped, err := upsertRelationship(ctx, tx, r)
			if err != nil {
				return err
			}
			if created {
				summary.RelationshipsCreated++
			}
			if skipped {
				summary.EdgesSkipped++
			}
		}
		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("%w: upsert: %v", graphstore.ErrUnavailable, err)
	}
	return summary, nil
}

func upsertNode(ctx context.Context, tx neo4j.ManagedTransaction, n types.Node) (created bool, err error) {
	query := fmt.Sprintf(`
		MERGE (n:%s {key: $key})
		ON CREATE SET n.created = true, n += $attrs
		ON MATCH SET n.created = false, n += $attrs
		RETURN n.created AS created`, string(n.Type))

	attrs := n.Attrs
	if attrs == nil {
		attrs = map[string]any{}
	}
	attrs = withSecondaryIndexAlias(n.Type, n.Key, attrs)

	result, err := tx.Run(ctx, query, map[string]any{"key": n.Key, "attrs": attrs})
	if err != nil {
		return false, err
	}
	record, err := result.Single(ctx)
	if err != nil {
		return false, err
	}
	createdVal, _ := record.Get("created")
	b, _ := createdVal.(bool)
	return b, nil
}

func upsertRelationship(ctx context.Context, tx neo4j.ManagedTransaction, r types.Relationship) (created, skipped bool, err error) {
	query := fmt.Sprintf(`
		MATCH (from:%s {key: $fromKey})
		MATCH (to:%s {key: $toKey})
		MERGE (from)-[rel:%s]->(to)
		ON CREATE SET rel.created = true, rel += $attrs
		ON MATCH SET rel.created = false, rel += $attrs
		RETURN rel.created AS created`, string(r.From.Type), string(r.To.Type), string(r.Type))

	attrs := r.Attrs
	if attrs == nil {
		attrs = map[string]any{}
	}

	result, err := tx.Run(ctx, query, map[string]any{"fromKey": r.From.Key, "toKey": r.To.Key, "attrs": attrs})
	if err != nil {
		return false, false, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return false, false, err
	}
	if len(records) == 0 {
		log.Printf("graphstore/neo4j: relationship %s skipped, endpoint missing: %s -> %s",
			r.Type, r.From.Key, r.To.Key)
		return false, true, nil
	}
	v, _ := records[0].Get("created")
	b, _ := v.(bool)
	return b, false, nil
}

// withSecondaryIndexAlias stamps the type-specific property name secondary
// indexes are declared on, so IPAddress/Host/User nodes carry both their
// generic identity key and the domain property the index targets.
func withSecondaryIndexAlias(t types.NodeType, key string, attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		out[k] = v
	}
	switch t {
	case types.NodeIPAddress:
		out["address"] = key
	case types.NodeHost:
		out["agent_id"] = key
	case types.NodeUser:
		out["username"] = key
	}
	return out
}

func (s *Store) write(ctx context.Context, fn func(neo4j.ManagedTransaction) error) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.cfg.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(tx)
	})
	return err
}
