// Package postgres implements the vector store adapter against PostgreSQL,
// using pgvector for k-NN search when the extension is available. Without
// it, KNN returns no results; vectors are still stored in the BYTEA column
// and keyword search still uses full-text search.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scrypster/aegis/internal/store/vectorstore"
	"github.com/scrypster/aegis/pkg/types"
)

// Store implements vectorstore.Store using PostgreSQL + pgvector.
type Store struct {
	db                *sql.DB
	pgvectorAvailable bool
}

// New opens a connection pool against dsn, applies the schema, and probes
// for the pgvector extension. Pool sizing (25 open / 5 idle / 5 minute
// lifetime) fits the same single-process polling workload this adapter
// serves.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/postgres: open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore/postgres: ping: %w", err)
	}

	s := &Store{db: db}

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore/postgres: apply schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Printf("vectorstore/postgres: pgvector extension not available, k-NN degraded: %v", err)
		s.pgvectorAvailable = false
	} else {
		s.pgvectorAvailable = true
	}

	if _, err := db.ExecContext(ctx, MigrationFTS); err != nil {
		log.Printf("vectorstore/postgres: failed to apply FTS migration: %v", err)
	}

	if s.pgvectorAvailable {
		if _, err := db.ExecContext(ctx, MigrationPgvector); err != nil {
			log.Printf("vectorstore/postgres: failed to apply pgvector migration: %v", err)
			s.pgvectorAvailable = false
		}
	}

	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// EnsureIndexTemplate is a no-op here: the mapping/index work happens at
// New() time via Schema/MigrationFTS/MigrationPgvector. It exists to satisfy
// vectorstore.Store for backends (like a document-store-backed one) where
// index installation genuinely happens at runtime rather than connect time.
func (s *Store) EnsureIndexTemplate(ctx context.Context) error {
	return nil
}

func (s *Store) ListUnprocessed(ctx context.Context, limit int) ([]*types.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_time, rule_id, rule_level, rule_description, agent_id, agent_name,
		       agent_ip, decoder, full_log, data
		FROM alerts
		WHERE ai_analysis IS NULL
		ORDER BY event_time ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/postgres: list unprocessed: %w", err)
	}
	defer rows.Close()

	var out []*types.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("vectorstore/postgres: scan unprocessed: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) KNN(ctx context.Context, vector []float32, k int, filter vectorstore.KNNFilter) ([]vectorstore.KNNResult, error) {
	if !s.pgvectorAvailable {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}
	vec := pgvector.NewVector(vector)

	query := `
		SELECT id, event_time, rule_id, rule_level, rule_description, agent_id, agent_name,
		       agent_ip, decoder, full_log, data, ai_analysis,
		       1 - (alert_vector_vec <=> $1) AS similarity
		FROM alerts
		WHERE alert_vector_vec IS NOT NULL
	`
	if filter.ExcludeUnanalyzed {
		query += " AND ai_analysis IS NOT NULL"
	}
	query += " ORDER BY alert_vector_vec <=> $1 LIMIT $2"

	rows, err := s.db.QueryContext(ctx, query, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/postgres: knn: %w", err)
	}
	defer rows.Close()

	var out []vectorstore.KNNResult
	for rows.Next() {
		var a types.Alert
		var rid, rlevel int
		var rdesc, aid, aname, aip, decoder, fullLog string
		var dataJSON, analysisJSON sql.NullString
		var ts time.Time
		var similarity float64

		if err := rows.Scan(&a.ID, &ts, &rid, &rlevel, &rdesc, &aid, &aname, &aip, &decoder, &fullLog,
			&dataJSON, &analysisJSON, &similarity); err != nil {
			return nil, fmt.Errorf("vectorstore/postgres: knn scan: %w", err)
		}
		fillAlert(&a, ts, rid, rlevel, rdesc, aid, aname, aip, decoder, fullLog, dataJSON, analysisJSON)
		out = append(out, vectorstore.KNNResult{Alert: &a, Similarity: similarity})
	}
	return out, rows.Err()
}

func (s *Store) KeywordTimeWindow(ctx context.Context, q vectorstore.KeywordQuery) ([]vectorstore.KeywordResult, error) {
	size := q.Size
	if size <= 0 {
		size = 20
	}
	terms := strings.Join(q.Keywords, " ")
	if terms == "" {
		return nil, nil
	}

	query := `
		SELECT id, event_time, rule_id, rule_level, rule_description, agent_id, agent_name,
		       agent_ip, decoder, full_log, data, ai_analysis,
		       ts_rank(search_vector, to_tsquery('english', $1)) AS score
		FROM alerts
		WHERE search_vector @@ to_tsquery('english', $1)
		  AND event_time BETWEEN $2 AND $3
	`
	args := []any{toTsQuery(terms), q.From, q.To}
	if q.Host != "" {
		query += " AND agent_name = $4"
		args = append(args, q.Host)
	}
	query += " ORDER BY score DESC, event_time DESC LIMIT $" + fmt.Sprint(len(args)+1)
	args = append(args, size)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/postgres: keyword time window: %w", err)
	}
	defer rows.Close()

	var out []vectorstore.KeywordResult
	for rows.Next() {
		var a types.Alert
		var rid, rlevel int
		var rdesc, aid, aname, aip, decoder, fullLog string
		var dataJSON, analysisJSON sql.NullString
		var ts time.Time
		var score float64

		if err := rows.Scan(&a.ID, &ts, &rid, &rlevel, &rdesc, &aid, &aname, &aip, &decoder, &fullLog,
			&dataJSON, &analysisJSON, &score); err != nil {
			return nil, fmt.Errorf("vectorstore/postgres: keyword scan: %w", err)
		}
		fillAlert(&a, ts, rid, rlevel, rdesc, aid, aname, aip, decoder, fullLog, dataJSON, analysisJSON)
		out = append(out, vectorstore.KeywordResult{Alert: &a, Score: score, Timestamp: ts})
	}
	return out, rows.Err()
}

func (s *Store) UpdateEnrichment(ctx context.Context, alertID string, enrichment types.Enrichment) error {
	var analysisJSON []byte
	var err error
	if enrichment.Analysis != nil {
		analysisJSON, err = json.Marshal(enrichment.Analysis)
		if err != nil {
			return fmt.Errorf("vectorstore/postgres: marshal analysis: %w", err)
		}
	}
	vecBytes, err := serializeVector(enrichment.Vector)
	if err != nil {
		return fmt.Errorf("vectorstore/postgres: serialize vector: %w", err)
	}

	if s.pgvectorAvailable && len(enrichment.Vector) > 0 {
		vec := pgvector.NewVector(enrichment.Vector)
		_, err = s.db.ExecContext(ctx, `
			UPDATE alerts SET alert_vector = $1, alert_vector_vec = $2, ai_analysis = $3, updated_at = NOW()
			WHERE id = $4
		`, vecBytes, vec, nullableJSON(analysisJSON), alertID)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE alerts SET alert_vector = $1, ai_analysis = $2, updated_at = NOW()
			WHERE id = $3
		`, vecBytes, nullableJSON(analysisJSON), alertID)
	}
	if err != nil {
		return fmt.Errorf("vectorstore/postgres: update enrichment: %w", err)
	}
	return nil
}

// Insert adds a raw alert (used by ingestion/tests; the scheduler polls
// alerts already present in this table, it does not create them).
func (s *Store) Insert(ctx context.Context, a *types.Alert) error {
	dataJSON, err := json.Marshal(a.Data)
	if err != nil {
		return fmt.Errorf("vectorstore/postgres: marshal data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, event_time, rule_id, rule_level, rule_description, agent_id,
			agent_name, agent_ip, decoder, full_log, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, a.Timestamp, a.Rule.ID, a.Rule.Level, a.Rule.Description, a.Agent.ID, a.Agent.Name,
		a.Agent.IP, a.Decoder, a.FullLog, nullableJSON(dataJSON))
	if err != nil {
		return fmt.Errorf("vectorstore/postgres: insert alert: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(rows *sql.Rows) (*types.Alert, error) {
	var a types.Alert
	var rid, rlevel int
	var rdesc, aid, aname, aip, decoder, fullLog string
	var dataJSON sql.NullString
	var ts time.Time

	if err := rows.Scan(&a.ID, &ts, &rid, &rlevel, &rdesc, &aid, &aname, &aip, &decoder, &fullLog, &dataJSON); err != nil {
		return nil, err
	}
	fillAlert(&a, ts, rid, rlevel, rdesc, aid, aname, aip, decoder, fullLog, dataJSON, sql.NullString{})
	return &a, nil
}

func fillAlert(a *types.Alert, ts time.Time, rid, rlevel int, rdesc, aid, aname, aip, decoder, fullLog string,
	dataJSON, analysisJSON sql.NullString) {
	a.Timestamp = ts
	a.Rule = types.Rule{ID: rid, Level: rlevel, Description: rdesc}
	a.Agent = types.Agent{ID: aid, Name: aname, IP: aip}
	a.Decoder = decoder
	a.FullLog = fullLog
	if dataJSON.Valid && dataJSON.String != "" {
		_ = json.Unmarshal([]byte(dataJSON.String), &a.Data)
	}
	if analysisJSON.Valid && analysisJSON.String != "" {
		var analysis types.Analysis
		if err := json.Unmarshal([]byte(analysisJSON.String), &analysis); err == nil {
			a.Enrichment = &types.Enrichment{Analysis: &analysis}
		}
	}
}

func nullableJSON(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func serializeVector(v []float32) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return json.Marshal(v)
}

// toTsQuery joins free-form keywords with "|" so any match ranks, the same
// permissive-OR intent as sanitiseFTSQuery applies for SQLite FTS5.
func toTsQuery(terms string) string {
	fields := strings.Fields(terms)
	for i, f := range fields {
		fields[i] = sanitizeTsTerm(f)
	}
	return strings.Join(fields, " | ")
}

func sanitizeTsTerm(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '&' || r == '|' || r == '!' || r == '(' || r == ')' || r == ':' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
