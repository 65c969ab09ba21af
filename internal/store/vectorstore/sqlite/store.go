// Package sqlite implements the vector store adapter against SQLite +
// FTS5, for single-node deployments without a PostgreSQL/pgvector
// instance. k-NN has no native index here: embeddings are loaded into Go
// memory and ranked by cosine similarity, the same degradation the
// teacher's sqlite.MemoryStore.VectorSearch documents and caps at
// vectorSearchMaxCandidates.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/url"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scrypster/aegis/internal/store/vectorstore"
	"github.com/scrypster/aegis/pkg/types"
)

// vectorSearchMaxCandidates bounds how many embeddings KNN loads into
// memory per call, most-recent first.
const vectorSearchMaxCandidates = 10_000

// Store implements vectorstore.Store using SQLite + FTS5.
type Store struct {
	db *sql.DB
}

// New opens dsn with WAL self-healing: a stale lock from an unclean
// shutdown is detected and cleared rather than left to fail every open.
func New(dsn string) (*Store, error) {
	store, err := open(dsn)
	if err == nil {
		return store, nil
	}
	if !isRecoverableWALError(err) {
		return nil, err
	}
	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || dbPath == ":memory:" || !isWALStale(dbPath) {
		return nil, err
	}
	removeStaleWAL(dbPath)

	store, retryErr := open(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("vectorstore/sqlite: failed after WAL recovery: %w (original: %v)", retryErr, err)
	}
	log.Printf("vectorstore/sqlite: recovered from stale WAL files for %s", dbPath)
	return store, nil
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("vectorstore/sqlite: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore/sqlite: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) EnsureIndexTemplate(ctx context.Context) error { return nil }

func (s *Store) ListUnprocessed(ctx context.Context, limit int) ([]*types.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_time, rule_id, rule_level, rule_description, agent_id, agent_name,
		       agent_ip, decoder, full_log, data
		FROM alerts WHERE ai_analysis IS NULL ORDER BY event_time ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/sqlite: list unprocessed: %w", err)
	}
	defer rows.Close()

	var out []*types.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("vectorstore/sqlite: scan unprocessed: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) KNN(ctx context.Context, vector []float32, k int, filter vectorstore.KNNFilter) ([]vectorstore.KNNResult, error) {
	if k <= 0 {
		k = 10
	}
	query := `
		SELECT id, event_time, rule_id, rule_level, rule_description, agent_id, agent_name,
		       agent_ip, decoder, full_log, data, ai_analysis, alert_vector
		FROM alerts WHERE alert_vector IS NOT NULL
	`
	if filter.ExcludeUnanalyzed {
		query += " AND ai_analysis IS NOT NULL"
	}
	query += " ORDER BY event_time DESC LIMIT ?"

	rows, err := s.db.QueryContext(ctx, query, vectorSearchMaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/sqlite: knn candidates: %w", err)
	}
	defer rows.Close()

	type scored struct {
		alert *types.Alert
		sim   float64
	}
	var candidates []scored

	for rows.Next() {
		var a types.Alert
		var rid, rlevel int
		var rdesc, aid, aname, aip, decoder, fullLog string
		var dataJSON, analysisJSON sql.NullString
		var vecBytes []byte
		var ts time.Time

		if err := rows.Scan(&a.ID, &ts, &rid, &rlevel, &rdesc, &aid, &aname, &aip, &decoder, &fullLog,
			&dataJSON, &analysisJSON, &vecBytes); err != nil {
			return nil, fmt.Errorf("vectorstore/sqlite: knn scan: %w", err)
		}
		fillAlert(&a, ts, rid, rlevel, rdesc, aid, aname, aip, decoder, fullLog, dataJSON, analysisJSON)

		var stored []float32
		if err := json.Unmarshal(vecBytes, &stored); err != nil {
			continue
		}
		candidates = append(candidates, scored{alert: &a, sim: cosineSimilarity(vector, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].sim > candidates[j].sim })
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]vectorstore.KNNResult, len(candidates))
	for i, c := range candidates {
		out[i] = vectorstore.KNNResult{Alert: c.alert, Similarity: c.sim}
	}
	return out, nil
}

func (s *Store) KeywordTimeWindow(ctx context.Context, q vectorstore.KeywordQuery) ([]vectorstore.KeywordResult, error) {
	size := q.Size
	if size <= 0 {
		size = 20
	}
	ftsQuery := sanitiseFTSQuery(strings.Join(q.Keywords, " "))
	if ftsQuery == "" {
		return nil, nil
	}

	query := `
		SELECT a.id, a.event_time, a.rule_id, a.rule_level, a.rule_description, a.agent_id, a.agent_name,
		       a.agent_ip, a.decoder, a.full_log, a.data, a.ai_analysis, rank
		FROM alerts_fts fts
		JOIN alerts a ON a.rowid = fts.rowid
		WHERE alerts_fts MATCH ? AND a.event_time BETWEEN ? AND ?
	`
	args := []any{ftsQuery, q.From.Format(time.RFC3339), q.To.Format(time.RFC3339)}
	if q.Host != "" {
		query += " AND a.agent_name = ?"
		args = append(args, q.Host)
	}
	query += " ORDER BY rank LIMIT ?"
	args = append(args, size)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/sqlite: keyword time window MATCH %q: %w", ftsQuery, err)
	}
	defer rows.Close()

	var out []vectorstore.KeywordResult
	for rows.Next() {
		var a types.Alert
		var rid, rlevel int
		var rdesc, aid, aname, aip, decoder, fullLog string
		var dataJSON, analysisJSON sql.NullString
		var ts time.Time
		var rank float64

		if err := rows.Scan(&a.ID, &ts, &rid, &rlevel, &rdesc, &aid, &aname, &aip, &decoder, &fullLog,
			&dataJSON, &analysisJSON, &rank); err != nil {
			return nil, fmt.Errorf("vectorstore/sqlite: keyword scan: %w", err)
		}
		fillAlert(&a, ts, rid, rlevel, rdesc, aid, aname, aip, decoder, fullLog, dataJSON, analysisJSON)
		// FTS5 rank is negative; more negative is a better match, so invert
		// to give the same higher-is-better convention as the postgres path.
		out = append(out, vectorstore.KeywordResult{Alert: &a, Score: -rank, Timestamp: ts})
	}
	return out, rows.Err()
}

func (s *Store) UpdateEnrichment(ctx context.Context, alertID string, enrichment types.Enrichment) error {
	var analysisJSON, vecJSON []byte
	var err error
	if enrichment.Analysis != nil {
		analysisJSON, err = json.Marshal(enrichment.Analysis)
		if err != nil {
			return fmt.Errorf("vectorstore/sqlite: marshal analysis: %w", err)
		}
	}
	if len(enrichment.Vector) > 0 {
		vecJSON, err = json.Marshal(enrichment.Vector)
		if err != nil {
			return fmt.Errorf("vectorstore/sqlite: marshal vector: %w", err)
		}
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE alerts SET alert_vector = ?, ai_analysis = ?, updated_at = datetime('now') WHERE id = ?
	`, nullableBytes(vecJSON), nullableBytes(analysisJSON), alertID)
	if err != nil {
		return fmt.Errorf("vectorstore/sqlite: update enrichment: %w", err)
	}
	return nil
}

// Insert adds a raw alert; used by ingestion paths and tests.
func (s *Store) Insert(ctx context.Context, a *types.Alert) error {
	dataJSON, err := json.Marshal(a.Data)
	if err != nil {
		return fmt.Errorf("vectorstore/sqlite: marshal data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO alerts (id, event_time, rule_id, rule_level, rule_description, agent_id,
			agent_name, agent_ip, decoder, full_log, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Timestamp.Format(time.RFC3339), a.Rule.ID, a.Rule.Level, a.Rule.Description, a.Agent.ID,
		a.Agent.Name, a.Agent.IP, a.Decoder, a.FullLog, nullableBytes(dataJSON))
	if err != nil {
		return fmt.Errorf("vectorstore/sqlite: insert alert: %w", err)
	}
	return nil
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

func nullableBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// sanitiseFTSQuery converts free-form input into a safe FTS5 query of quoted
// terms joined with OR, so any term match ranks, mirroring toTsQuery's permissive-OR intent
// for Postgres full-text search.
func sanitiseFTSQuery(query string) string {
	replacer := strings.NewReplacer(`"`, " ", `'`, " ", `(`, " ", `)`, " ", `*`, " ", `-`, " ", `^`, " ", `?`, " ", `:`, " ")
	cleaned := replacer.Replace(query)
	words := strings.Fields(strings.ToLower(cleaned))
	if len(words) == 0 {
		return ""
	}
	for i, w := range words {
		words[i] = `"` + w + `"`
	}
	return strings.Join(words, " OR ")
}

func dbPathFromDSN(dsn string) string {
	if dsn == ":memory:" || dsn == "" {
		return ""
	}
	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == ":memory:" || path == "" {
			return ""
		}
		return path
	}
	return dsn
}

func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "disk I/O error") || strings.Contains(msg, "database is locked")
}

func isWALStale(dbPath string) bool {
	shmPath := dbPath + "-shm"
	walPath := dbPath + "-wal"
	if !fileExists(shmPath) && !fileExists(walPath) {
		return false
	}
	lsofPath, err := exec.LookPath("lsof")
	if err != nil {
		return false
	}
	cmd := exec.Command(lsofPath, "-t", dbPath, shmPath, walPath)
	output, err := cmd.Output()
	if err != nil {
		return true
	}
	return strings.TrimSpace(string(output)) == ""
}

func removeStaleWAL(dbPath string) {
	for _, suffix := range []string{"-shm", "-wal"} {
		path := dbPath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("vectorstore/sqlite: failed to remove stale %s: %v", path, err)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
