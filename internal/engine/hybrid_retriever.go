package engine

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/scrypster/aegis/internal/config"
	"github.com/scrypster/aegis/internal/metrics"
	"github.com/scrypster/aegis/internal/store/graphstore"
	"github.com/scrypster/aegis/internal/store/vectorstore"
	"github.com/scrypster/aegis/pkg/types"
)

// HybridRetriever executes a Plan against the vector and graph stores and
// assembles a ContextBundle. Task dispatch is bounded-concurrency
// fan-out; every task's failure is isolated to its own slot rather than
// aborting the bundle.
type HybridRetriever struct {
	Vector vectorstore.Store
	Graph  graphstore.Store

	Retrieval config.RetrievalConfig
	Timeouts  config.TimeoutConfig

	// Metrics is optional; when set, task outcomes are recorded against it.
	Metrics *metrics.Registry
}

func NewHybridRetriever(vector vectorstore.Store, graph graphstore.Store, retrieval config.RetrievalConfig, timeouts config.TimeoutConfig) *HybridRetriever {
	return &HybridRetriever{Vector: vector, Graph: graph, Retrieval: retrieval, Timeouts: timeouts}
}

// Retrieve runs plan.Tasks concurrently, up to Retrieval.RetrievalConcurrency
// at a time, and returns a fully-populated context bundle. It never returns
// an error: every per-task failure is isolated to that task's slot.
func (r *HybridRetriever) Retrieve(ctx context.Context, alert *types.Alert, vector []float32, plan types.Plan) types.ContextBundle {
	tasks := make([]types.RetrievalTask, len(plan.Tasks))
	copy(tasks, plan.Tasks)
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Priority.Rank() < tasks[j].Priority.Rank() })

	bundle := types.NewContextBundle()
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.concurrency())

	sawKeywordTask := false
	for _, task := range tasks {
		if task.Kind == types.KindKeywordTimeWindow {
			sawKeywordTask = true
		}
	}

	for _, task := range tasks {
		if task.Kind == types.KindCypherTemplate && r.graphDegraded() {
			if r.Metrics != nil {
				r.Metrics.IncGraphSkipped()
			}
			continue
		}
		task := task
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			records, ok := r.runTask(ctx, alert, vector, task)
			if r.Metrics != nil {
				r.Metrics.IncRetrievalTask(ok && !anyFailed(records))
			}
			mu.Lock()
			defer mu.Unlock()
			if !ok {
				return
			}
			bundle[task.Slot] = append(bundle[task.Slot], r.cap(records)...)
		}()
	}
	wg.Wait()

	if bundle.GraphHitCount() < r.graphMinimum() && !sawKeywordTask {
		r.enrichWithDefaultKeywordTasks(ctx, alert, bundle)
	}

	return bundle
}

func (r *HybridRetriever) enrichWithDefaultKeywordTasks(ctx context.Context, alert *types.Alert, bundle types.ContextBundle) {
	w := timeWindow(alert.Timestamp, 2*time.Minute)
	defaults := []struct {
		slot    types.SlotName
		keyword string
	}{
		{types.SlotProcessData, "process"},
		{types.SlotHostMetrics, "cpu"},
		{types.SlotNetworkLogs, "network"},
	}
	for _, d := range defaults {
		task := keywordTask(types.PriorityLow, d.slot, alert, w, d.keyword)
		records, ok := r.runTask(ctx, alert, nil, task)
		if ok {
			bundle[d.slot] = append(bundle[d.slot], r.cap(records)...)
		}
	}
}

func (r *HybridRetriever) runTask(ctx context.Context, alert *types.Alert, vector []float32, task types.RetrievalTask) ([]types.EvidenceRecord, bool) {
	switch task.Kind {
	case types.KindVectorKNN:
		return r.runKNN(ctx, vector, task)
	case types.KindKeywordTimeWindow:
		return r.runKeyword(ctx, task)
	case types.KindCypherTemplate:
		return r.runTemplate(ctx, task)
	default:
		return nil, false
	}
}

func (r *HybridRetriever) runKNN(ctx context.Context, vector []float32, task types.RetrievalTask) ([]types.EvidenceRecord, bool) {
	if r.Vector == nil || len(vector) == 0 {
		return []types.EvidenceRecord{{Source: task.Slot, Failed: true}}, true
	}
	callCtx, cancel := context.WithTimeout(ctx, r.timeout(r.Timeouts.VectorStore))
	defer cancel()

	k := 5
	if kv, ok := task.Parameters["k"].(int); ok && kv > 0 {
		k = kv
	}
	results, err := r.Vector.KNN(callCtx, vector, k, vectorstore.KNNFilter{ExcludeUnanalyzed: true})
	if err != nil {
		log.Printf("engine/retriever: vector_knn failed: %v", err)
		return []types.EvidenceRecord{{Source: task.Slot, Failed: true}}, true
	}
	records := make([]types.EvidenceRecord, 0, len(results))
	for _, res := range results {
		records = append(records, types.EvidenceRecord{
			Source: task.Slot,
			Score:  res.Similarity,
			Time:   res.Alert.Timestamp,
			Fields: alertFields(res.Alert),
		})
	}
	return records, true
}

func (r *HybridRetriever) runKeyword(ctx context.Context, task types.RetrievalTask) ([]types.EvidenceRecord, bool) {
	if r.Vector == nil {
		return []types.EvidenceRecord{{Source: task.Slot, Failed: true}}, true
	}
	callCtx, cancel := context.WithTimeout(ctx, r.timeout(r.Timeouts.VectorStore))
	defer cancel()

	q := vectorstore.KeywordQuery{Size: r.resultCap()}
	if kws, ok := task.Parameters["keywords"].([]string); ok {
		q.Keywords = kws
	}
	if host, ok := task.Parameters["host"].(string); ok {
		q.Host = host
	}
	if from, ok := task.Parameters["from"].(time.Time); ok {
		q.From = from
	}
	if to, ok := task.Parameters["to"].(time.Time); ok {
		q.To = to
	}

	results, err := r.Vector.KeywordTimeWindow(callCtx, q)
	if err != nil {
		log.Printf("engine/retriever: keyword_time_window failed: %v", err)
		return []types.EvidenceRecord{{Source: task.Slot, Failed: true}}, true
	}
	records := make([]types.EvidenceRecord, 0, len(results))
	for _, res := range results {
		records = append(records, types.EvidenceRecord{
			Source: task.Slot,
			Score:  res.Score,
			Time:   res.Timestamp,
			Fields: alertFields(res.Alert),
		})
	}
	return records, true
}

func (r *HybridRetriever) runTemplate(ctx context.Context, task types.RetrievalTask) ([]types.EvidenceRecord, bool) {
	if r.Graph == nil {
		return nil, false
	}
	tmpl, ok := graphstore.Templates[task.Template]
	if !ok {
		log.Printf("engine/retriever: unknown template %q", task.Template)
		return []types.EvidenceRecord{{Source: task.Slot, Failed: true}}, true
	}

	timeout := r.timeout(r.Timeouts.GraphStorePerTpl)
	rows, err := r.Graph.Run(ctx, tmpl.Cypher, task.Parameters, timeout)
	if err != nil {
		if errors.Is(err, graphstore.ErrUnavailable) {
			return nil, false
		}
		log.Printf("engine/retriever: template %s failed: %v", task.Template, err)
		return []types.EvidenceRecord{{Source: task.Slot, Failed: true}}, true
	}

	records := make([]types.EvidenceRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, types.EvidenceRecord{
			Source:    task.Slot,
			GraphPath: rowToGraphPath(row),
		})
	}
	return records, true
}

func anyFailed(records []types.EvidenceRecord) bool {
	for _, r := range records {
		if r.Failed {
			return true
		}
	}
	return false
}

func (r *HybridRetriever) cap(records []types.EvidenceRecord) []types.EvidenceRecord {
	n := r.resultCap()
	if len(records) <= n {
		return records
	}
	return records[:n]
}

func (r *HybridRetriever) graphDegraded() bool {
	return r.Graph == nil
}

func (r *HybridRetriever) concurrency() int {
	if r.Retrieval.RetrievalConcurrency > 0 {
		return r.Retrieval.RetrievalConcurrency
	}
	return 8
}

func (r *HybridRetriever) resultCap() int {
	if r.Retrieval.ResultCap > 0 {
		return r.Retrieval.ResultCap
	}
	return 50
}

func (r *HybridRetriever) graphMinimum() int {
	if r.Retrieval.GraphMinimum > 0 {
		return r.Retrieval.GraphMinimum
	}
	return 10
}

func (r *HybridRetriever) timeout(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return 10 * time.Second
}

func alertFields(alert *types.Alert) map[string]any {
	if alert == nil {
		return nil
	}
	fields := map[string]any{
		"id":          alert.ID,
		"rule_id":     alert.Rule.ID,
		"description": alert.Rule.Description,
		"agent_id":    alert.Agent.ID,
		"agent_name":  alert.Agent.Name,
		"timestamp":   alert.Timestamp,
	}
	if ip := alert.SourceIP(); ip != "" {
		fields["srcip"] = ip
	}
	if ip := alert.DestIP(); ip != "" {
		fields["dstip"] = ip
	}
	return fields
}

// rowToGraphPath extracts a best-effort node/relationship chain out of one
// graph row. Templates project a mix of node and relationship variables
//; this collects every dbtype.Node and dbtype.Relationship value
// the row carries, in a deterministic key order, rather than assuming a
// fixed variable layout per template.
func rowToGraphPath(row graphstore.Row) *types.GraphPath {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	path := &types.GraphPath{}
	for _, k := range keys {
		switch v := row[k].(type) {
		case dbtype.Node:
			path.Nodes = append(path.Nodes, dbNodeToNode(v))
		case dbtype.Relationship:
			path.Rels = append(path.Rels, dbRelToRelationship(v))
		}
	}
	if len(path.Nodes) == 0 && len(path.Rels) == 0 {
		return nil
	}
	return path
}

func dbNodeToNode(n dbtype.Node) types.Node {
	out := types.Node{Attrs: map[string]any{}}
	if len(n.Labels) > 0 {
		out.Type = types.NodeType(n.Labels[0])
	}
	for k, v := range n.Props {
		if k == "key" {
			if s, ok := v.(string); ok {
				out.Key = s
			}
			continue
		}
		out.Attrs[k] = v
	}
	return out
}

func dbRelToRelationship(rel dbtype.Relationship) types.Relationship {
	out := types.Relationship{Type: types.RelationshipType(rel.Type), Attrs: map[string]any{}}
	for k, v := range rel.Props {
		out.Attrs[k] = v
	}
	return out
}
