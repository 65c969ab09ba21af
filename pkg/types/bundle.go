package types

import "time"

// SlotName is the closed set of context-bundle slots. A typed enum in place
// of a duck-typed "dict with sometimes-present slots" means an unknown slot
// is a programming error, not a runtime possibility.
type SlotName string

const (
	SlotSimilarAlerts     SlotName = "similar_alerts"
	SlotAttackPaths       SlotName = "attack_paths"
	SlotLateralMovement   SlotName = "lateral_movement"
	SlotTemporalSequences SlotName = "temporal_sequences"
	SlotIPReputation      SlotName = "ip_reputation"
	SlotUserBehavior      SlotName = "user_behavior"
	SlotProcessChains     SlotName = "process_chains"
	SlotFileInteractions  SlotName = "file_interactions"
	SlotNetworkTopology   SlotName = "network_topology"
	SlotThreatLandscape   SlotName = "threat_landscape"
	SlotHostMetrics       SlotName = "host_metrics"
	SlotProcessData       SlotName = "process_data"
	SlotNetworkLogs       SlotName = "network_logs"
	SlotProtocolLogs      SlotName = "protocol_logs"
)

// GraphSlots lists the slots sourced from cypher_template tasks — the set
// C7 checks to decide graph_present, and the set C6's graph_hit_count sums
// over.
var GraphSlots = []SlotName{
	SlotAttackPaths, SlotLateralMovement, SlotTemporalSequences,
	SlotIPReputation, SlotUserBehavior, SlotProcessChains,
	SlotFileInteractions, SlotNetworkTopology, SlotThreatLandscape,
}

// CypherPathSlots lists the slots whose presence flips graph_present true:
// any of {attack_paths, lateral_movement, temporal_sequences,
// process_chains} non-empty.
var CypherPathSlots = []SlotName{
	SlotAttackPaths, SlotLateralMovement, SlotTemporalSequences, SlotProcessChains,
}

// EvidenceRecord is one piece of evidence in a context-bundle slot. Not
// every field applies to every source: Score is set for vector/graph
// records, GraphPath only for cypher_template records, Fields carries
// whatever the underlying source's document/row looked like.
type EvidenceRecord struct {
	Source SlotName
	Score  float64
	Time   time.Time
	Fields map[string]any

	// GraphPath holds one traversal result when this record came from a
	// cypher_template task: a flat chain of nodes and the relationships
	// connecting them, in traversal order. The context formatter (C7)
	// renders this into Cypher-path notation.
	GraphPath *GraphPath

	// Failed marks a slot-local failure the retriever isolated rather than
	// propagated: the record is a placeholder, not
	// evidence.
	Failed bool
}

// GraphPath is one path-shaped traversal result: a sequence of nodes joined
// by the relationships between consecutive nodes (len(Rels) ==
// len(Nodes)-1).
type GraphPath struct {
	Nodes []Node
	Rels  []Relationship
}

// ContextBundle is the in-memory, per-alert map from slot to the evidence
// gathered for it. Always non-nil and always has every slot key present
// (possibly with an empty/failed slice) after C6 returns — callers never
// need a presence check, only a length/Failed check.
type ContextBundle map[SlotName][]EvidenceRecord

// NewContextBundle returns a bundle with every recognized slot
// pre-populated as empty, matching the "typed map, not a free-form dict"
// contract.
func NewContextBundle() ContextBundle {
	b := make(ContextBundle, 14)
	for _, s := range []SlotName{
		SlotSimilarAlerts, SlotAttackPaths, SlotLateralMovement, SlotTemporalSequences,
		SlotIPReputation, SlotUserBehavior, SlotProcessChains, SlotFileInteractions,
		SlotNetworkTopology, SlotThreatLandscape, SlotHostMetrics, SlotProcessData,
		SlotNetworkLogs, SlotProtocolLogs,
	} {
		b[s] = nil
	}
	return b
}

// GraphHitCount sums the record count across every graph-sourced slot
//.
func (b ContextBundle) GraphHitCount() int {
	n := 0
	for _, s := range GraphSlots {
		n += len(b[s])
	}
	return n
}

// GraphPresent reports whether any of the Cypher-path-rendering slots has
// at least one record (graph_present rule).
func (b ContextBundle) GraphPresent() bool {
	for _, s := range CypherPathSlots {
		if len(b[s]) > 0 {
			return true
		}
	}
	return false
}

// TaskKind is the closed set of retrieval task kinds.
type TaskKind string

const (
	KindVectorKNN           TaskKind = "vector_knn"
	KindKeywordTimeWindow   TaskKind = "keyword_time_window"
	KindCypherTemplate      TaskKind = "cypher_template"
)

// Priority is the closed set of task priorities.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank returns the numeric priority rank retrieval ordering sorts on:
// critical=0, high=1, medium=2, low=3.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// RetrievalTask is one unit of the plan C5 produces and C6 executes.
// Parameters is intentionally map[string]any rather than a per-kind
// struct: the set of cypher templates is open-ended (registered by name)
// and each one binds a different parameter shape.
type RetrievalTask struct {
	Kind       TaskKind
	Priority   Priority
	Slot       SlotName
	Template   string // set when Kind == KindCypherTemplate; the registry name
	Parameters map[string]any
}

// Plan is the ordered list of retrieval tasks the decision engine produces
// for one alert.
type Plan struct {
	Tasks []RetrievalTask
}

// CountsByKind returns how many tasks of each kind the plan carries, used
// to populate Analysis.PlanSummary.
func (p Plan) CountsByKind() map[string]int {
	counts := make(map[string]int)
	for _, t := range p.Tasks {
		counts[string(t.Kind)]++
	}
	return counts
}

// Kinds returns the distinct task kinds present in the plan, in first-seen
// order.
func (p Plan) Kinds() []string {
	seen := make(map[TaskKind]bool)
	var kinds []string
	for _, t := range p.Tasks {
		if !seen[t.Kind] {
			seen[t.Kind] = true
			kinds = append(kinds, string(t.Kind))
		}
	}
	return kinds
}
