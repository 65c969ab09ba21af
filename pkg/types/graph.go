package types

// NodeType is the closed set of node labels the threat knowledge graph
// recognizes, a closed enum rather than a free-form string since the graph
// schema here is fixed by the domain rather than LLM-discovered.
type NodeType string

const (
	NodeAlert           NodeType = "Alert"
	NodeHost            NodeType = "Host"
	NodeIPAddress       NodeType = "IPAddress"
	NodeUser            NodeType = "User"
	NodeProcess         NodeType = "Process"
	NodeFile            NodeType = "File"
	NodeRule            NodeType = "Rule"
	NodeThreatIndicator NodeType = "ThreatIndicator"
)

// RelationshipType is the closed set of edge labels the graph recognizes
//.
type RelationshipType string

const (
	RelTriggeredOn      RelationshipType = "TRIGGERED_ON"
	RelHasSourceIP      RelationshipType = "HAS_SOURCE_IP"
	RelHasDestIP        RelationshipType = "HAS_DEST_IP"
	RelInvolvesUser     RelationshipType = "INVOLVES_USER"
	RelInvolvesProcess  RelationshipType = "INVOLVES_PROCESS"
	RelAccessesFile     RelationshipType = "ACCESSES_FILE"
	RelMatchedRule      RelationshipType = "MATCHED_RULE"
	RelSimilarTo        RelationshipType = "SIMILAR_TO"
	RelPrecedes         RelationshipType = "PRECEDES"
	RelSpawnedBy        RelationshipType = "SPAWNED_BY"
	RelLoggedInto       RelationshipType = "LOGGED_INTO"
	RelCommunicatesWith RelationshipType = "COMMUNICATES_WITH"
	RelPartOf           RelationshipType = "PART_OF"
)

// Node is one graph node awaiting upsert. Identity is (Type, Key): the
// tuple the graph store MERGEs on. Attrs accumulates monotonically for
// every node type except Alert, whose attributes are fixed at creation
// except for the risk_level/indicator fields promoted from the report
// ( invariants).
type Node struct {
	Type  NodeType
	Key   string
	Attrs map[string]any
}

// Relationship is one graph edge awaiting upsert. Both endpoints are
// referenced by identity (Type, Key) rather than by an in-memory pointer —
// the "cyclic data lives only in the external graph store" redesign flag
// — so relationships serialize and compare without aliasing.
type Relationship struct {
	Type  RelationshipType
	From  Node
	To    Node
	Attrs map[string]any
}

// UpsertSummary is what the graph store returns from Upsert:
// how many nodes and relationships were actually created (MERGE found an
// existing node/edge, so repeat upserts report 0 new), plus how many edges
// were dropped because an endpoint could not be merged.
type UpsertSummary struct {
	NodesCreated         int
	RelationshipsCreated int
	EdgesSkipped         int
}
