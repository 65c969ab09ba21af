package neo4j

import "github.com/scrypster/aegis/pkg/types"

// identityNodeTypes lists the node types that get a uniqueness constraint
// on their identity key. Every node upserted by this package carries both a
// type label and a key property, so the constraint is always on "key" — the
// distinction by type lives in the label, not the property name.
var identityNodeTypes = []types.NodeType{
	types.NodeAlert, types.NodeHost, types.NodeIPAddress, types.NodeUser,
	types.NodeProcess, types.NodeFile, types.NodeRule, types.NodeThreatIndicator,
}

// secondaryIndexes lists the (label, property) pairs that get an explicit
// index beyond the identity-key constraints.
var secondaryIndexes = []struct {
	label, property string
}{
	{"Alert", "timestamp"},
	{"IPAddress", "address"},
	{"Host", "agent_id"},
	{"User", "username"},
}
