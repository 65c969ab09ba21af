package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scrypster/aegis/internal/llm"
	"github.com/scrypster/aegis/pkg/types"
)

const (
	recordCharCap    = 400
	graphBlockCap    = 4000
	degenerateCap    = 10
	truncationMarker = "... [truncated]"
)

// FormattedContext is what C7 hands to C8: the rendered slot strings plus
// the graph_present flag that selects which prompt template to use.
type FormattedContext struct {
	AlertSummary    string
	GraphPresent    bool
	GraphContext    string
	SimilarAlerts   string
	SystemMetrics   string
	ProcessContext  string
	NetworkContext  string
	AdditionalCtx   string
}

// FormatContext renders a context bundle. graph_present is true
// when any of the Cypher-path slots (attack_paths, lateral_movement,
// temporal_sequences, process_chains) is non-empty; when it is false but the
// bundle still contains records carrying IP-shaped fields, a degenerate
// Cypher-path fallback is synthesized so the LLM still sees some structure.
func FormatContext(alertSummary string, bundle types.ContextBundle) FormattedContext {
	fc := FormattedContext{AlertSummary: alertSummary}
	fc.GraphPresent = bundle.GraphPresent()

	if fc.GraphPresent {
		fc.GraphContext = renderGraphBlock(bundle)
	} else if lines := degenerateGraphLines(bundle); len(lines) > 0 {
		fc.GraphContext = strings.Join(lines, "\n")
	}

	fc.SimilarAlerts = renderPlainSlot("Similar prior alerts", bundle[types.SlotSimilarAlerts])
	fc.SystemMetrics = renderPlainSlot("System metrics", bundle[types.SlotHostMetrics])
	fc.ProcessContext = renderPlainSlot("Process activity", bundle[types.SlotProcessData])
	fc.NetworkContext = renderPlainSlot("Network activity", bundle[types.SlotNetworkLogs], bundle[types.SlotNetworkTopology])
	fc.AdditionalCtx = renderPlainSlot("User behavior", bundle[types.SlotUserBehavior], bundle[types.SlotIPReputation], bundle[types.SlotThreatLandscape])

	return fc
}

func renderPlainSlot(header string, groups ...[]types.EvidenceRecord) string {
	var b strings.Builder
	count := 0
	for _, records := range groups {
		for _, r := range records {
			if r.Failed {
				continue
			}
			count++
		}
	}
	if count == 0 {
		return ""
	}
	fmt.Fprintf(&b, "%s:\n", header)
	for _, records := range groups {
		for _, r := range records {
			if r.Failed {
				continue
			}
			line := renderRecordLine(r)
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderRecordLine(r types.EvidenceRecord) string {
	text := fieldSummary(r.Fields)
	text = llm.Truncate(text, truncationMarker, recordCharCap)
	if r.Score > 0 {
		return fmt.Sprintf("%s (score=%.3f)", text, r.Score)
	}
	return text
}

func fieldSummary(fields map[string]any) string {
	if len(fields) == 0 {
		return "(no detail)"
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, ", ")
}

var graphSlotHeaders = map[types.SlotName]string{
	types.SlotAttackPaths:       "Attack source panorama",
	types.SlotLateralMovement:   "Lateral movement",
	types.SlotTemporalSequences: "Temporal correlation",
	types.SlotProcessChains:     "Process execution chains",
	types.SlotFileInteractions:  "File interactions",
	types.SlotNetworkTopology:   "Network topology",
	types.SlotUserBehavior:      "User behavior",
	types.SlotIPReputation:      "IP reputation",
	types.SlotThreatLandscape:   "Threat landscape",
}

func renderGraphBlock(bundle types.ContextBundle) string {
	var b strings.Builder
	for _, slot := range types.GraphSlots {
		records := bundle[slot]
		if len(records) == 0 {
			continue
		}
		header, ok := graphSlotHeaders[slot]
		if !ok {
			header = string(slot)
		}
		fmt.Fprintf(&b, "%s:\n", header)
		for _, r := range records {
			if r.Failed || r.GraphPath == nil {
				continue
			}
			for _, line := range renderGraphPath(*r.GraphPath) {
				b.WriteString(line)
				b.WriteString("\n")
			}
		}
	}
	return llm.Truncate(b.String(), truncationMarker, graphBlockCap)
}

// renderGraphPath flattens one traversal result into Cypher-path notation
// lines per grammar: a chain of
// `(Type:id {kv}) -[REL {kv}]-> (Type:id {kv})` hops, one line per
// consecutive node pair. A path with no relationships renders as a single
// bare-node line.
func renderGraphPath(path types.GraphPath) []string {
	if len(path.Nodes) == 0 {
		return nil
	}
	if len(path.Rels) == 0 {
		return []string{renderNode(path.Nodes[0])}
	}
	var lines []string
	for i, rel := range path.Rels {
		if i+1 >= len(path.Nodes) {
			break
		}
		lines = append(lines, fmt.Sprintf("%s -[%s]-> %s",
			renderNode(path.Nodes[i]), renderEdge(rel), renderNode(path.Nodes[i+1])))
	}
	return lines
}

func renderNode(n types.Node) string {
	id := n.Key
	if id == "" {
		id = "?"
	}
	kv := kvList(n.Attrs)
	if kv == "" {
		return fmt.Sprintf("(%s:%s)", n.Type, id)
	}
	return fmt.Sprintf("(%s:%s {%s})", n.Type, id, kv)
}

func renderEdge(r types.Relationship) string {
	kv := kvList(r.Attrs)
	if kv == "" {
		return string(r.Type)
	}
	return fmt.Sprintf("%s {%s}", r.Type, kv)
}

func kvList(attrs map[string]any) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, attrs[k]))
	}
	return strings.Join(parts, ",")
}

// degenerateGraphLines synthesizes bare IP-node lines from non-graph records
// that carry srcip/dstip-shaped fields, so the LLM gets some structured
// context even when no cypher_template task returned anything (// fallback rule). Capped at 10 lines.
func degenerateGraphLines(bundle types.ContextBundle) []string {
	var lines []string
	for _, slot := range []types.SlotName{types.SlotSimilarAlerts, types.SlotNetworkLogs} {
		for _, r := range bundle[slot] {
			if r.Failed {
				continue
			}
			for _, key := range []string{"srcip", "dstip"} {
				if ip, ok := r.Fields[key]; ok {
					lines = append(lines, fmt.Sprintf("(IPAddress:%v)", ip))
					if len(lines) >= degenerateCap {
						return lines
					}
				}
			}
		}
	}
	return lines
}
