package engine

import (
	"context"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/scrypster/aegis/internal/metrics"
	"github.com/scrypster/aegis/internal/store/graphstore"
	"github.com/scrypster/aegis/pkg/types"
)

const (
	similarToThreshold = 0.7
	precedesMaxGapSecs = 1800
)

var (
	ipRegex     = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	hashRegex   = regexp.MustCompile(`\b[a-fA-F0-9]{32}\b|\b[a-fA-F0-9]{40}\b|\b[a-fA-F0-9]{64}\b`)
	domainRegex = regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}\b`)
)

// GraphPersister extracts graph entities and relationships from a processed
// alert and upserts them via the graph store. Every extraction
// step is independently gated on its required fields; a missing field
// suppresses that entity or edge, it never aborts the rest of the step.
type GraphPersister struct {
	Store   graphstore.Store
	Metrics *metrics.Registry
}

func NewGraphPersister(store graphstore.Store) *GraphPersister {
	return &GraphPersister{Store: store}
}

// Persist runs extraction then upserts the result, returning the write
// summary for inclusion in ai_analysis.graph_stats. If the graph store is in
// degraded mode, extraction still runs but Persisted is false and no error
// is returned.
func (p *GraphPersister) Persist(ctx context.Context, alert *types.Alert, bundle types.ContextBundle, report string, risk types.RiskLevel) types.GraphStats {
	nodes, rels := extractGraph(alert, bundle, report, risk)

	if p.Store == nil {
		return types.GraphStats{Persisted: false}
	}

	summary, err := p.Store.Upsert(ctx, nodes, rels)
	if err != nil {
		return types.GraphStats{Persisted: false}
	}
	if p.Metrics != nil {
		p.Metrics.AddEdgesSkipped(summary.EdgesSkipped)
	}
	return types.GraphStats{
		EntitiesCreated:       summary.NodesCreated,
		RelationshipsCreated:  summary.RelationshipsCreated,
		EdgesSkipped:          summary.EdgesSkipped,
		Persisted:             true,
	}
}

func extractGraph(alert *types.Alert, bundle types.ContextBundle, report string, risk types.RiskLevel) ([]types.Node, []types.Relationship) {
	var nodes []types.Node
	var rels []types.Relationship

	alertNode := types.Node{Type: types.NodeAlert, Key: alert.ID, Attrs: map[string]any{
		"timestamp":    alert.Timestamp.UTC().Format(time.RFC3339),
		"rule_id":      alert.Rule.ID,
		"level":        alert.Rule.Level,
		"risk_level":   string(risk),
	}}
	nodes = append(nodes, alertNode)

	if alert.Agent.ID != "" {
		hostNode := types.Node{Type: types.NodeHost, Key: alert.Agent.ID, Attrs: map[string]any{"name": alert.Agent.Name}}
		nodes = append(nodes, hostNode)
		rels = append(rels, types.Relationship{Type: types.RelTriggeredOn, From: alertNode, To: hostNode})
	}

	if ip := alert.SourceIP(); ip != "" {
		ipNode := types.Node{Type: types.NodeIPAddress, Key: ip, Attrs: map[string]any{"is_internal": isInternalIP(ip)}}
		nodes = append(nodes, ipNode)
		rels = append(rels, types.Relationship{Type: types.RelHasSourceIP, From: alertNode, To: ipNode})
	}
	if ip := alert.DestIP(); ip != "" {
		ipNode := types.Node{Type: types.NodeIPAddress, Key: ip, Attrs: map[string]any{"is_internal": isInternalIP(ip)}}
		nodes = append(nodes, ipNode)
		rels = append(rels, types.Relationship{Type: types.RelHasDestIP, From: alertNode, To: ipNode})
	}

	if u := alert.User(); u != "" {
		userNode := types.Node{Type: types.NodeUser, Key: u}
		nodes = append(nodes, userNode)
		rels = append(rels, types.Relationship{Type: types.RelInvolvesUser, From: alertNode, To: userNode})
	}

	if proc := alert.Process(); proc != "" {
		procNode := types.Node{Type: types.NodeProcess, Key: proc}
		nodes = append(nodes, procNode)
		rels = append(rels, types.Relationship{Type: types.RelInvolvesProcess, From: alertNode, To: procNode})
	}

	if f := alert.File(); f != "" {
		fileNode := types.Node{Type: types.NodeFile, Key: f}
		nodes = append(nodes, fileNode)
		rels = append(rels, types.Relationship{Type: types.RelAccessesFile, From: alertNode, To: fileNode})
	}

	if alert.Rule.ID != 0 {
		ruleNode := types.Node{Type: types.NodeRule, Key: strconv.Itoa(alert.Rule.ID), Attrs: map[string]any{"description": alert.Rule.Description}}
		nodes = append(nodes, ruleNode)
		rels = append(rels, types.Relationship{Type: types.RelMatchedRule, From: alertNode, To: ruleNode})
	}

	for _, rec := range bundle[types.SlotSimilarAlerts] {
		if rec.Failed || rec.Score < similarToThreshold {
			continue
		}
		otherID, ok := rec.Fields["id"].(string)
		if !ok || otherID == "" || otherID == alert.ID {
			continue
		}
		other := types.Node{Type: types.NodeAlert, Key: otherID}
		rels = append(rels, types.Relationship{
			Type: types.RelSimilarTo, From: alertNode, To: other,
			Attrs: map[string]any{"score": rec.Score},
		})
	}

	for _, rec := range bundle[types.SlotTemporalSequences] {
		if rec.Failed || rec.GraphPath == nil {
			continue
		}
		for _, n := range rec.GraphPath.Nodes {
			if n.Type != types.NodeAlert || n.Key == "" || n.Key == alert.ID {
				continue
			}
			gap, ok := temporalGapSeconds(alert.Timestamp, n.Attrs)
			if !ok || gap > precedesMaxGapSecs {
				continue
			}
			from, to := alertNode, n
			if n.Attrs != nil {
				if ts, _ := parseNodeTimestamp(n.Attrs); ts.Before(alert.Timestamp) {
					from, to = n, alertNode
				}
			}
			rels = append(rels, types.Relationship{
				Type: types.RelPrecedes, From: from, To: to,
				Attrs: map[string]any{"time_gap_seconds": gap},
			})
		}
	}

	for _, indicator := range extractThreatIndicators(report) {
		node := types.Node{Type: types.NodeThreatIndicator, Key: indicator.value, Attrs: map[string]any{"kind": indicator.kind}}
		nodes = append(nodes, node)
		rels = append(rels, types.Relationship{Type: types.RelPartOf, From: node, To: alertNode})
	}

	return nodes, rels
}

func temporalGapSeconds(alertTime time.Time, attrs map[string]any) (int, bool) {
	ts, ok := parseNodeTimestamp(attrs)
	if !ok {
		return 0, false
	}
	gap := ts.Sub(alertTime)
	if gap < 0 {
		gap = -gap
	}
	return int(gap.Seconds()), true
}

func parseNodeTimestamp(attrs map[string]any) (time.Time, bool) {
	v, ok := attrs["timestamp"]
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

type indicator struct {
	kind  string
	value string
}

// extractThreatIndicators pulls IoC-shaped tokens out of the analysis report
// text with a simple regex set: IP addresses, file
// hashes (md5/sha1/sha256), and domains. Deterministic, deduplicated.
func extractThreatIndicators(report string) []indicator {
	seen := make(map[string]bool)
	var out []indicator

	add := func(kind, value string) {
		key := kind + ":" + value
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, indicator{kind: kind, value: value})
	}

	for _, m := range ipRegex.FindAllString(report, -1) {
		add("ip", m)
	}
	for _, m := range hashRegex.FindAllString(report, -1) {
		add("hash", m)
	}
	for _, m := range domainRegex.FindAllString(report, -1) {
		if ipRegex.MatchString(m) {
			continue
		}
		add("domain", m)
	}
	return out
}

// isInternalIP reports whether ip is RFC1918 private, loopback, or
// link-local, the condition the "is_internal" node attribute records.
func isInternalIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsLinkLocalUnicast()
}
