package engine

import (
	"net"
	"sort"
	"strings"
	"time"

	"github.com/scrypster/aegis/pkg/types"
)

var resourceVocabulary = []string{"cpu", "memory", "ram", "disk", "performance", "overload"}

var securityGroups = map[string]bool{
	"authentication":       true,
	"attack":               true,
	"intrusion_detection":  true,
	"malware":              true,
}

var sshVocabulary = []string{"ssh", "sshd"}

var malwareVocabulary = []string{"malware", "trojan", "virus", "ransomware", "worm", "rootkit"}

var webAttackVocabulary = []string{
	"sql injection", "xss", "cross-site scripting", "web attack",
	"http attack", "command injection", "directory traversal", "path traversal",
}

var authPrivilegeVocabulary = []string{"privilege", "escalation", "sudo", "authentication", "login", "credential"}

// Plan is the decision engine: a pure, deterministic function
// from an alert to an ordered set of retrieval tasks. It never touches a
// store — every task it emits is inspected by name and parameters only by
// C6, the hybrid retriever.
func Plan(alert *types.Alert) types.Plan {
	var tasks []types.RetrievalTask

	tasks = append(tasks, types.RetrievalTask{
		Kind:       types.KindVectorKNN,
		Priority:   types.PriorityHigh,
		Slot:       types.SlotSimilarAlerts,
		Parameters: map[string]any{"k": 5},
	})

	desc := strings.ToLower(alert.Rule.Description)
	groups := lowerGroups(alert.Rule.Groups)

	if containsAny(desc, resourceVocabulary) || groupsContainAny(groups, resourceVocabulary) {
		window := timeWindow(alert.Timestamp, 5*time.Minute)
		tasks = append(tasks,
			keywordTask(types.PriorityMedium, types.SlotProcessData, alert, window, "process"),
			keywordTask(types.PriorityMedium, types.SlotHostMetrics, alert, window, "memory"),
		)
	}

	if alert.Rule.Level >= 7 || groupsIntersect(groups, securityGroups) {
		window := timeWindow(alert.Timestamp, time.Minute)
		tasks = append(tasks,
			keywordTask(types.PriorityHigh, types.SlotHostMetrics, alert, window, "cpu"),
			keywordTask(types.PriorityHigh, types.SlotNetworkLogs, alert, window, "network"),
			keywordTask(types.PriorityHigh, types.SlotProcessData, alert, window, alert.User()),
		)
	}

	if containsAny(desc, sshVocabulary) || groupsContainAny(groups, sshVocabulary) {
		lateralWindow := timeWindow(alert.Timestamp, 30*time.Minute)
		panoramaWindow := timeWindow(alert.Timestamp, time.Hour)
		tasks = append(tasks,
			templateTask("attack_source_panorama", types.PriorityCritical, types.SlotAttackPaths, map[string]any{
				"source_ip":    alert.SourceIP(),
				"window_start": panoramaWindow.start,
				"window_end":   panoramaWindow.end,
			}),
			templateTask("lateral_movement_detection", types.PriorityHigh, types.SlotLateralMovement, map[string]any{
				"username":   alert.User(),
				"alert_time": alert.Timestamp,
				"window_end": lateralWindow.end,
			}),
		)
	}

	if containsAny(desc, malwareVocabulary) || groupsContainAny(groups, malwareVocabulary) {
		window := timeWindow(alert.Timestamp, 2*time.Hour)
		tasks = append(tasks,
			templateTask("process_execution_chain", types.PriorityCritical, types.SlotProcessChains, map[string]any{
				"process_key":  alert.Process(),
				"window_start": window.start,
				"window_end":   window.end,
			}),
			templateTask("file_interactions", types.PriorityHigh, types.SlotFileInteractions, map[string]any{
				"file_key": alert.File(),
			}),
		)
	}

	if containsAny(desc, webAttackVocabulary) || groupsContainAny(groups, webAttackVocabulary) {
		window := timeWindow(alert.Timestamp, 6*time.Hour)
		tasks = append(tasks, templateTask("network_topology", types.PriorityHigh, types.SlotNetworkTopology, map[string]any{
			"source_ip":    alert.SourceIP(),
			"window_start": window.start,
			"window_end":   window.end,
		}))
	}

	if containsAny(desc, authPrivilegeVocabulary) || groupsContainAny(groups, authPrivilegeVocabulary) {
		tasks = append(tasks, templateTask("user_behavior", types.PriorityMedium, types.SlotUserBehavior, map[string]any{
			"username":     alert.User(),
			"window_start": alert.Timestamp.Add(-7 * 24 * time.Hour),
			"window_end":   alert.Timestamp,
		}))
	}

	{
		window := timeWindow(alert.Timestamp, 30*time.Minute)
		tasks = append(tasks, templateTask("temporal_correlation", types.PriorityMedium, types.SlotTemporalSequences, map[string]any{
			"agent_id":     alert.Agent.ID,
			"window_start": window.start,
			"window_end":   window.end,
		}))
	}

	if ip := nonInternalIP(alert); ip != "" {
		tasks = append(tasks, templateTask("ip_reputation", types.PriorityMedium, types.SlotIPReputation, map[string]any{
			"ip_address": ip,
		}))
	}

	if alert.Rule.Level >= 8 {
		window := timeWindow(alert.Timestamp, 24*time.Hour)
		tasks = append(tasks, templateTask("threat_landscape", types.PriorityMedium, types.SlotThreatLandscape, map[string]any{
			"alert_id":     alert.ID,
			"window_start": window.start,
		}))
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority.Rank() < tasks[j].Priority.Rank()
	})

	return types.Plan{Tasks: tasks}
}

type window struct{ start, end time.Time }

func timeWindow(t time.Time, span time.Duration) window {
	return window{start: t.Add(-span), end: t.Add(span)}
}

func keywordTask(priority types.Priority, slot types.SlotName, alert *types.Alert, w window, keyword string) types.RetrievalTask {
	return types.RetrievalTask{
		Kind:     types.KindKeywordTimeWindow,
		Priority: priority,
		Slot:     slot,
		Parameters: map[string]any{
			"keywords": []string{keyword},
			"host":     alert.Agent.Name,
			"from":     w.start,
			"to":       w.end,
		},
	}
}

func templateTask(name string, priority types.Priority, slot types.SlotName, params map[string]any) types.RetrievalTask {
	return types.RetrievalTask{
		Kind:       types.KindCypherTemplate,
		Priority:   priority,
		Slot:       slot,
		Template:   name,
		Parameters: params,
	}
}

func lowerGroups(groups []string) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = strings.ToLower(g)
	}
	return out
}

func containsAny(haystack string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}

func groupsContainAny(groups []string, terms []string) bool {
	for _, g := range groups {
		if containsAny(g, terms) {
			return true
		}
	}
	return false
}

func groupsIntersect(groups []string, set map[string]bool) bool {
	for _, g := range groups {
		if set[g] {
			return true
		}
	}
	return false
}

// nonInternalIP returns the alert's source IP if present and routable
// (not RFC1918, loopback, or link-local), otherwise "".
func nonInternalIP(alert *types.Alert) string {
	ip := alert.SourceIP()
	if ip == "" {
		return ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() {
		return ""
	}
	return ip
}
