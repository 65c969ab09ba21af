package engine

import (
	"fmt"
	"strings"

	"github.com/scrypster/aegis/internal/llm"
	"github.com/scrypster/aegis/pkg/types"
)

const fullLogCap = 8000

// BuildAlertSummary projects an alert into the compact textual form the
// embedding client and the analyzer both consume: rule
// description and level, agent identifier, rule groups, decoder name, and
// the data fields a triage analyst would look for first. Pure; never
// touches a store.
func BuildAlertSummary(alert *types.Alert) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Rule: %s (level %d)\n", alert.Rule.Description, alert.Rule.Level)
	if len(alert.Rule.Groups) > 0 {
		fmt.Fprintf(&b, "Groups: %s\n", strings.Join(alert.Rule.Groups, ", "))
	}
	fmt.Fprintf(&b, "Agent: %s (%s)\n", alert.Agent.Name, alert.Agent.ID)
	if alert.Decoder != "" {
		fmt.Fprintf(&b, "Decoder: %s\n", alert.Decoder)
	}
	if ip := alert.SourceIP(); ip != "" {
		fmt.Fprintf(&b, "Source IP: %s\n", ip)
	}
	if ip := alert.DestIP(); ip != "" {
		fmt.Fprintf(&b, "Dest IP: %s\n", ip)
	}
	if u := alert.User(); u != "" {
		fmt.Fprintf(&b, "User: %s\n", u)
	}
	if p := alert.Process(); p != "" {
		fmt.Fprintf(&b, "Process: %s\n", p)
	}
	if f := alert.File(); f != "" {
		fmt.Fprintf(&b, "File: %s\n", f)
	}
	if alert.FullLog != "" {
		fmt.Fprintf(&b, "Full log: %s\n", llm.Truncate(alert.FullLog, "... [truncated]", fullLogCap))
	}

	return strings.TrimRight(b.String(), "\n")
}
