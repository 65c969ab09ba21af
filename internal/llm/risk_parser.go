package llm

import (
	"strings"

	"github.com/scrypster/aegis/pkg/types"
)

// riskTokens is the closed candidate set ExtractRiskLevel scans for, in no
// particular order; ExtractRiskLevel resolves ambiguity itself.
var riskTokens = []types.RiskLevel{
	types.RiskCritical,
	types.RiskHigh,
	types.RiskMedium,
	types.RiskLow,
	types.RiskInformational,
}

// riskScanWindow bounds the scan to the first 500 characters of the report,
// mirroring a canonical-position token scan: look at the start of the text
// for a structured marker rather than scanning the whole body.
const riskScanWindow = 500

// ExtractRiskLevel scans the first 500 characters of report (case
// insensitive) for any of {critical, high, medium, low, informational}. If
// more than one candidate appears, the highest-severity one wins,
// since a report that mentions "informational" in a caveat before stating
// "critical" should be triaged as critical rather than by whichever token
// happens to occur first.
func ExtractRiskLevel(report string) types.RiskLevel {
	window := report
	if runes := []rune(window); len(runes) > riskScanWindow {
		window = string(runes[:riskScanWindow])
	}
	lower := strings.ToLower(window)

	best := types.RiskUnknown
	for _, tok := range riskTokens {
		if strings.Contains(lower, string(tok)) {
			if best == types.RiskUnknown || tok.Rank() < best.Rank() {
				best = tok
			}
		}
	}
	return best
}
