package engine

import (
	"testing"

	"github.com/scrypster/aegis/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestFormatContext_GraphPresent_RendersCypherPathLines(t *testing.T) {
	bundle := types.NewContextBundle()
	bundle[types.SlotAttackPaths] = []types.EvidenceRecord{
		{
			Source: types.SlotAttackPaths,
			GraphPath: &types.GraphPath{
				Nodes: []types.Node{
					{Type: types.NodeIPAddress, Key: "203.0.113.45"},
					{Type: types.NodeHost, Key: "web-server-01"},
				},
				Rels: []types.Relationship{
					{Type: types.RelHasSourceIP, Attrs: map[string]any{"count": 127}},
				},
			},
		},
	}

	fc := FormatContext("alert summary text", bundle)
	assert.True(t, fc.GraphPresent)
	assert.Contains(t, fc.GraphContext, "(IPAddress:203.0.113.45)")
	assert.Contains(t, fc.GraphContext, "-[HAS_SOURCE_IP {count=127}]->")
	assert.Contains(t, fc.GraphContext, "(Host:web-server-01)")
}

func TestFormatContext_NoGraphSlots_UsesPlainRendering(t *testing.T) {
	bundle := types.NewContextBundle()
	bundle[types.SlotSimilarAlerts] = []types.EvidenceRecord{
		{Source: types.SlotSimilarAlerts, Score: 0.92, Fields: map[string]any{"id": "a2", "description": "ssh brute force"}},
	}

	fc := FormatContext("summary", bundle)
	assert.False(t, fc.GraphPresent)
	assert.Contains(t, fc.SimilarAlerts, "score=0.920")
	assert.Contains(t, fc.SimilarAlerts, "a2")
}

func TestFormatContext_FailedRecordsAreExcluded(t *testing.T) {
	bundle := types.NewContextBundle()
	bundle[types.SlotHostMetrics] = []types.EvidenceRecord{{Source: types.SlotHostMetrics, Failed: true}}

	fc := FormatContext("summary", bundle)
	assert.Empty(t, fc.SystemMetrics)
}

func TestFormatContext_DegenerateFallback_WhenNoGraphButIPFieldsPresent(t *testing.T) {
	bundle := types.NewContextBundle()
	bundle[types.SlotSimilarAlerts] = []types.EvidenceRecord{
		{Source: types.SlotSimilarAlerts, Fields: map[string]any{"srcip": "203.0.113.45"}},
	}

	fc := FormatContext("summary", bundle)
	assert.False(t, fc.GraphPresent)
	assert.Contains(t, fc.GraphContext, "(IPAddress:203.0.113.45)")
}

func TestFormatContext_GraphBlockRespectsCharacterCap(t *testing.T) {
	bundle := types.NewContextBundle()
	var records []types.EvidenceRecord
	for i := 0; i < 200; i++ {
		records = append(records, types.EvidenceRecord{
			Source: types.SlotAttackPaths,
			GraphPath: &types.GraphPath{
				Nodes: []types.Node{{Type: types.NodeIPAddress, Key: "203.0.113.45"}, {Type: types.NodeHost, Key: "h"}},
				Rels:  []types.Relationship{{Type: types.RelHasSourceIP}},
			},
		})
	}
	bundle[types.SlotAttackPaths] = records

	fc := FormatContext("summary", bundle)
	assert.LessOrEqual(t, len([]rune(fc.GraphContext)), graphBlockCap+len(truncationMarker))
}
