package engine

import (
	"testing"
	"time"

	"github.com/scrypster/aegis/pkg/types"
	"github.com/stretchr/testify/assert"
)

func baseAlert() *types.Alert {
	return &types.Alert{
		ID:        "a1",
		Timestamp: time.Date(2024, 12, 15, 14, 32, 15, 0, time.UTC),
		Rule:      types.Rule{ID: 100002, Description: "SSH brute force attack detected", Level: 8, Groups: []string{"authentication", "attack"}},
		Agent:     types.Agent{ID: "A1", Name: "web-01", IP: "192.168.1.10"},
		Data:      map[string]any{"srcip": "203.0.113.45", "dstip": "192.168.1.10", "srcuser": "admin"},
	}
}

func kindsOf(plan types.Plan) []string {
	return plan.Kinds()
}

func hasTemplate(plan types.Plan, name string) bool {
	for _, t := range plan.Tasks {
		if t.Template == name {
			return true
		}
	}
	return false
}

func TestPlan_SSHBruteForce_EmitsExpectedTemplates(t *testing.T) {
	plan := Plan(baseAlert())

	assert.True(t, hasTemplate(plan, "attack_source_panorama"))
	assert.True(t, hasTemplate(plan, "lateral_movement_detection"))
	assert.True(t, hasTemplate(plan, "temporal_correlation"))
	assert.True(t, hasTemplate(plan, "ip_reputation"))
	assert.True(t, hasTemplate(plan, "threat_landscape"))
	assert.Contains(t, kindsOf(plan), string(types.KindVectorKNN))
}

func TestPlan_VectorKNNLeadsNonCriticalTasks(t *testing.T) {
	plan := Plan(baseAlert())
	var first types.RetrievalTask
	for _, task := range plan.Tasks {
		if task.Priority.Rank() >= types.PriorityHigh.Rank() {
			first = task
			break
		}
	}
	assert.Equal(t, types.KindVectorKNN, first.Kind)
	assert.Equal(t, types.PriorityHigh, first.Priority)
}

func TestPlan_IsOrderedByPriorityRank(t *testing.T) {
	plan := Plan(baseAlert())
	for i := 1; i < len(plan.Tasks); i++ {
		assert.LessOrEqual(t, plan.Tasks[i-1].Priority.Rank(), plan.Tasks[i].Priority.Rank())
	}
}

func TestPlan_ResourceMonitoringVocabulary_EmitsKeywordTasks(t *testing.T) {
	alert := baseAlert()
	alert.Rule = types.Rule{ID: 5, Description: "High CPU usage detected on host", Level: 3}
	plan := Plan(alert)

	var sawProcess, sawHostMetrics bool
	for _, task := range plan.Tasks {
		if task.Kind != types.KindKeywordTimeWindow {
			continue
		}
		switch task.Slot {
		case types.SlotProcessData:
			sawProcess = true
		case types.SlotHostMetrics:
			sawHostMetrics = true
		}
	}
	assert.True(t, sawProcess)
	assert.True(t, sawHostMetrics)
}

func TestPlan_InternalSourceIP_SkipsIPReputation(t *testing.T) {
	alert := baseAlert()
	alert.Data["srcip"] = "10.0.0.5"
	plan := Plan(alert)
	assert.False(t, hasTemplate(plan, "ip_reputation"))
}

func TestPlan_LowLevelNonSecurityAlert_EmitsOnlyBaselineTasks(t *testing.T) {
	alert := &types.Alert{
		ID:        "a2",
		Timestamp: time.Date(2024, 12, 15, 14, 32, 15, 0, time.UTC),
		Rule:      types.Rule{ID: 1, Description: "Routine log rotation completed", Level: 2},
		Agent:     types.Agent{ID: "A2", Name: "host-02"},
	}
	plan := Plan(alert)

	assert.True(t, hasTemplate(plan, "temporal_correlation"))
	assert.False(t, hasTemplate(plan, "threat_landscape"))
	assert.False(t, hasTemplate(plan, "attack_source_panorama"))
	assert.False(t, hasTemplate(plan, "ip_reputation"))
}

func TestPlan_IsDeterministic(t *testing.T) {
	alert := baseAlert()
	first := Plan(alert)
	second := Plan(alert)
	assert.Equal(t, len(first.Tasks), len(second.Tasks))
	for i := range first.Tasks {
		assert.Equal(t, first.Tasks[i].Kind, second.Tasks[i].Kind)
		assert.Equal(t, first.Tasks[i].Template, second.Tasks[i].Template)
	}
}
