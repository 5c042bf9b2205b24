package rollout

import (
	"testing"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTakeTargets(t *testing.T) {
	taken := map[uint]bool{}
	candidates := []uint{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	newRollout := NewRollout{AmountGroups: 3}
	var sizes []int
	for _, group := range newRollout.groups() {
		sizes = append(sizes, len(takeTargets(candidates, taken, group.TargetPercentage)))
	}

	assert.Equal(t, []int{4, 3, 3}, sizes)
	assert.Len(t, taken, 10)
}

func TestTakeTargetsSkipsTaken(t *testing.T) {
	taken := map[uint]bool{1: true, 3: true}

	targets := takeTargets([]uint{1, 2, 3, 4}, taken, 100)

	assert.Equal(t, []uint{2, 4}, targets)
}

func TestTakeTargetsMoreGroupsThanTargets(t *testing.T) {
	taken := map[uint]bool{}
	newRollout := NewRollout{AmountGroups: 4}

	var sizes []int
	for _, group := range newRollout.groups() {
		sizes = append(sizes, len(takeTargets([]uint{1, 2}, taken, group.TargetPercentage)))
	}

	assert.Equal(t, []int{1, 1, 0, 0}, sizes)
}

func TestConditionsWithDefaults(t *testing.T) {
	conditions := Conditions{}.withDefaults(Conditions{})

	require.NoError(t, conditions.validate())
	assert.Equal(t, &Trigger{Name: model.ConditionThreshold, Expression: "50"}, conditions.SuccessCondition)
	assert.Equal(t, &Trigger{Name: model.ActionNextGroup}, conditions.SuccessAction)
	assert.Nil(t, conditions.ErrorCondition)

	group := Conditions{ErrorCondition: &Trigger{Name: model.ConditionThreshold, Expression: "20"}}.withDefaults(conditions)
	assert.Equal(t, &Trigger{Name: model.ActionPause}, group.ErrorAction)
	assert.Equal(t, conditions.SuccessCondition, group.SuccessCondition)
}

func TestConditionsValidate(t *testing.T) {
	tests := map[string]Conditions{
		"threshold above 100": {SuccessCondition: &Trigger{Name: model.ConditionThreshold, Expression: "101"}},
		"not a number":        {SuccessCondition: &Trigger{Name: model.ConditionThreshold, Expression: "half"}},
		"unknown condition":   {SuccessCondition: &Trigger{Name: "ALWAYS"}},
		"unknown action":      {SuccessAction: &Trigger{Name: "RESTART"}},
		"next group on error": {ErrorCondition: &Trigger{Name: model.ConditionThreshold, Expression: "5"}, ErrorAction: &Trigger{Name: model.ActionNextGroup}},
	}

	for name, conditions := range tests {
		t.Run(name, func(t *testing.T) {
			err := conditions.withDefaults(Conditions{}).validate()

			assert.True(t, errdef.IsBadRequest(err))
		})
	}
}

func TestGroupProgress(t *testing.T) {
	group := model.RolloutGroup{
		SuccessConditionExp: "50",
		ErrorCondition:      model.ConditionThreshold,
		ErrorConditionExp:   "20",
	}

	assert.True(t, groupProgress{}.succeeded(group), "groups without actions succeed")
	assert.False(t, groupProgress{total: 4, finished: 1}.succeeded(group))
	assert.True(t, groupProgress{total: 4, finished: 2}.succeeded(group))
	assert.False(t, groupProgress{total: 5, errored: 1}.failed(group), "the error threshold must be exceeded")
	assert.True(t, groupProgress{total: 4, errored: 1}.failed(group))
	assert.False(t, groupProgress{total: 4, errored: 4}.failed(model.RolloutGroup{SuccessConditionExp: "50"}), "groups without error condition never fail")
}

func TestNewRolloutValidate(t *testing.T) {
	valid := NewRollout{Name: "r", TargetFilterQuery: "name==a", AmountGroups: 1}
	require.NoError(t, valid.validate())

	tests := map[string]func(n *NewRollout){
		"missing name":            func(n *NewRollout) { n.Name = "" },
		"missing filter":          func(n *NewRollout) { n.TargetFilterQuery = "" },
		"invalid filter":          func(n *NewRollout) { n.TargetFilterQuery = "name=" },
		"groups and amount":       func(n *NewRollout) { n.Groups = []NewGroup{{TargetPercentage: 100}} },
		"no groups":               func(n *NewRollout) { n.AmountGroups = 0 },
		"too many groups":         func(n *NewRollout) { n.AmountGroups = 501 },
		"timeforced without time": func(n *NewRollout) { n.Type = model.ActionTypeTimeForced },
		"invalid group filter": func(n *NewRollout) {
			n.AmountGroups = 0
			n.Groups = []NewGroup{{TargetPercentage: 100, TargetFilterQuery: "unknown==1"}}
		},
	}

	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			newRollout := valid
			modify(&newRollout)

			assert.True(t, errdef.IsBadRequest(newRollout.validate()))
		})
	}
}
