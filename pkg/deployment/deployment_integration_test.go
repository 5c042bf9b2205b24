package deployment_test

import (
	"context"
	"sync"
	"testing"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/deployment"
	"github.com/dhis2-sre/update-manager/pkg/dmf"
	"github.com/dhis2-sre/update-manager/pkg/inttest"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/tenantconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func TestDeploymentService(t *testing.T) {
	t.Parallel()

	db := inttest.SetupDB(t)
	ctx := inttest.Context(context.Background(), "acme")
	fixture := newFixture(t, db, ctx)

	t.Run("AssignAndCancelPrevious", func(t *testing.T) {
		publisher := &publisher{}
		service := deployment.NewService(inttest.Logger(), deployment.NewRepository(db), config{}, noMetadata{}, publisher)
		target := fixture.target(t, "device-1")

		result, err := service.Assign(ctx, []deployment.Request{{TargetID: target.ID, DistributionSetID: fixture.first.ID}})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Assigned)
		first := result.Actions[0]
		assert.Equal(t, model.ActionStatusRunning, first.Status)
		assert.Equal(t, model.ActionTypeForced, first.Type)
		assert.Equal(t, "tester", first.InitiatedBy)

		result, err = service.Assign(ctx, []deployment.Request{{TargetID: target.ID, DistributionSetID: fixture.first.ID}})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Assigned)
		assert.Equal(t, 1, result.AlreadyAssigned)

		result, err = service.Assign(ctx, []deployment.Request{{TargetID: target.ID, DistributionSetID: fixture.second.ID, Type: model.ActionTypeSoft}})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Assigned)

		var canceled model.Action
		require.NoError(t, db.First(&canceled, first.ID).Error)
		assert.Equal(t, model.ActionStatusCanceling, canceled.Status)
		assert.True(t, canceled.Active)

		var updated model.Target
		require.NoError(t, db.First(&updated, target.ID).Error)
		assert.Equal(t, fixture.second.ID, *updated.AssignedDistributionSetID)
		assert.Equal(t, model.UpdateStatusPending, updated.UpdateStatus)

		var ds model.DistributionSet
		require.NoError(t, db.First(&ds, fixture.second.ID).Error)
		assert.True(t, ds.Locked)

		assert.Equal(t, []uint{first.ID}, publisher.canceled)
		assert.Len(t, publisher.assigned, 2)
	})

	t.Run("AssignInvalidRequests", func(t *testing.T) {
		service := deployment.NewService(inttest.Logger(), deployment.NewRepository(db), config{}, noMetadata{}, &publisher{})
		target := fixture.target(t, "device-2")

		tests := map[string]deployment.Request{
			"timeforced without forcetime": {TargetID: target.ID, DistributionSetID: fixture.first.ID, Type: model.ActionTypeTimeForced},
			"partial maintenance window":   {TargetID: target.ID, DistributionSetID: fixture.first.ID, Maintenance: deployment.Maintenance{Schedule: "0 0 * * * ?"}},
			"invalid maintenance duration": {TargetID: target.ID, DistributionSetID: fixture.first.ID, Maintenance: deployment.Maintenance{Schedule: "0 0 * * * ?", Duration: "1h", TimeZone: "+00:00"}},
			"incomplete distribution set":  {TargetID: target.ID, DistributionSetID: fixture.incomplete.ID},
		}
		for name, request := range tests {
			t.Run(name, func(t *testing.T) {
				_, err := service.Assign(ctx, []deployment.Request{request})

				require.Error(t, err)
				assert.True(t, errdef.IsBadRequest(err))
			})
		}

		_, err := service.Assign(ctx, []deployment.Request{{TargetID: 999999, DistributionSetID: fixture.first.ID}})
		assert.True(t, errdef.IsNotFound(err))
	})

	t.Run("MultiAssignments", func(t *testing.T) {
		publisher := &publisher{}
		service := deployment.NewService(inttest.Logger(), deployment.NewRepository(db), config{tenantconfig.MultiAssignmentsEnabled: true}, noMetadata{}, publisher)
		target := fixture.target(t, "device-3")

		_, err := service.Assign(ctx, []deployment.Request{{TargetID: target.ID, DistributionSetID: fixture.first.ID}})
		require.NoError(t, err)
		_, err = service.Assign(ctx, []deployment.Request{{TargetID: target.ID, DistributionSetID: fixture.second.ID}})
		require.NoError(t, err)

		var active int64
		require.NoError(t, db.Model(&model.Action{}).Where("active AND target_id = ? AND status = ?", target.ID, model.ActionStatusRunning).Count(&active).Error)
		assert.Equal(t, int64(2), active)
		assert.Empty(t, publisher.canceled)
	})

	t.Run("ConfirmationFlow", func(t *testing.T) {
		publisher := &publisher{}
		service := deployment.NewService(inttest.Logger(), deployment.NewRepository(db), config{tenantconfig.UserConfirmationEnabled: true}, noMetadata{}, publisher)
		target := fixture.target(t, "device-4")

		result, err := service.Assign(ctx, []deployment.Request{{TargetID: target.ID, DistributionSetID: fixture.first.ID}})
		require.NoError(t, err)
		action := result.Actions[0]
		assert.Equal(t, model.ActionStatusWaitForConfirmation, action.Status)
		assert.Equal(t, dmf.TopicConfirm, dmf.TopicOf(publisher.assigned[0].Action))

		denied, err := service.Confirm(ctx, action.ID, deployment.Confirmation{Confirmed: false, Details: []string{"not now"}})
		require.NoError(t, err)
		assert.Equal(t, model.ActionStatusWaitForConfirmation, denied.Status)

		confirmed, err := service.Confirm(ctx, action.ID, deployment.Confirmation{Confirmed: true})
		require.NoError(t, err)
		assert.Equal(t, model.ActionStatusRunning, confirmed.Status)
		assert.Len(t, publisher.assigned, 2)

		_, err = service.Confirm(ctx, action.ID, deployment.Confirmation{Confirmed: true})
		assert.True(t, errdef.IsBadRequest(err))

		notRequired := false
		other := fixture.target(t, "device-5")
		result, err = service.Assign(ctx, []deployment.Request{{TargetID: other.ID, DistributionSetID: fixture.first.ID, ConfirmationRequired: &notRequired}})
		require.NoError(t, err)
		assert.Equal(t, model.ActionStatusRunning, result.Actions[0].Status)
	})

	t.Run("AutoConfirm", func(t *testing.T) {
		service := deployment.NewService(inttest.Logger(), deployment.NewRepository(db), config{tenantconfig.UserConfirmationEnabled: true}, noMetadata{}, &publisher{})
		target := fixture.target(t, "device-6")

		_, err := service.Assign(ctx, []deployment.Request{{TargetID: target.ID, DistributionSetID: fixture.first.ID}})
		require.NoError(t, err)

		confirmed, err := service.AutoConfirm(ctx, target.ID, "operator")
		require.NoError(t, err)
		assert.Equal(t, 1, confirmed)

		var statuses []model.ActionStatus
		require.NoError(t, db.Joins("JOIN actions ON actions.id = action_statuses.action_id").Where("actions.target_id = ?", target.ID).Order("action_statuses.id").Find(&statuses).Error)
		require.Len(t, statuses, 2)
		assert.Equal(t, model.ActionStatusRunning, statuses[1].Status)
		assert.Contains(t, statuses[1].Messages[0], "operator")
	})

	t.Run("CancelAndForceQuit", func(t *testing.T) {
		publisher := &publisher{}
		service := deployment.NewService(inttest.Logger(), deployment.NewRepository(db), config{}, noMetadata{}, publisher)
		notifier := &notifier{}
		service.SetNotifier(notifier)
		target := fixture.target(t, "device-7")

		result, err := service.Assign(ctx, []deployment.Request{{TargetID: target.ID, DistributionSetID: fixture.first.ID}})
		require.NoError(t, err)
		action := result.Actions[0]

		_, err = service.Cancel(ctx, action.ID, true)
		assert.True(t, errdef.IsBadRequest(err), "force quit requires a canceling action")

		canceling, err := service.Cancel(ctx, action.ID, false)
		require.NoError(t, err)
		assert.Equal(t, model.ActionStatusCanceling, canceling.Status)
		assert.Equal(t, []uint{action.ID}, publisher.canceled)

		_, err = service.Cancel(ctx, action.ID, false)
		assert.True(t, errdef.IsBadRequest(err), "an action is canceled once")
		assert.Equal(t, []uint{action.ID}, publisher.canceled)

		canceled, err := service.Cancel(ctx, action.ID, true)
		require.NoError(t, err)
		assert.Equal(t, model.ActionStatusCanceled, canceled.Status)
		assert.False(t, canceled.Active)

		var updated model.Target
		require.NoError(t, db.First(&updated, target.ID).Error)
		assert.Nil(t, updated.AssignedDistributionSetID)
		assert.Equal(t, model.UpdateStatusRegistered, updated.UpdateStatus)

		_, err = service.Cancel(ctx, action.ID, false)
		assert.True(t, errdef.IsBadRequest(err))

		assert.Equal(t, []model.ActionStatusType{
			model.ActionStatusRunning,
			model.ActionStatusCanceling,
			model.ActionStatusCanceled,
		}, notifier.statuses)
	})

	t.Run("Force", func(t *testing.T) {
		service := deployment.NewService(inttest.Logger(), deployment.NewRepository(db), config{}, noMetadata{}, &publisher{})
		target := fixture.target(t, "device-8")

		result, err := service.Assign(ctx, []deployment.Request{{TargetID: target.ID, DistributionSetID: fixture.first.ID, Type: model.ActionTypeSoft}})
		require.NoError(t, err)

		forced, err := service.Force(ctx, result.Actions[0].ID)
		require.NoError(t, err)
		assert.Equal(t, model.ActionTypeForced, forced.Type)

		_, err = service.Force(ctx, 999999)
		assert.True(t, errdef.IsNotFound(err))
	})

	t.Run("AssignOffline", func(t *testing.T) {
		publisher := &publisher{}
		service := deployment.NewService(inttest.Logger(), deployment.NewRepository(db), config{}, noMetadata{}, publisher)
		target := fixture.target(t, "device-9")

		result, err := service.AssignOffline(ctx, fixture.first.ID, []uint{target.ID})
		require.NoError(t, err)
		require.Equal(t, 1, result.Assigned)
		assert.Equal(t, model.ActionStatusFinished, result.Actions[0].Status)
		assert.False(t, result.Actions[0].Active)
		assert.Empty(t, publisher.assigned)

		var updated model.Target
		require.NoError(t, db.First(&updated, target.ID).Error)
		assert.Equal(t, fixture.first.ID, *updated.InstalledDistributionSetID)
		assert.Equal(t, model.UpdateStatusInSync, updated.UpdateStatus)
		assert.NotNil(t, updated.InstalledAt)

		result, err = service.AssignOffline(ctx, fixture.first.ID, []uint{target.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, result.AlreadyAssigned)
	})

	t.Run("CancelActionsOf", func(t *testing.T) {
		service := deployment.NewService(inttest.Logger(), deployment.NewRepository(db), config{tenantconfig.MultiAssignmentsEnabled: true}, noMetadata{}, &publisher{})
		target := fixture.target(t, "device-10")

		_, err := service.Assign(ctx, []deployment.Request{{TargetID: target.ID, DistributionSetID: fixture.third.ID}})
		require.NoError(t, err)

		canceled, err := service.CancelActionsOf(ctx, fixture.third.ID, true)
		require.NoError(t, err)
		assert.Equal(t, 1, canceled)

		var active int64
		require.NoError(t, db.Model(&model.Action{}).Where("active AND distribution_set_id = ?", fixture.third.ID).Count(&active).Error)
		assert.Zero(t, active)
	})
}

type fixture struct {
	db                   *gorm.DB
	ctx                  context.Context
	first, second, third *model.DistributionSet
	incomplete           *model.DistributionSet
}

func newFixture(t *testing.T, db *gorm.DB, ctx context.Context) fixture {
	smType := &model.SoftwareModuleType{Key: "os", Name: "OS", MaxAssignments: 1}
	require.NoError(t, db.WithContext(ctx).Create(smType).Error)
	dsType := &model.DistributionSetType{Key: "os", Name: "OS"}
	require.NoError(t, db.WithContext(ctx).Omit(clause.Associations).Create(dsType).Error)
	require.NoError(t, db.Create(&model.DistributionSetTypeElement{DistributionSetTypeID: dsType.ID, SoftwareModuleTypeID: smType.ID, Mandatory: true}).Error)

	module := &model.SoftwareModule{Name: "kernel", Version: "1.0", TypeID: smType.ID}
	require.NoError(t, db.WithContext(ctx).Omit(clause.Associations).Create(module).Error)

	set := func(name string, complete bool) *model.DistributionSet {
		ds := &model.DistributionSet{Name: name, Version: "1.0", TypeID: dsType.ID, Complete: complete, Valid: true}
		require.NoError(t, db.WithContext(ctx).Omit(clause.Associations).Create(ds).Error)
		if complete {
			require.NoError(t, db.Exec("INSERT INTO distribution_set_modules (distribution_set_id, software_module_id) VALUES (?, ?)", ds.ID, module.ID).Error)
		}
		return ds
	}

	return fixture{
		db:         db,
		ctx:        ctx,
		first:      set("first", true),
		second:     set("second", true),
		third:      set("third", true),
		incomplete: set("incomplete", false),
	}
}

func (f fixture) target(t *testing.T, controllerID string) *model.Target {
	target := &model.Target{ControllerID: controllerID, Name: controllerID, UpdateStatus: model.UpdateStatusRegistered, Address: "amqp://dmf"}
	require.NoError(t, f.db.WithContext(f.ctx).Omit(clause.Associations).Create(target).Error)
	return target
}

type config map[string]bool

func (c config) Bool(_ context.Context, key string) (bool, error) {
	return c[key], nil
}

type noMetadata struct{}

func (noMetadata) FindTargetVisible(context.Context, []uint) (map[uint][]model.Metadata, error) {
	return nil, nil
}

type publisher struct {
	mu       sync.Mutex
	assigned []dmf.Assignment
	canceled []uint
}

func (p *publisher) Assign(_ context.Context, assignment dmf.Assignment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assigned = append(p.assigned, assignment)
	return nil
}

func (p *publisher) CancelDownload(_ context.Context, _ model.Target, actionID uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canceled = append(p.canceled, actionID)
	return nil
}

type notifier struct {
	statuses []model.ActionStatusType
}

func (n *notifier) ActionChanged(_ context.Context, action model.Action) {
	n.statuses = append(n.statuses, action.Status)
}
