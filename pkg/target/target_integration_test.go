package target_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/pkg/deployment"
	"github.com/dhis2-sre/update-manager/pkg/distributionset"
	"github.com/dhis2-sre/update-manager/pkg/distributionsettype"
	"github.com/dhis2-sre/update-manager/pkg/dmf"
	"github.com/dhis2-sre/update-manager/pkg/inttest"
	"github.com/dhis2-sre/update-manager/pkg/metadata"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/softwaremodule"
	"github.com/dhis2-sre/update-manager/pkg/softwaremoduletype"
	"github.com/dhis2-sre/update-manager/pkg/tag"
	"github.com/dhis2-sre/update-manager/pkg/target"
	"github.com/dhis2-sre/update-manager/pkg/targettype"
	"github.com/dhis2-sre/update-manager/pkg/tenantconfig"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

func TestTargetHandler(t *testing.T) {
	t.Parallel()

	db := inttest.SetupDB(t)
	ctx := inttest.Context(context.Background(), "acme")
	logger := inttest.Logger()

	config := &config{values: map[string]bool{}}
	publisher := &publisher{}

	smTypeService := softwaremoduletype.NewService(softwaremoduletype.NewRepository(db))
	dsTypeService := distributionsettype.NewService(distributionsettype.NewRepository(db), smTypeService)
	targetTypeService := targettype.NewService(targettype.NewRepository(db), dsTypeService)
	tagService := tag.NewService(tag.NewRepository(db))
	metadataService := metadata.NewService(metadata.NewRepository(db))
	smService := softwaremodule.NewService(logger, softwaremodule.NewRepository(db), smTypeService, nil)
	deploymentService := deployment.NewService(logger, deployment.NewRepository(db), config, metadataService, publisher)
	dsService := distributionset.NewService(logger, distributionset.NewRepository(db), dsTypeService, smService, tagService, deploymentService)
	service := target.NewService(logger, target.NewRepository(db), targetTypeService, tagService, dsService, deploymentService, config, publisher)

	client := inttest.SetupHTTPServer(t, func(router *gin.RouterGroup) {
		authentication := inttest.Authentication{User: inttest.User("acme")}
		targetHandler := target.NewHandler(service)
		metadataHandler := metadata.NewHandler(metadataService, model.TargetMetadata, targetHandler.ResolveTarget)
		target.Routes(router, authentication, inttest.Authorization{}, targetHandler, metadataHandler)
	})

	find := func(controllerID string) *model.Target {
		found, err := service.Find(ctx, controllerID)
		require.NoError(t, err)
		return found
	}

	dsType := &model.DistributionSetType{Key: "os", Name: "OS"}
	require.NoError(t, db.WithContext(ctx).Omit(clause.Associations).Create(dsType).Error)
	ds := &model.DistributionSet{Name: "firmware", Version: "1.0", TypeID: dsType.ID, Complete: true, Valid: true}
	require.NoError(t, db.WithContext(ctx).Omit(clause.Associations).Create(ds).Error)
	next := &model.DistributionSet{Name: "firmware", Version: "2.0", TypeID: dsType.ID, Complete: true, Valid: true}
	require.NoError(t, db.WithContext(ctx).Omit(clause.Associations).Create(next).Error)

	var created []target.Response
	client.PostJSON(t, "/targets", strings.NewReader(`[
		{"controllerId": "device-1", "name": "Device 1", "address": "http://10.0.0.1:8080/poll"},
		{"controllerId": "device-2", "securityToken": "secret"}
	]`), &created)

	t.Run("Create", func(t *testing.T) {
		require.Len(t, created, 2)
		assert.Equal(t, "device-1", created[0].ControllerID)
		assert.Equal(t, "Device 1", created[0].Name)
		assert.Equal(t, "10.0.0.1", created[0].IPAddress)
		assert.NotEmpty(t, created[0].SecurityToken)
		assert.Equal(t, "unknown", created[0].UpdateStatus)
		assert.Nil(t, created[0].PollStatus)
		assert.Nil(t, created[0].AutoConfirmActive)
		assert.True(t, strings.HasSuffix(created[0].Links["self"].Href, "/targets/device-1"))
		assert.Equal(t, "device-2", created[1].Name, "name defaults to the controller id")
		assert.Equal(t, "secret", created[1].SecurityToken)
	})

	t.Run("CreateInvalid", func(t *testing.T) {
		client.DoJSON(t, http.MethodPost, "/targets", strings.NewReader(`[{"controllerId": "device-1"}]`), http.StatusConflict, nil)
		client.DoJSON(t, http.MethodPost, "/targets", strings.NewReader(`[{"controllerId": "device-9", "targetType": 999999}]`), http.StatusNotFound, nil)
		client.DoJSON(t, http.MethodPost, "/targets", strings.NewReader(`[{"name": "no controller id"}]`), http.StatusBadRequest, nil)
	})

	t.Run("Find", func(t *testing.T) {
		var found target.Response
		client.GetJSON(t, "/targets/device-2", &found)
		assert.Equal(t, "device-2", found.ControllerID)

		client.Do(t, http.MethodGet, "/targets/unknown", nil, http.StatusNotFound)

		var page handler.PagedList[target.Response]
		client.GetJSON(t, "/targets?q=name==device-*&sort=controllerId:DESC", &page)
		require.Equal(t, int64(1), page.Total)
		assert.Equal(t, "device-2", page.Content[0].ControllerID)

		client.Do(t, http.MethodGet, "/targets?q=unknown==1", nil, http.StatusBadRequest)
	})

	t.Run("PollStatus", func(t *testing.T) {
		polled := time.Now().Add(-time.Hour)
		require.NoError(t, db.WithContext(ctx).Model(&model.Target{}).Where("controller_id = ?", "device-1").Update("last_controller_request_at", polled).Error)

		var found target.Response
		client.GetJSON(t, "/targets/device-1", &found)
		require.NotNil(t, found.PollStatus)
		assert.Equal(t, polled.UnixMilli(), found.PollStatus.LastRequestAt)
		assert.Equal(t, polled.Add(5*time.Minute).UnixMilli(), found.PollStatus.NextExpectedRequestAt)
		assert.True(t, found.PollStatus.Overdue)
	})

	t.Run("Update", func(t *testing.T) {
		var updated target.Response
		client.PutJSON(t, "/targets/device-2", strings.NewReader(`{"description": "lab device", "securityToken": ""}`), &updated)
		assert.Equal(t, "lab device", updated.Description)
		assert.Equal(t, "secret", updated.SecurityToken, "an empty token keeps the current one")

		client.DoJSON(t, http.MethodPut, "/targets/device-2", strings.NewReader(`{"requestAttributes": false}`), http.StatusBadRequest, nil)

		client.PutJSON(t, "/targets/device-2", strings.NewReader(`{"requestAttributes": true}`), &updated)
		assert.True(t, updated.RequestAttributes)
		assert.Equal(t, []string{"device-2"}, publisher.attributesRequested())
	})

	t.Run("Attributes", func(t *testing.T) {
		client.Do(t, http.MethodGet, "/targets/device-2/attributes", nil, http.StatusNoContent)

		device := &model.Target{}
		require.NoError(t, db.Where("controller_id = ?", "device-2").First(device).Error)
		device.Attributes = map[string]string{"hw.revision": "2"}
		require.NoError(t, db.WithContext(ctx).Omit(clause.Associations).Save(device).Error)

		var attributes map[string]string
		client.GetJSON(t, "/targets/device-2/attributes", &attributes)
		assert.Equal(t, map[string]string{"hw.revision": "2"}, attributes)

		var page handler.PagedList[target.Response]
		client.GetJSON(t, "/targets?q=attribute.hw.revision==2", &page)
		require.Equal(t, int64(1), page.Total)
		assert.Equal(t, "device-2", page.Content[0].ControllerID)
	})

	t.Run("TargetType", func(t *testing.T) {
		types, err := targetTypeService.Create(ctx, []targettype.NewType{{Type: model.TargetType{Key: "gateway", Name: "Gateway"}}})
		require.NoError(t, err)

		client.DoJSON(t, http.MethodPost, "/targets/device-2/targettype", strings.NewReader(fmt.Sprintf(`{"id": %d}`, types[0].ID)), http.StatusOK, nil)
		var found target.Response
		client.GetJSON(t, "/targets/device-2", &found)
		require.NotNil(t, found.TargetType)
		assert.Equal(t, types[0].ID, *found.TargetType)
		assert.Equal(t, "Gateway", found.TargetTypeName)

		body := strings.NewReader(fmt.Sprintf(`[{"id": %d}]`, ds.ID))
		client.DoJSON(t, http.MethodPost, "/targets/device-2/assignedDS", body, http.StatusBadRequest, nil)

		client.PutJSON(t, "/targets/device-2", strings.NewReader(`{"targetType": -1}`), &found)
		assert.Nil(t, found.TargetType)
	})

	t.Run("AssignDistributionSet", func(t *testing.T) {
		client.Do(t, http.MethodGet, "/targets/device-1/assignedDS", nil, http.StatusNoContent)

		var result target.AssignmentResponse
		body := strings.NewReader(fmt.Sprintf(`[{"id": %d, "type": "soft", "weight": 100}]`, ds.ID))
		client.DoJSON(t, http.MethodPost, "/targets/device-1/assignedDS", body, http.StatusOK, &result)
		assert.Equal(t, 1, result.Assigned)
		assert.Equal(t, 1, result.Total)
		require.Len(t, result.AssignedActions, 1)
		actionID := result.AssignedActions[0].ID
		assert.True(t, strings.HasSuffix(result.AssignedActions[0].Links["self"].Href, fmt.Sprintf("/targets/device-1/actions/%d", actionID)))
		assert.Len(t, publisher.assignments(), 1)

		var assigned distributionset.Response
		client.GetJSON(t, "/targets/device-1/assignedDS", &assigned)
		assert.Equal(t, ds.ID, assigned.ID)

		body = strings.NewReader(fmt.Sprintf(`[{"id": %d}]`, ds.ID))
		client.DoJSON(t, http.MethodPost, "/targets/device-1/assignedDS", body, http.StatusOK, &result)
		assert.Equal(t, 0, result.Assigned)
		assert.Equal(t, 1, result.AlreadyAssigned)

		client.DoJSON(t, http.MethodPost, "/targets/device-1/assignedDS", strings.NewReader(`[{"id": 999999}]`), http.StatusNotFound, nil)
		client.DoJSON(t, http.MethodPost, "/targets/device-1/assignedDS", strings.NewReader(fmt.Sprintf(`[{"id": %d, "type": "later"}]`, ds.ID)), http.StatusBadRequest, nil)
		client.DoJSON(t, http.MethodPost, "/targets/device-1/assignedDS", strings.NewReader(fmt.Sprintf(`[{"id": %d, "type": "timeforced"}]`, ds.ID)), http.StatusBadRequest, nil)
		client.DoJSON(t, http.MethodPost, "/targets/device-1/assignedDS", strings.NewReader(`[]`), http.StatusBadRequest, nil)
	})

	t.Run("AssignOffline", func(t *testing.T) {
		client.Do(t, http.MethodGet, "/targets/device-2/installedDS", nil, http.StatusNoContent)

		var result target.AssignmentResponse
		body := strings.NewReader(fmt.Sprintf(`[{"id": %d}]`, next.ID))
		client.DoJSON(t, http.MethodPost, "/targets/device-2/assignedDS?offline=true", body, http.StatusOK, &result)
		assert.Equal(t, 1, result.Assigned)

		var installed distributionset.Response
		client.GetJSON(t, "/targets/device-2/installedDS", &installed)
		assert.Equal(t, next.ID, installed.ID)

		var found target.Response
		client.GetJSON(t, "/targets/device-2", &found)
		assert.Equal(t, "in_sync", found.UpdateStatus)
		assert.NotNil(t, found.InstalledAt)

		client.DoJSON(t, http.MethodPost, "/targets/device-2/assignedDS?offline=maybe", strings.NewReader(fmt.Sprintf(`[{"id": %d}]`, next.ID)), http.StatusBadRequest, nil)
	})

	t.Run("DistributionSetTargets", func(t *testing.T) {
		var page handler.PagedList[target.Response]
		client.GetJSON(t, fmt.Sprintf("/distributionsets/%d/assignedTargets", ds.ID), &page)
		require.Equal(t, int64(1), page.Total)
		assert.Equal(t, "device-1", page.Content[0].ControllerID)

		client.GetJSON(t, fmt.Sprintf("/distributionsets/%d/installedTargets", next.ID), &page)
		require.Equal(t, int64(1), page.Total)
		assert.Equal(t, "device-2", page.Content[0].ControllerID)

		var result target.AssignmentResponse
		body := strings.NewReader(`[{"id": "device-1", "type": "forced"}, {"id": "device-2"}]`)
		client.DoJSON(t, http.MethodPost, fmt.Sprintf("/distributionsets/%d/assignedTargets", next.ID), body, http.StatusOK, &result)
		assert.Equal(t, 2, result.Assigned, "an offline installation isn't an active assignment")
		assert.Equal(t, 2, result.Total)
		assert.Len(t, result.AssignedActions, 2)

		client.DoJSON(t, http.MethodPost, fmt.Sprintf("/distributionsets/%d/assignedTargets", next.ID), strings.NewReader(`[{"id": "unknown"}]`), http.StatusNotFound, nil)
		client.Do(t, http.MethodGet, "/distributionsets/999999/assignedTargets", nil, http.StatusNotFound)
	})

	t.Run("Tags", func(t *testing.T) {
		tags, err := tagService.Create(ctx, model.TargetTagKind, []model.Tag{{Name: "lab"}})
		require.NoError(t, err)
		path := fmt.Sprintf("/targettags/%d/assigned", tags[0].ID)

		client.DoJSON(t, http.MethodPost, path, strings.NewReader(`["device-1", "device-2"]`), http.StatusOK, nil)
		client.DoJSON(t, http.MethodPost, path, strings.NewReader(`["unknown"]`), http.StatusNotFound, nil)

		var page handler.PagedList[target.Response]
		client.GetJSON(t, path, &page)
		assert.Equal(t, int64(2), page.Total)

		client.Delete(t, path+"/device-1")
		client.GetJSON(t, "/targets?q=tag==lab", &page)
		require.Equal(t, int64(1), page.Total)
		assert.Equal(t, "device-2", page.Content[0].ControllerID)

		var assigned []tag.Response
		client.GetJSON(t, "/targets/device-2/tags", &assigned)
		require.Len(t, assigned, 1)
		assert.Equal(t, "lab", assigned[0].Name)
	})

	t.Run("Metadata", func(t *testing.T) {
		client.PostJSON(t, "/targets/device-1/metadata", strings.NewReader(`[{"key": "region", "value": "eu"}]`), &[]metadata.Response{})

		var found metadata.Response
		client.GetJSON(t, "/targets/device-1/metadata/region", &found)
		assert.Equal(t, "eu", found.Value)

		var page handler.PagedList[target.Response]
		client.GetJSON(t, "/targets?q=metadata.region==eu", &page)
		require.Equal(t, int64(1), page.Total)
		assert.Equal(t, "device-1", page.Content[0].ControllerID)

		client.Do(t, http.MethodGet, "/targets/unknown/metadata", nil, http.StatusNotFound)
	})

	t.Run("AutoConfirm", func(t *testing.T) {
		config.set(tenantconfig.UserConfirmationEnabled, true)
		defer config.set(tenantconfig.UserConfirmationEnabled, false)

		var found target.Response
		client.GetJSON(t, "/targets/device-1", &found)
		require.NotNil(t, found.AutoConfirmActive)
		assert.False(t, *found.AutoConfirmActive)

		result, err := deploymentService.Assign(ctx, []deployment.Request{{TargetID: find("device-1").ID, DistributionSetID: ds.ID}})
		require.NoError(t, err)
		require.Len(t, result.Actions, 1)
		assert.Equal(t, model.ActionStatusWaitForConfirmation, result.Actions[0].Status)

		client.DoJSON(t, http.MethodPost, "/targets/device-1/autoConfirm/activate", strings.NewReader(`{"remark": "trusted"}`), http.StatusOK, nil)
		client.DoJSON(t, http.MethodPost, "/targets/device-1/autoConfirm/activate", strings.NewReader(`{}`), http.StatusConflict, nil)

		var state target.AutoConfirmResponse
		client.GetJSON(t, "/targets/device-1/autoConfirm", &state)
		assert.True(t, state.Active)
		assert.Equal(t, "tester", state.Initiator)
		assert.Equal(t, "trusted", state.Remark)
		assert.Contains(t, state.Links, "deactivate")

		var confirmed model.Action
		require.NoError(t, db.First(&confirmed, result.Actions[0].ID).Error)
		assert.Equal(t, model.ActionStatusRunning, confirmed.Status)

		client.Do(t, http.MethodPost, "/targets/device-1/autoConfirm/deactivate", nil, http.StatusOK)
		client.GetJSON(t, "/targets/device-1/autoConfirm", &state)
		assert.False(t, state.Active)
		assert.Contains(t, state.Links, "activate")
	})

	t.Run("Delete", func(t *testing.T) {
		device := find("device-1")
		client.Delete(t, "/targets/device-1")
		client.Do(t, http.MethodGet, "/targets/device-1", nil, http.StatusNotFound)
		assert.Equal(t, []string{"device-1"}, publisher.deletedTargets())

		var count int64
		require.NoError(t, db.Model(&model.Action{}).Where("target_id = ?", device.ID).Count(&count).Error)
		assert.Zero(t, count)

		client.Do(t, http.MethodDelete, "/targets/device-1", nil, http.StatusNotFound)
	})
}

type config struct {
	mu     sync.Mutex
	values map[string]bool
}

func (c *config) set(key string, value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

func (c *config) Bool(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], nil
}

func (c *config) PollingTimes(context.Context) (time.Duration, time.Duration, error) {
	return 5 * time.Minute, 5 * time.Minute, nil
}

type publisher struct {
	mu        sync.Mutex
	assigned  []dmf.Assignment
	deleted   []string
	requested []string
}

func (p *publisher) Assign(_ context.Context, assignment dmf.Assignment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assigned = append(p.assigned, assignment)
	return nil
}

func (p *publisher) CancelDownload(context.Context, model.Target, uint) error {
	return nil
}

func (p *publisher) ThingDeleted(_ context.Context, target model.Target) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, target.ControllerID)
	return nil
}

func (p *publisher) RequestAttributesUpdate(_ context.Context, target model.Target) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requested = append(p.requested, target.ControllerID)
	return nil
}

func (p *publisher) assignments() []dmf.Assignment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.assigned
}

func (p *publisher) deletedTargets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deleted
}

func (p *publisher) attributesRequested() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requested
}
