package targetfilter_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

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
	"github.com/dhis2-sre/update-manager/pkg/targetfilter"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

func TestTargetFilterHandler(t *testing.T) {
	t.Parallel()

	db := inttest.SetupDB(t)
	ctx := inttest.Context(context.Background(), "acme")
	logger := inttest.Logger()

	publisher := &publisher{}

	smTypeService := softwaremoduletype.NewService(softwaremoduletype.NewRepository(db))
	dsTypeService := distributionsettype.NewService(distributionsettype.NewRepository(db), smTypeService)
	tagService := tag.NewService(tag.NewRepository(db))
	metadataService := metadata.NewService(metadata.NewRepository(db))
	smService := softwaremodule.NewService(logger, softwaremodule.NewRepository(db), smTypeService, nil)
	deploymentService := deployment.NewService(logger, deployment.NewRepository(db), config{}, metadataService, publisher)
	dsService := distributionset.NewService(logger, distributionset.NewRepository(db), dsTypeService, smService, tagService, deploymentService)
	service := targetfilter.NewService(logger, targetfilter.NewRepository(db), dsService, deploymentService)
	checker := targetfilter.NewChecker(logger, service)

	client := inttest.SetupHTTPServer(t, func(router *gin.RouterGroup) {
		targetfilter.Routes(router, inttest.Authentication{User: inttest.User("acme")}, inttest.Authorization{}, targetfilter.NewHandler(service))
	})

	dsType := &model.DistributionSetType{Key: "os", Name: "OS"}
	require.NoError(t, db.WithContext(ctx).Omit(clause.Associations).Create(dsType).Error)
	ds := &model.DistributionSet{Name: "firmware", Version: "1.0", TypeID: dsType.ID, Complete: true, Valid: true}
	require.NoError(t, db.WithContext(ctx).Omit(clause.Associations).Create(ds).Error)
	incomplete := &model.DistributionSet{Name: "firmware", Version: "2.0", TypeID: dsType.ID, Valid: true}
	require.NoError(t, db.WithContext(ctx).Omit(clause.Associations).Create(incomplete).Error)
	gateway := &model.TargetType{Key: "gateway", Name: "Gateway"}
	require.NoError(t, db.WithContext(ctx).Omit(clause.Associations).Create(gateway).Error)

	targets := []model.Target{
		{ControllerID: "device-01", UpdateStatus: model.UpdateStatusUnknown},
		{ControllerID: "device-02", UpdateStatus: model.UpdateStatusUnknown},
		{ControllerID: "device-03", UpdateStatus: model.UpdateStatusUnknown},
		{ControllerID: "device-04", TargetTypeID: &gateway.ID, UpdateStatus: model.UpdateStatusUnknown},
		{ControllerID: "sensor-01", UpdateStatus: model.UpdateStatusUnknown},
	}
	require.NoError(t, db.WithContext(ctx).Omit(clause.Associations).Create(&targets).Error)

	var devices targetfilter.Response
	client.PostJSON(t, "/targetfilters", strings.NewReader(`{"name": "devices", "query": "controllerId==device-*"}`), &devices)

	t.Run("Create", func(t *testing.T) {
		assert.Equal(t, "devices", devices.Name)
		assert.Equal(t, "controllerId==device-*", devices.Query)
		assert.Nil(t, devices.AutoAssignDistributionSet)
		assert.True(t, strings.HasSuffix(devices.Links["autoAssignDS"].Href, fmt.Sprintf("/targetfilters/%d/autoAssignDS", devices.ID)))

		client.Do(t, http.MethodPost, "/targetfilters", strings.NewReader(`{"name": "devices", "query": "controllerId==x"}`), http.StatusConflict)
		client.Do(t, http.MethodPost, "/targetfilters", strings.NewReader(`{"name": "invalid", "query": "unknown==1"}`), http.StatusBadRequest)
		client.Do(t, http.MethodPost, "/targetfilters", strings.NewReader(`{"name": "invalid", "query": "controllerId=="}`), http.StatusBadRequest)
		client.Do(t, http.MethodPost, "/targetfilters", strings.NewReader(`{"query": "controllerId==x"}`), http.StatusBadRequest)
	})

	t.Run("Update", func(t *testing.T) {
		var sensors targetfilter.Response
		client.PostJSON(t, "/targetfilters", strings.NewReader(`{"name": "sensors", "query": "controllerId==sensor-01"}`), &sensors)

		var updated targetfilter.Response
		client.PutJSON(t, fmt.Sprintf("/targetfilters/%d", sensors.ID), strings.NewReader(`{"query": "controllerId==sensor-*"}`), &updated)
		assert.Equal(t, "sensors", updated.Name)
		assert.Equal(t, "controllerId==sensor-*", updated.Query)

		client.Do(t, http.MethodPut, fmt.Sprintf("/targetfilters/%d", sensors.ID), strings.NewReader(`{"query": "unknown==1"}`), http.StatusBadRequest)
		client.Do(t, http.MethodPut, fmt.Sprintf("/targetfilters/%d", sensors.ID), strings.NewReader(`{"name": "devices"}`), http.StatusConflict)
		client.Do(t, http.MethodPut, "/targetfilters/999999", strings.NewReader(`{"name": "x"}`), http.StatusNotFound)
	})

	t.Run("FindAll", func(t *testing.T) {
		var page handler.PagedList[targetfilter.Response]
		client.GetJSON(t, "/targetfilters?q=name==dev*", &page)
		require.Equal(t, int64(1), page.Total)
		assert.Equal(t, devices.ID, page.Content[0].ID)

		client.Do(t, http.MethodGet, "/targetfilters?q=unknown==1", nil, http.StatusBadRequest)
	})

	t.Run("AutoAssign", func(t *testing.T) {
		path := fmt.Sprintf("/targetfilters/%d/autoAssignDS", devices.ID)
		client.Do(t, http.MethodGet, path, nil, http.StatusNoContent)

		client.Do(t, http.MethodPost, path, strings.NewReader(fmt.Sprintf(`{"id": %d}`, incomplete.ID)), http.StatusBadRequest)
		client.Do(t, http.MethodPost, path, strings.NewReader(fmt.Sprintf(`{"id": %d, "type": "timeforced"}`, ds.ID)), http.StatusBadRequest)
		client.Do(t, http.MethodPost, path, strings.NewReader(`{"id": 999999}`), http.StatusNotFound)

		var assigned targetfilter.Response
		client.DoJSON(t, http.MethodPost, path, strings.NewReader(fmt.Sprintf(`{"id": %d, "type": "soft", "weight": 200}`, ds.ID)), http.StatusOK, &assigned)
		require.NotNil(t, assigned.AutoAssignDistributionSet)
		assert.Equal(t, ds.ID, *assigned.AutoAssignDistributionSet)
		assert.Equal(t, model.ActionTypeSoft, assigned.AutoAssignActionType)
		assert.Equal(t, 200, *assigned.AutoAssignWeight)
		assert.True(t, *assigned.ConfirmationRequired)

		var assignedDS distributionset.Response
		client.GetJSON(t, path, &assignedDS)
		assert.Equal(t, ds.ID, assignedDS.ID)
		assert.Equal(t, "os", assignedDS.Type)

		var page handler.PagedList[targetfilter.Response]
		client.GetJSON(t, fmt.Sprintf("/distributionsets/%d/autoAssignTargetFilters", ds.ID), &page)
		require.Equal(t, int64(1), page.Total)
		assert.Equal(t, devices.ID, page.Content[0].ID)
		client.Do(t, http.MethodGet, "/distributionsets/999999/autoAssignTargetFilters", nil, http.StatusNotFound)
	})

	t.Run("Check", func(t *testing.T) {
		require.NoError(t, checker.Handle(context.Background()))

		assert.ElementsMatch(t, []string{"device-01", "device-02", "device-03"}, publisher.controllerIDs(), "targets of incompatible types are left out")
		var actions []model.Action
		require.NoError(t, db.Where("distribution_set_id = ?", ds.ID).Find(&actions).Error)
		require.Len(t, actions, 3)
		assert.Equal(t, model.ActionTypeSoft, actions[0].Type)
		assert.Equal(t, 200, *actions[0].Weight)

		require.NoError(t, db.WithContext(ctx).Model(&model.Action{}).Where("distribution_set_id = ?", ds.ID).Updates(map[string]any{"status": model.ActionStatusFinished, "active": false}).Error)
		require.NoError(t, checker.Check(ctx))
		assert.Len(t, publisher.controllerIDs(), 3, "targets which had an action of the set aren't assigned again")

		added := model.Target{ControllerID: "device-05", UpdateStatus: model.UpdateStatusUnknown}
		require.NoError(t, db.WithContext(ctx).Omit(clause.Associations).Create(&added).Error)
		require.NoError(t, checker.Check(ctx))
		assert.Contains(t, publisher.controllerIDs(), "device-05")
		assert.Len(t, publisher.controllerIDs(), 4)
	})

	t.Run("Unassign", func(t *testing.T) {
		path := fmt.Sprintf("/targetfilters/%d/autoAssignDS", devices.ID)
		client.Do(t, http.MethodDelete, path, nil, http.StatusNoContent)
		client.Do(t, http.MethodGet, path, nil, http.StatusNoContent)

		var found targetfilter.Response
		client.GetJSON(t, fmt.Sprintf("/targetfilters/%d", devices.ID), &found)
		assert.Nil(t, found.AutoAssignDistributionSet)
		assert.Empty(t, found.AutoAssignActionType)
	})

	t.Run("Delete", func(t *testing.T) {
		client.Do(t, http.MethodDelete, fmt.Sprintf("/targetfilters/%d", devices.ID), nil, http.StatusOK)
		client.Do(t, http.MethodGet, fmt.Sprintf("/targetfilters/%d", devices.ID), nil, http.StatusNotFound)
		client.Do(t, http.MethodDelete, fmt.Sprintf("/targetfilters/%d", devices.ID), nil, http.StatusNotFound)
	})
}

type config struct{}

func (config) Bool(context.Context, string) (bool, error) {
	return false, nil
}

type publisher struct {
	mu       sync.Mutex
	assigned []dmf.Assignment
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

func (p *publisher) controllerIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.assigned))
	for _, assignment := range p.assigned {
		ids = append(ids, assignment.Target.ControllerID)
	}
	return ids
}
