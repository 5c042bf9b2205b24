package distributionsettype_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/pkg/distributionsettype"
	"github.com/dhis2-sre/update-manager/pkg/inttest"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/softwaremoduletype"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributionSetTypeHandler(t *testing.T) {
	t.Parallel()

	db := inttest.SetupDB(t)
	smTypeService := softwaremoduletype.NewService(softwaremoduletype.NewRepository(db))
	service := distributionsettype.NewService(distributionsettype.NewRepository(db), smTypeService)

	client := inttest.SetupHTTPServer(t, func(router *gin.RouterGroup) {
		authentication := inttest.Authentication{User: inttest.User("acme")}
		softwaremoduletype.Routes(router, authentication, inttest.Authorization{}, softwaremoduletype.NewHandler(smTypeService))
		distributionsettype.Routes(router, authentication, inttest.Authorization{}, distributionsettype.NewHandler(service))
	})

	var smTypes []softwaremoduletype.Response
	client.PostJSON(t, "/softwaremoduletypes", strings.NewReader(`[
		{"key": "os", "name": "OS"},
		{"key": "app", "name": "Application", "maxAssignments": 10},
		{"key": "config", "name": "Configuration"}
	]`), &smTypes)
	require.Len(t, smTypes, 3)
	osType, appType, configType := smTypes[0], smTypes[1], smTypes[2]

	var created []distributionsettype.Response
	body := fmt.Sprintf(`[{
		"key": "os_app",
		"name": "OS with apps",
		"mandatorymodules": [{"id": %d}],
		"optionalmodules": [{"id": %d}]
	}]`, osType.ID, appType.ID)
	client.PostJSON(t, "/distributionsettypes", strings.NewReader(body), &created)
	require.Len(t, created, 1)
	dsType := created[0]

	t.Run("Create", func(t *testing.T) {
		assert.Equal(t, "os_app", dsType.Key)
		assert.True(t, strings.HasSuffix(dsType.Links["mandatorymodules"].Href, fmt.Sprintf("/distributionsettypes/%d/mandatorymoduletypes", dsType.ID)))

		var mandatory []softwaremoduletype.Response
		client.GetJSON(t, fmt.Sprintf("/distributionsettypes/%d/mandatorymoduletypes", dsType.ID), &mandatory)
		require.Len(t, mandatory, 1)
		assert.Equal(t, "os", mandatory[0].Key)

		var optional []softwaremoduletype.Response
		client.GetJSON(t, fmt.Sprintf("/distributionsettypes/%d/optionalmoduletypes", dsType.ID), &optional)
		require.Len(t, optional, 1)
		assert.Equal(t, "app", optional[0].Key)
	})

	t.Run("CreateWithUnknownModuleType", func(t *testing.T) {
		body := strings.NewReader(`[{"key": "unknown", "name": "Unknown", "mandatorymodules": [{"id": 999999}]}]`)
		client.DoJSON(t, http.MethodPost, "/distributionsettypes", body, http.StatusNotFound, nil)
	})

	t.Run("CreateWithModuleTypeGivenTwice", func(t *testing.T) {
		body := fmt.Sprintf(`[{"key": "twice", "name": "Twice", "mandatorymodules": [{"id": %d}], "optionalmodules": [{"id": %d}]}]`, osType.ID, osType.ID)
		client.DoJSON(t, http.MethodPost, "/distributionsettypes", strings.NewReader(body), http.StatusBadRequest, nil)
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		body := strings.NewReader(`[{"key": "os_app", "name": "Other"}]`)
		client.DoJSON(t, http.MethodPost, "/distributionsettypes", body, http.StatusConflict, nil)
	})

	t.Run("AddAndRemoveModuleType", func(t *testing.T) {
		path := fmt.Sprintf("/distributionsettypes/%d/optionalmoduletypes", dsType.ID)
		var updated distributionsettype.Response
		client.DoJSON(t, http.MethodPost, path, strings.NewReader(fmt.Sprintf(`{"id": %d}`, configType.ID)), http.StatusOK, &updated)

		var smType softwaremoduletype.Response
		client.GetJSON(t, fmt.Sprintf("%s/%d", path, configType.ID), &smType)
		assert.Equal(t, "config", smType.Key)

		client.Do(t, http.MethodGet, fmt.Sprintf("/distributionsettypes/%d/mandatorymoduletypes/%d", dsType.ID, configType.ID), nil, http.StatusNotFound)

		client.Delete(t, fmt.Sprintf("%s/%d", path, configType.ID))
		client.Do(t, http.MethodGet, fmt.Sprintf("%s/%d", path, configType.ID), nil, http.StatusNotFound)
	})

	t.Run("Update", func(t *testing.T) {
		var updated distributionsettype.Response
		client.PutJSON(t, fmt.Sprintf("/distributionsettypes/%d", dsType.ID), strings.NewReader(`{"description": "updated"}`), &updated)

		assert.Equal(t, "updated", updated.Description)
		assert.Equal(t, "os_app", updated.Key)
	})

	t.Run("FindAll", func(t *testing.T) {
		var page handler.PagedList[distributionsettype.Response]
		client.GetJSON(t, "/distributionsettypes?q=key==os*", &page)

		require.Equal(t, int64(1), page.Total)
		assert.Equal(t, dsType.ID, page.Content[0].ID)
	})

	t.Run("InUse", func(t *testing.T) {
		var types []distributionsettype.Response
		client.PostJSON(t, "/distributionsettypes", strings.NewReader(fmt.Sprintf(`[{"key": "used", "name": "Used", "mandatorymodules": [{"id": %d}]}]`, osType.ID)), &types)
		used := types[0]

		ctx := inttest.Context(context.Background(), "acme")
		ds := &model.DistributionSet{Name: "set", Version: "1", TypeID: used.ID}
		require.NoError(t, db.WithContext(ctx).Omit("Type").Create(ds).Error)

		body := strings.NewReader(fmt.Sprintf(`{"id": %d}`, appType.ID))
		client.DoJSON(t, http.MethodPost, fmt.Sprintf("/distributionsettypes/%d/optionalmoduletypes", used.ID), body, http.StatusConflict, nil)

		path := fmt.Sprintf("/distributionsettypes/%d", used.ID)
		client.Delete(t, path)

		var deleted distributionsettype.Response
		client.GetJSON(t, path, &deleted)
		assert.True(t, deleted.Deleted)
	})

	t.Run("DeleteUnused", func(t *testing.T) {
		path := fmt.Sprintf("/distributionsettypes/%d", dsType.ID)

		client.Delete(t, path)

		client.Do(t, http.MethodGet, path, nil, http.StatusNotFound)
	})
}
