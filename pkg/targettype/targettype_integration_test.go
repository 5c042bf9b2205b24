package targettype_test

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
	"github.com/dhis2-sre/update-manager/pkg/targettype"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

func TestTargetTypeHandler(t *testing.T) {
	t.Parallel()

	db := inttest.SetupDB(t)
	smTypeService := softwaremoduletype.NewService(softwaremoduletype.NewRepository(db))
	dsTypeService := distributionsettype.NewService(distributionsettype.NewRepository(db), smTypeService)
	service := targettype.NewService(targettype.NewRepository(db), dsTypeService)

	client := inttest.SetupHTTPServer(t, func(router *gin.RouterGroup) {
		authentication := inttest.Authentication{User: inttest.User("acme")}
		distributionsettype.Routes(router, authentication, inttest.Authorization{}, distributionsettype.NewHandler(dsTypeService))
		targettype.Routes(router, authentication, inttest.Authorization{}, targettype.NewHandler(service))
	})

	var dsTypes []distributionsettype.Response
	client.PostJSON(t, "/distributionsettypes", strings.NewReader(`[{"key": "os", "name": "OS"}, {"key": "app", "name": "App"}]`), &dsTypes)
	require.Len(t, dsTypes, 2)

	var created []targettype.Response
	body := fmt.Sprintf(`[{"key": "gateway", "name": "Gateway", "compatibledistributionsettypes": [{"id": %d}]}]`, dsTypes[0].ID)
	client.PostJSON(t, "/targettypes", strings.NewReader(body), &created)
	require.Len(t, created, 1)
	gateway := created[0]
	compatiblePath := fmt.Sprintf("/targettypes/%d/compatibledistributionsettypes", gateway.ID)

	t.Run("Create", func(t *testing.T) {
		assert.Equal(t, "gateway", gateway.Key)
		assert.True(t, strings.HasSuffix(gateway.Links["compatibledistributionsettypes"].Href, compatiblePath))

		var compatible []distributionsettype.Response
		client.GetJSON(t, compatiblePath, &compatible)
		require.Len(t, compatible, 1)
		assert.Equal(t, "os", compatible[0].Key)
	})

	t.Run("CreateWithUnknownDistributionSetType", func(t *testing.T) {
		body := strings.NewReader(`[{"key": "unknown", "name": "Unknown", "compatibledistributionsettypes": [{"id": 999999}]}]`)
		client.DoJSON(t, http.MethodPost, "/targettypes", body, http.StatusNotFound, nil)
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		client.DoJSON(t, http.MethodPost, "/targettypes", strings.NewReader(`[{"key": "gateway", "name": "Other"}]`), http.StatusConflict, nil)
	})

	t.Run("AddAndRemoveCompatible", func(t *testing.T) {
		var updated targettype.Response
		client.DoJSON(t, http.MethodPost, compatiblePath, strings.NewReader(fmt.Sprintf(`[{"id": %d}]`, dsTypes[1].ID)), http.StatusOK, &updated)

		var compatible []distributionsettype.Response
		client.GetJSON(t, compatiblePath, &compatible)
		assert.Len(t, compatible, 2)

		client.Delete(t, fmt.Sprintf("%s/%d", compatiblePath, dsTypes[1].ID))
		client.Do(t, http.MethodDelete, fmt.Sprintf("%s/%d", compatiblePath, dsTypes[1].ID), nil, http.StatusNotFound)

		client.GetJSON(t, compatiblePath, &compatible)
		assert.Len(t, compatible, 1)
	})

	t.Run("UpdateKeepsKey", func(t *testing.T) {
		var updated targettype.Response
		client.PutJSON(t, fmt.Sprintf("/targettypes/%d", gateway.ID), strings.NewReader(`{"key": "other", "name": "Edge gateway"}`), &updated)

		assert.Equal(t, "gateway", updated.Key)
		assert.Equal(t, "Edge gateway", updated.Name)
	})

	t.Run("FindAll", func(t *testing.T) {
		var page handler.PagedList[targettype.Response]
		client.GetJSON(t, "/targettypes?q=name==edge*", &page)

		require.Equal(t, int64(1), page.Total)
		assert.Equal(t, gateway.ID, page.Content[0].ID)
	})

	t.Run("DeleteInUse", func(t *testing.T) {
		ctx := inttest.Context(context.Background(), "acme")
		target := &model.Target{ControllerID: "device-1", Name: "device-1", TargetTypeID: &gateway.ID}
		require.NoError(t, db.WithContext(ctx).Omit(clause.Associations).Create(target).Error)

		client.Do(t, http.MethodDelete, fmt.Sprintf("/targettypes/%d", gateway.ID), nil, http.StatusConflict)

		require.NoError(t, db.Delete(target).Error)
		client.Delete(t, fmt.Sprintf("/targettypes/%d", gateway.ID))
		client.Do(t, http.MethodGet, fmt.Sprintf("/targettypes/%d", gateway.ID), nil, http.StatusNotFound)
	})
}
