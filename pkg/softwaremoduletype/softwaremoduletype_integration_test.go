package softwaremoduletype_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/pkg/inttest"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/softwaremoduletype"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftwareModuleTypeHandler(t *testing.T) {
	t.Parallel()

	db := inttest.SetupDB(t)
	service := softwaremoduletype.NewService(softwaremoduletype.NewRepository(db))

	client := inttest.SetupHTTPServer(t, func(router *gin.RouterGroup) {
		handler := softwaremoduletype.NewHandler(service)
		softwaremoduletype.Routes(router, inttest.Authentication{User: inttest.User("acme")}, inttest.Authorization{}, handler)
	})

	var created []softwaremoduletype.Response
	body := strings.NewReader(`[
		{"key": "firmware", "name": "Firmware", "description": "device firmware"},
		{"key": "app", "name": "Application", "maxAssignments": 5}
	]`)
	client.PostJSON(t, "/softwaremoduletypes", body, &created)
	require.Len(t, created, 2)
	firmware, app := created[0], created[1]

	t.Run("Create", func(t *testing.T) {
		assert.Equal(t, "firmware", firmware.Key)
		assert.Equal(t, 1, firmware.MaxAssignments)
		assert.Equal(t, 5, app.MaxAssignments)
		assert.False(t, firmware.Deleted)
		assert.True(t, strings.HasSuffix(firmware.Links["self"].Href, fmt.Sprintf("/softwaremoduletypes/%d", firmware.ID)))
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		body := strings.NewReader(`[{"key": "firmware", "name": "Other"}]`)
		client.DoJSON(t, http.MethodPost, "/softwaremoduletypes", body, http.StatusConflict, nil)
	})

	t.Run("CreateInvalidMaxAssignments", func(t *testing.T) {
		body := strings.NewReader(`[{"key": "invalid", "name": "Invalid", "maxAssignments": -1}]`)
		client.DoJSON(t, http.MethodPost, "/softwaremoduletypes", body, http.StatusBadRequest, nil)
	})

	t.Run("Update", func(t *testing.T) {
		var updated softwaremoduletype.Response
		client.PutJSON(t, fmt.Sprintf("/softwaremoduletypes/%d", app.ID), strings.NewReader(`{"colour": "blue"}`), &updated)

		assert.Equal(t, "blue", updated.Colour)
		assert.Equal(t, "Application", updated.Name)
	})

	t.Run("FindAll", func(t *testing.T) {
		var page handler.PagedList[softwaremoduletype.Response]
		client.GetJSON(t, "/softwaremoduletypes?q=maxassignments=gt=1", &page)

		require.Equal(t, int64(1), page.Total)
		assert.Equal(t, "app", page.Content[0].Key)
	})

	t.Run("DeleteUnused", func(t *testing.T) {
		var types []softwaremoduletype.Response
		client.PostJSON(t, "/softwaremoduletypes", strings.NewReader(`[{"key": "unused", "name": "Unused"}]`), &types)
		path := fmt.Sprintf("/softwaremoduletypes/%d", types[0].ID)

		client.Delete(t, path)

		client.Do(t, http.MethodGet, path, nil, http.StatusNotFound)
	})

	t.Run("DeleteInUse", func(t *testing.T) {
		ctx := inttest.Context(context.Background(), "acme")
		module := &model.SoftwareModule{Name: "kernel", Version: "1.0", TypeID: firmware.ID}
		require.NoError(t, db.WithContext(ctx).Omit("Type").Create(module).Error)
		path := fmt.Sprintf("/softwaremoduletypes/%d", firmware.ID)

		client.Delete(t, path)

		var deleted softwaremoduletype.Response
		client.GetJSON(t, path, &deleted)
		assert.True(t, deleted.Deleted)

		var page handler.PagedList[softwaremoduletype.Response]
		client.GetJSON(t, "/softwaremoduletypes?q=key==firmware", &page)
		assert.Equal(t, int64(0), page.Total)
	})
}
