package metadata_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/pkg/inttest"
	"github.com/dhis2-sre/update-manager/pkg/metadata"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ownerResolver resolves owners 1 and 2, any other owner doesn't exist.
func ownerResolver(c *gin.Context) (uint, bool) {
	id, ok := handler.GetPathParameter(c, "ownerId")
	if !ok {
		return 0, false
	}
	if id != 1 && id != 2 {
		_ = c.Error(errdef.NewNotFound("owner %d doesn't exist", id))
		return 0, false
	}
	return id, true
}

func TestMetadataHandler(t *testing.T) {
	t.Parallel()

	db := inttest.SetupDB(t)
	service := metadata.NewService(metadata.NewRepository(db))

	client := inttest.SetupHTTPServer(t, func(router *gin.RouterGroup) {
		authentication := inttest.Authentication{User: inttest.User("acme")}
		group := router.Group("/softwaremodules/:ownerId/metadata", authentication.Authenticate)
		metadata.Routes(group, group, metadata.NewHandler(service, model.SoftwareModuleMetadata, ownerResolver))
	})

	t.Run("CreateAndFind", func(t *testing.T) {
		var created []metadata.Response
		body := strings.NewReader(`[{"key": "partition", "value": "a", "targetVisible": true}, {"key": "vendor", "value": "acme"}]`)
		client.PostJSON(t, "/softwaremodules/1/metadata", body, &created)

		require.Len(t, created, 2)
		require.NotNil(t, created[0].TargetVisible)
		assert.True(t, *created[0].TargetVisible)

		var page handler.PagedList[metadata.Response]
		client.GetJSON(t, "/softwaremodules/1/metadata?q=key==part*", &page)
		assert.Equal(t, int64(1), page.Total)
		assert.Equal(t, "partition", page.Content[0].Key)

		var found metadata.Response
		client.GetJSON(t, "/softwaremodules/1/metadata/vendor", &found)
		assert.Equal(t, "acme", found.Value)
		assert.False(t, *found.TargetVisible)

		client.GetJSON(t, "/softwaremodules/2/metadata", &page)
		assert.Equal(t, int64(0), page.Total)
		assert.NotNil(t, page.Content)
	})

	t.Run("Duplicate", func(t *testing.T) {
		body := `[{"key": "duplicate", "value": "a"}]`
		client.PostJSON(t, "/softwaremodules/2/metadata", strings.NewReader(body), &[]metadata.Response{})

		client.DoJSON(t, http.MethodPost, "/softwaremodules/2/metadata", strings.NewReader(body), http.StatusConflict, nil)
	})

	t.Run("DuplicateInRequest", func(t *testing.T) {
		body := strings.NewReader(`[{"key": "same", "value": "a"}, {"key": "same", "value": "b"}]`)
		client.DoJSON(t, http.MethodPost, "/softwaremodules/2/metadata", body, http.StatusBadRequest, nil)
	})

	t.Run("UpdateAndDelete", func(t *testing.T) {
		client.PostJSON(t, "/softwaremodules/2/metadata", strings.NewReader(`[{"key": "channel", "value": "beta"}]`), &[]metadata.Response{})

		var updated metadata.Response
		client.PutJSON(t, "/softwaremodules/2/metadata/channel", strings.NewReader(`{"value": "stable", "targetVisible": true}`), &updated)
		assert.Equal(t, "stable", updated.Value)
		assert.True(t, *updated.TargetVisible)

		client.Delete(t, "/softwaremodules/2/metadata/channel")
		client.Do(t, http.MethodGet, "/softwaremodules/2/metadata/channel", nil, http.StatusNotFound)
		client.Do(t, http.MethodDelete, "/softwaremodules/2/metadata/channel", nil, http.StatusNotFound)
	})

	t.Run("UnknownOwner", func(t *testing.T) {
		client.Do(t, http.MethodGet, "/softwaremodules/3/metadata", nil, http.StatusNotFound)
	})

	t.Run("InvalidFilter", func(t *testing.T) {
		client.Do(t, http.MethodGet, "/softwaremodules/1/metadata?q=unknown==1", nil, http.StatusBadRequest)
	})

	t.Run("FindTargetVisible", func(t *testing.T) {
		visible, err := service.FindTargetVisible(inttest.Context(context.Background(), "acme"), []uint{1, 2})

		require.NoError(t, err)
		require.Len(t, visible[1], 1)
		assert.Equal(t, "partition", visible[1][0].Key)
		assert.Empty(t, visible[2])
	})
}

func TestMetadataTargetVisibleOnlyOnSoftwareModules(t *testing.T) {
	t.Parallel()

	db := inttest.SetupDB(t)
	service := metadata.NewService(metadata.NewRepository(db))
	ctx := inttest.Context(context.Background(), "acme")

	created, err := service.Create(ctx, model.TargetMetadata, 1, []model.Metadata{{Key: "region", Value: "eu", TargetVisible: true}})

	require.NoError(t, err)
	assert.False(t, created[0].TargetVisible)
	assert.Equal(t, model.TargetMetadata, created[0].OwnerKind)
}
