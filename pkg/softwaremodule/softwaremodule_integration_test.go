package softwaremodule_test

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/pkg/inttest"
	"github.com/dhis2-sre/update-manager/pkg/metadata"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/softwaremodule"
	"github.com/dhis2-sre/update-manager/pkg/softwaremoduletype"
	"github.com/dhis2-sre/update-manager/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

func TestSoftwareModuleHandler(t *testing.T) {
	t.Parallel()

	db := inttest.SetupDB(t)
	minIO := inttest.SetupMinIO(t)
	store, err := storage.NewMinIOClient(t.Context(), inttest.Logger(), minIO, "artifacts")
	require.NoError(t, err)

	smTypeService := softwaremoduletype.NewService(softwaremoduletype.NewRepository(db))
	service := softwaremodule.NewService(inttest.Logger(), softwaremodule.NewRepository(db), smTypeService, store)
	metadataService := metadata.NewService(metadata.NewRepository(db))

	client := inttest.SetupHTTPServer(t, func(router *gin.RouterGroup) {
		authentication := inttest.Authentication{User: inttest.User("acme")}
		softwaremoduletype.Routes(router, authentication, inttest.Authorization{}, softwaremoduletype.NewHandler(smTypeService))
		smHandler := softwaremodule.NewHandler(service)
		metadataHandler := metadata.NewHandler(metadataService, model.SoftwareModuleMetadata, smHandler.ResolveModule)
		softwaremodule.Routes(router, authentication, inttest.Authorization{}, smHandler, metadataHandler)
	})

	client.PostJSON(t, "/softwaremoduletypes", strings.NewReader(`[{"key": "firmware", "name": "Firmware"}]`), &[]softwaremoduletype.Response{})

	var created []softwaremodule.Response
	body := strings.NewReader(`[
		{"name": "kernel", "version": "1.0", "type": "firmware", "vendor": "acme"},
		{"name": "bootloader", "version": "2.1", "type": "firmware"}
	]`)
	client.PostJSON(t, "/softwaremodules", body, &created)
	require.Len(t, created, 2)
	kernel, bootloader := created[0], created[1]

	t.Run("Create", func(t *testing.T) {
		assert.Equal(t, "firmware", kernel.Type)
		assert.Equal(t, "Firmware", kernel.TypeName)
		assert.Equal(t, "acme", kernel.Vendor)
		assert.True(t, strings.HasSuffix(kernel.Links["artifacts"].Href, fmt.Sprintf("/softwaremodules/%d/artifacts", kernel.ID)))
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		body := strings.NewReader(`[{"name": "kernel", "version": "1.0", "type": "firmware"}]`)
		client.DoJSON(t, http.MethodPost, "/softwaremodules", body, http.StatusConflict, nil)
	})

	t.Run("CreateWithUnknownType", func(t *testing.T) {
		body := strings.NewReader(`[{"name": "kernel", "version": "1.0", "type": "unknown"}]`)
		client.DoJSON(t, http.MethodPost, "/softwaremodules", body, http.StatusNotFound, nil)
	})

	t.Run("FindAll", func(t *testing.T) {
		var page handler.PagedList[softwaremodule.Response]
		client.GetJSON(t, "/softwaremodules?q=type==firmware;version=ge=2&sort=name:DESC", &page)

		require.Equal(t, int64(1), page.Total)
		assert.Equal(t, bootloader.ID, page.Content[0].ID)
	})

	artifactsPath := fmt.Sprintf("/softwaremodules/%d/artifacts", kernel.ID)

	t.Run("UploadAndDownload", func(t *testing.T) {
		var artifact softwaremodule.ArtifactResponse
		upload(t, client, artifactsPath, "image.bin", "kernel image", map[string]string{"sha1sum": "3e3e3bba8b2f1f3d1ed7e7c8c1b4a4ac4c3da1c5", "filename": "zImage"}, http.StatusBadRequest, nil)
		upload(t, client, artifactsPath, "image.bin", "kernel image", map[string]string{"filename": "zImage"}, http.StatusCreated, &artifact)

		assert.Equal(t, "zImage", artifact.ProvidedFilename)
		assert.Equal(t, int64(12), artifact.Size)
		assert.Len(t, artifact.Hashes.SHA256, 64)

		var artifacts []softwaremodule.ArtifactResponse
		client.GetJSON(t, artifactsPath, &artifacts)
		require.Len(t, artifacts, 1)

		content := client.Get(t, fmt.Sprintf("%s/%d/download", artifactsPath, artifact.ID))
		assert.Equal(t, "kernel image", string(content))

		upload(t, client, artifactsPath, "image.bin", "other", map[string]string{"filename": "zImage"}, http.StatusConflict, nil)

		client.Delete(t, fmt.Sprintf("%s/%d", artifactsPath, artifact.ID))
		client.Do(t, http.MethodGet, fmt.Sprintf("%s/%d", artifactsPath, artifact.ID), nil, http.StatusNotFound)
	})

	t.Run("Metadata", func(t *testing.T) {
		path := fmt.Sprintf("/softwaremodules/%d/metadata", kernel.ID)
		client.PostJSON(t, path, strings.NewReader(`[{"key": "partition", "value": "a", "targetVisible": true}]`), &[]metadata.Response{})

		var found metadata.Response
		client.GetJSON(t, path+"/partition", &found)
		assert.Equal(t, "a", found.Value)

		client.Do(t, http.MethodGet, "/softwaremodules/999999/metadata", nil, http.StatusNotFound)
	})

	t.Run("Locked", func(t *testing.T) {
		var locked softwaremodule.Response
		client.PutJSON(t, fmt.Sprintf("/softwaremodules/%d", bootloader.ID), strings.NewReader(`{"locked": true, "description": "stable"}`), &locked)
		assert.True(t, locked.Locked)
		assert.Equal(t, "stable", locked.Description)

		path := fmt.Sprintf("/softwaremodules/%d/artifacts", bootloader.ID)
		upload(t, client, path, "boot.bin", "boot", nil, http.StatusLocked, nil)

		body := strings.NewReader(`{"locked": false}`)
		client.DoJSON(t, http.MethodPut, fmt.Sprintf("/softwaremodules/%d", bootloader.ID), body, http.StatusBadRequest, nil)
	})

	t.Run("DeleteAssigned", func(t *testing.T) {
		ctx := inttest.Context(context.Background(), "acme")
		dsType := &model.DistributionSetType{Key: "os", Name: "OS"}
		require.NoError(t, db.WithContext(ctx).Create(dsType).Error)
		ds := &model.DistributionSet{Name: "set", Version: "1", TypeID: dsType.ID}
		require.NoError(t, db.WithContext(ctx).Omit(clause.Associations).Create(ds).Error)
		require.NoError(t, db.Exec("INSERT INTO distribution_set_modules (distribution_set_id, software_module_id) VALUES (?, ?)", ds.ID, bootloader.ID).Error)
		path := fmt.Sprintf("/softwaremodules/%d", bootloader.ID)

		client.Delete(t, path)

		var deleted softwaremodule.Response
		client.GetJSON(t, path, &deleted)
		assert.True(t, deleted.Deleted)
	})

	t.Run("Delete", func(t *testing.T) {
		path := fmt.Sprintf("/softwaremodules/%d", kernel.ID)

		client.Delete(t, path)

		client.Do(t, http.MethodGet, path, nil, http.StatusNotFound)
	})
}

func upload(t *testing.T, client *inttest.HTTPClient, path, filename, content string, fields map[string]string, status int, response any) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for name, value := range fields {
		require.NoError(t, w.WriteField(name, value))
	}
	require.NoError(t, w.Close())

	if status == http.StatusCreated {
		client.PostForm(t, path, w, &body, response)
		return
	}
	client.Do(t, http.MethodPost, path, &body, status, inttest.WithHeader("Content-Type", w.FormDataContentType()))
}
