package tenantconfig

import (
	"context"
	"net/http"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/gin-gonic/gin"
)

func NewHandler(service tenantConfigurationService) Handler {
	return Handler{service: service}
}

type tenantConfigurationService interface {
	Get(ctx context.Context, key string) (Value, error)
	GetAll(ctx context.Context) ([]Value, error)
	Set(ctx context.Context, key string, value any) (Value, error)
	SetMany(ctx context.Context, values map[string]any) ([]Value, error)
	Delete(ctx context.Context, key string) error
}

type Handler struct {
	service tenantConfigurationService
}

// ValueResponse is the effective value of a configuration key. Audit fields are only present for
// values overridden by the tenant.
type ValueResponse struct {
	Value          any           `json:"value"`
	Global         bool          `json:"global"`
	CreatedBy      string        `json:"createdBy,omitempty"`
	CreatedAt      *int64        `json:"createdAt,omitempty"`
	LastModifiedBy string        `json:"lastModifiedBy,omitempty"`
	LastModifiedAt *int64        `json:"lastModifiedAt,omitempty"`
	Links          handler.Links `json:"_links"`
}

func toResponse(c *gin.Context, value Value) ValueResponse {
	response := ValueResponse{
		Value:  value.Value,
		Global: value.Global,
		Links:  handler.SelfLink(c, "system", "configs", value.Key),
	}
	if value.Configuration != nil {
		response.CreatedBy = value.Configuration.CreatedBy
		response.CreatedAt = model.MillisPtr(&value.Configuration.CreatedAt)
		response.LastModifiedBy = value.Configuration.LastModifiedBy
		response.LastModifiedAt = model.MillisPtr(&value.Configuration.UpdatedAt)
	}
	return response
}

func toResponses(c *gin.Context, values []Value) map[string]ValueResponse {
	responses := make(map[string]ValueResponse, len(values))
	for _, value := range values {
		responses[value.Key] = toResponse(c, value)
	}
	return responses
}

// FindAll tenant configuration values
func (h Handler) FindAll(c *gin.Context) {
	// swagger:route GET /system/configs findAllTenantConfigurations
	//
	// Find all tenant configuration values
	//
	// Find the effective value of every configuration key. Values the tenant did not override are
	// marked as global.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TenantConfigurationValues
	//   401: Error
	//   403: Error
	values, err := h.service.GetAll(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toResponses(c, values))
}

// Find tenant configuration value
func (h Handler) Find(c *gin.Context) {
	// swagger:route GET /system/configs/{key} findTenantConfiguration
	//
	// Find tenant configuration value
	//
	// Find the effective value of a configuration key.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TenantConfigurationValue
	//   401: Error
	//   403: Error
	//   404: Error
	value, err := h.service.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toResponse(c, value))
}

type UpdateValueRequest struct {
	Value any `json:"value"`
}

// Update tenant configuration value
func (h Handler) Update(c *gin.Context) {
	// swagger:route PUT /system/configs/{key} updateTenantConfiguration
	//
	// Update tenant configuration value
	//
	// Override the value of a configuration key. The value must be of the type of the key.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TenantConfigurationValue
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   415: Error
	var request UpdateValueRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	if request.Value == nil {
		_ = c.Error(errdef.NewBadRequest("value is required"))
		return
	}

	value, err := h.service.Set(c.Request.Context(), c.Param("key"), request.Value)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toResponse(c, value))
}

// UpdateMany tenant configuration values
func (h Handler) UpdateMany(c *gin.Context) {
	// swagger:route PUT /system/configs updateTenantConfigurations
	//
	// Update tenant configuration values
	//
	// Override the values of several configuration keys at once. Either all values are saved or
	// none is.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: TenantConfigurationValues
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   415: Error
	var request map[string]any
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	values, err := h.service.SetMany(c.Request.Context(), request)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, toResponses(c, values))
}

// Delete tenant configuration value
func (h Handler) Delete(c *gin.Context) {
	// swagger:route DELETE /system/configs/{key} deleteTenantConfiguration
	//
	// Delete tenant configuration value
	//
	// Delete the tenants value of a configuration key so its default applies again.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200:
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	err := h.service.Delete(c.Request.Context(), c.Param("key"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}
