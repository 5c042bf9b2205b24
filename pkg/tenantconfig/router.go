package tenantconfig

import (
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/gin-gonic/gin"
)

type AuthenticationMiddleware interface {
	Authenticate(c *gin.Context)
}

type AuthorizationMiddleware interface {
	RequirePermission(permission string) gin.HandlerFunc
}

func Routes(r *gin.RouterGroup, authentication AuthenticationMiddleware, authorization AuthorizationMiddleware, handler Handler) {
	router := r.Group("/system/configs")
	router.Use(authentication.Authenticate, authorization.RequirePermission(model.TenantConfigurationPermission))

	router.GET("", handler.FindAll)
	router.PUT("", handler.UpdateMany)
	router.GET("/:key", handler.Find)
	router.PUT("/:key", handler.Update)
	router.DELETE("/:key", handler.Delete)
}
