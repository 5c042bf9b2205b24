package softwaremoduletype

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
	router := r.Group("/softwaremoduletypes", authentication.Authenticate)

	router.GET("", authorization.RequirePermission(model.ReadRepository), handler.FindAll)
	router.GET("/:softwareModuleTypeId", authorization.RequirePermission(model.ReadRepository), handler.Find)
	router.POST("", authorization.RequirePermission(model.CreateRepository), handler.Create)
	router.PUT("/:softwareModuleTypeId", authorization.RequirePermission(model.UpdateRepository), handler.Update)
	router.DELETE("/:softwareModuleTypeId", authorization.RequirePermission(model.DeleteRepository), handler.Delete)
}
