package targettype

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
	router := r.Group("/targettypes", authentication.Authenticate)

	router.GET("", authorization.RequirePermission(model.ReadTarget), handler.FindAll)
	router.GET("/:targetTypeId", authorization.RequirePermission(model.ReadTarget), handler.Find)
	router.POST("", authorization.RequirePermission(model.CreateTarget), handler.Create)
	router.PUT("/:targetTypeId", authorization.RequirePermission(model.UpdateTarget), handler.Update)
	router.DELETE("/:targetTypeId", authorization.RequirePermission(model.DeleteTarget), handler.Delete)

	router.GET("/:targetTypeId/compatibledistributionsettypes", authorization.RequirePermission(model.ReadTarget), handler.FindCompatible)
	router.POST("/:targetTypeId/compatibledistributionsettypes", authorization.RequirePermission(model.UpdateTarget), handler.AddCompatible)
	router.DELETE("/:targetTypeId/compatibledistributionsettypes/:distributionSetTypeId", authorization.RequirePermission(model.UpdateTarget), handler.RemoveCompatible)
}
