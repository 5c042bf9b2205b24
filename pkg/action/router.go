package action

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
	router := r.Group("/actions", authentication.Authenticate)

	router.GET("", authorization.RequirePermission(model.ReadTarget), handler.FindAll)
	router.GET("/:actionId", authorization.RequirePermission(model.ReadTarget), handler.Find)
	router.DELETE("", authorization.RequirePermission(model.DeleteRepository), handler.DeleteAll)
	router.DELETE("/:actionId", authorization.RequirePermission(model.DeleteRepository), handler.Delete)

	targetActions := r.Group("/targets/:targetId/actions", authentication.Authenticate)

	read := authorization.RequirePermission(model.ReadTarget)
	update := authorization.RequirePermission(model.UpdateTarget)

	targetActions.GET("", read, handler.FindAllOfTarget)
	targetActions.GET("/:actionId", read, handler.FindOfTarget)
	targetActions.GET("/:actionId/status", read, handler.FindStatuses)
	targetActions.DELETE("/:actionId", update, handler.Cancel)
	targetActions.PUT("/:actionId", update, handler.Update)
	targetActions.PUT("/:actionId/confirmation", update, handler.Confirm)
}
