package rollout

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
	router := r.Group("/rollouts", authentication.Authenticate)

	read := authorization.RequirePermission(model.ReadRollout)
	handle := authorization.RequirePermission(model.HandleRollout)
	approve := authorization.RequirePermission(model.ApproveRollout)

	router.GET("", read, handler.FindAll)
	router.GET("/:rolloutId", read, handler.Find)
	router.POST("", authorization.RequirePermission(model.CreateRollout), handler.Create)
	router.PUT("/:rolloutId", authorization.RequirePermission(model.UpdateRollout), handler.Update)
	router.DELETE("/:rolloutId", authorization.RequirePermission(model.DeleteRollout), handler.Delete)

	router.POST("/:rolloutId/approve", approve, handler.Approve)
	router.POST("/:rolloutId/deny", approve, handler.Deny)
	router.POST("/:rolloutId/start", handle, handler.Start)
	router.POST("/:rolloutId/pause", handle, handler.Pause)
	router.POST("/:rolloutId/resume", handle, handler.Resume)
	router.POST("/:rolloutId/stop", handle, handler.Stop)
	router.POST("/:rolloutId/triggerNextGroup", handle, handler.TriggerNextGroup)
	router.POST("/:rolloutId/retry", authorization.RequirePermission(model.CreateRollout), handler.Retry)

	router.GET("/:rolloutId/deploygroups", read, handler.FindGroups)
	router.GET("/:rolloutId/deploygroups/:groupId", read, handler.FindGroup)
	router.GET("/:rolloutId/deploygroups/:groupId/targets", read, authorization.RequirePermission(model.ReadTarget), handler.FindGroupTargets)
}
