package target

import (
	"github.com/dhis2-sre/update-manager/pkg/metadata"
	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/gin-gonic/gin"
)

type AuthenticationMiddleware interface {
	Authenticate(c *gin.Context)
}

type AuthorizationMiddleware interface {
	RequirePermission(permission string) gin.HandlerFunc
}

func Routes(r *gin.RouterGroup, authentication AuthenticationMiddleware, authorization AuthorizationMiddleware, handler Handler, metadataHandler metadata.Handler) {
	router := r.Group("/targets", authentication.Authenticate)

	read := authorization.RequirePermission(model.ReadTarget)
	update := authorization.RequirePermission(model.UpdateTarget)

	router.GET("", read, handler.FindAll)
	router.GET("/:targetId", read, handler.Find)
	router.POST("", authorization.RequirePermission(model.CreateTarget), handler.Create)
	router.PUT("/:targetId", update, handler.Update)
	router.DELETE("/:targetId", authorization.RequirePermission(model.DeleteTarget), handler.Delete)

	router.POST("/:targetId/targettype", update, handler.AssignType)
	router.DELETE("/:targetId/targettype", update, handler.UnassignType)
	router.GET("/:targetId/attributes", read, handler.FindAttributes)
	router.GET("/:targetId/tags", read, handler.FindTags)

	router.GET("/:targetId/assignedDS", read, authorization.RequirePermission(model.ReadRepository), handler.FindAssignedDistributionSet)
	router.GET("/:targetId/installedDS", read, authorization.RequirePermission(model.ReadRepository), handler.FindInstalledDistributionSet)
	router.POST("/:targetId/assignedDS", authorization.RequirePermission(model.ReadRepository), update, handler.AssignDistributionSets)

	router.GET("/:targetId/autoConfirm", read, handler.FindAutoConfirm)
	router.POST("/:targetId/autoConfirm/activate", update, handler.ActivateAutoConfirm)
	router.POST("/:targetId/autoConfirm/deactivate", update, handler.DeactivateAutoConfirm)

	metadata.Routes(
		router.Group("/:targetId/metadata", read),
		router.Group("/:targetId/metadata", update),
		metadataHandler,
	)

	tags := r.Group("/targettags/:tagId/assigned", authentication.Authenticate)
	tags.GET("", read, handler.FindAllByTag)
	tags.POST("", update, handler.AssignTag)
	tags.DELETE("", update, handler.UnassignTag)
	tags.POST("/:targetId", update, handler.AssignTagTo)
	tags.DELETE("/:targetId", update, handler.UnassignTagFrom)

	sets := r.Group("/distributionsets/:distributionSetId", authentication.Authenticate, authorization.RequirePermission(model.ReadRepository))
	sets.GET("/assignedTargets", read, handler.FindAssignedTargets)
	sets.GET("/installedTargets", read, handler.FindInstalledTargets)
	sets.POST("/assignedTargets", update, handler.AssignTargets)
}
