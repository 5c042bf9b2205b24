package distributionset

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
	router := r.Group("/distributionsets", authentication.Authenticate)

	read := authorization.RequirePermission(model.ReadRepository)
	update := authorization.RequirePermission(model.UpdateRepository)

	router.GET("", read, handler.FindAll)
	router.GET("/:distributionSetId", read, handler.Find)
	router.POST("", authorization.RequirePermission(model.CreateRepository), handler.Create)
	router.PUT("/:distributionSetId", update, handler.Update)
	router.DELETE("/:distributionSetId", authorization.RequirePermission(model.DeleteRepository), handler.Delete)

	router.GET("/:distributionSetId/assignedSM", read, handler.FindModules)
	router.POST("/:distributionSetId/assignedSM", update, handler.AssignModules)
	router.DELETE("/:distributionSetId/assignedSM/:softwareModuleId", update, handler.UnassignModule)

	router.POST("/:distributionSetId/invalidate", update, handler.Invalidate)

	router.GET("/:distributionSetId/statistics", read, handler.Statistics)
	router.GET("/:distributionSetId/statistics/actions", read, handler.ActionStatistics)
	router.GET("/:distributionSetId/statistics/rollouts", read, handler.RolloutStatistics)
	router.GET("/:distributionSetId/statistics/autoassignments", read, handler.AutoAssignmentStatistics)

	metadata.Routes(
		router.Group("/:distributionSetId/metadata", read),
		router.Group("/:distributionSetId/metadata", update),
		metadataHandler,
	)

	tags := r.Group("/distributionsettags/:tagId/assigned", authentication.Authenticate)
	tags.GET("", read, handler.FindAllByTag)
	tags.POST("", update, handler.AssignTag)
	tags.DELETE("", update, handler.UnassignTag)
	tags.POST("/:distributionSetId", update, handler.AssignTagTo)
	tags.DELETE("/:distributionSetId", update, handler.UnassignTagFrom)
}
