package targetfilter

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
	router := r.Group("/targetfilters", authentication.Authenticate)

	read := authorization.RequirePermission(model.ReadTarget)
	update := authorization.RequirePermission(model.UpdateTarget)
	readRepository := authorization.RequirePermission(model.ReadRepository)

	router.GET("", read, handler.FindAll)
	router.GET("/:targetFilterId", read, handler.Find)
	router.POST("", authorization.RequirePermission(model.CreateTarget), handler.Create)
	router.PUT("/:targetFilterId", update, handler.Update)
	router.DELETE("/:targetFilterId", authorization.RequirePermission(model.DeleteTarget), handler.Delete)

	router.GET("/:targetFilterId/autoAssignDS", read, readRepository, handler.FindDistributionSet)
	router.POST("/:targetFilterId/autoAssignDS", update, readRepository, handler.AssignDistributionSet)
	router.DELETE("/:targetFilterId/autoAssignDS", update, handler.UnassignDistributionSet)

	r.GET("/distributionsets/:distributionSetId/autoAssignTargetFilters", authentication.Authenticate, readRepository, read, handler.FindAllByDistributionSet)
}
