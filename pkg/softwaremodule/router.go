package softwaremodule

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
	router := r.Group("/softwaremodules", authentication.Authenticate)

	read := authorization.RequirePermission(model.ReadRepository)
	update := authorization.RequirePermission(model.UpdateRepository)

	router.GET("", read, handler.FindAll)
	router.GET("/:softwareModuleId", read, handler.Find)
	router.POST("", authorization.RequirePermission(model.CreateRepository), handler.Create)
	router.PUT("/:softwareModuleId", update, handler.Update)
	router.DELETE("/:softwareModuleId", authorization.RequirePermission(model.DeleteRepository), handler.Delete)

	router.GET("/:softwareModuleId/artifacts", read, handler.FindArtifacts)
	router.GET("/:softwareModuleId/artifacts/:artifactId", read, handler.FindArtifact)
	router.GET("/:softwareModuleId/artifacts/:artifactId/download", read, handler.Download)
	router.POST("/:softwareModuleId/artifacts", authorization.RequirePermission(model.CreateRepository), handler.Upload)
	router.DELETE("/:softwareModuleId/artifacts/:artifactId", authorization.RequirePermission(model.DeleteRepository), handler.DeleteArtifact)

	metadata.Routes(
		router.Group("/:softwareModuleId/metadata", read),
		router.Group("/:softwareModuleId/metadata", update),
		metadataHandler,
	)
}
