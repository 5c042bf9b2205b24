package distributionsettype

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
	router := r.Group("/distributionsettypes", authentication.Authenticate)

	read := authorization.RequirePermission(model.ReadRepository)
	update := authorization.RequirePermission(model.UpdateRepository)

	router.GET("", read, handler.FindAll)
	router.GET("/:distributionSetTypeId", read, handler.Find)
	router.POST("", authorization.RequirePermission(model.CreateRepository), handler.Create)
	router.PUT("/:distributionSetTypeId", update, handler.Update)
	router.DELETE("/:distributionSetTypeId", authorization.RequirePermission(model.DeleteRepository), handler.Delete)

	router.GET("/:distributionSetTypeId/mandatorymoduletypes", read, handler.FindMandatoryModuleTypes)
	router.GET("/:distributionSetTypeId/mandatorymoduletypes/:softwareModuleTypeId", read, handler.FindMandatoryModuleType)
	router.POST("/:distributionSetTypeId/mandatorymoduletypes", update, handler.AddMandatoryModuleType)
	router.DELETE("/:distributionSetTypeId/mandatorymoduletypes/:softwareModuleTypeId", update, handler.RemoveMandatoryModuleType)

	router.GET("/:distributionSetTypeId/optionalmoduletypes", read, handler.FindOptionalModuleTypes)
	router.GET("/:distributionSetTypeId/optionalmoduletypes/:softwareModuleTypeId", read, handler.FindOptionalModuleType)
	router.POST("/:distributionSetTypeId/optionalmoduletypes", update, handler.AddOptionalModuleType)
	router.DELETE("/:distributionSetTypeId/optionalmoduletypes/:softwareModuleTypeId", update, handler.RemoveOptionalModuleType)
}
