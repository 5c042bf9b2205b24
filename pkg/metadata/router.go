package metadata

import "github.com/gin-gonic/gin"

// Routes registers the metadata routes of an owner. Both groups are expected to point to the
// metadata collection of the owner, i.e. /targets/:targetId/metadata, and to carry the permission
// checks of reading and updating the owner.
func Routes(readRouter, updateRouter *gin.RouterGroup, handler Handler) {
	readRouter.GET("", handler.FindAll)
	readRouter.GET("/:key", handler.Find)

	updateRouter.POST("", handler.Create)
	updateRouter.PUT("/:key", handler.Update)
	updateRouter.DELETE("/:key", handler.Delete)
}
