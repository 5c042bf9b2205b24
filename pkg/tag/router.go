package tag

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

// Permissions needed to read, create, update and delete tags of a kind. Target tags are part of
// the target management while distribution set tags belong to the repository.
type Permissions struct {
	Read, Create, Update, Delete string
}

func PermissionsOf(kind model.TagKind) Permissions {
	if kind == model.DistributionSetTagKind {
		return Permissions{model.ReadRepository, model.CreateRepository, model.UpdateRepository, model.DeleteRepository}
	}
	return Permissions{model.ReadTarget, model.CreateTarget, model.UpdateTarget, model.DeleteTarget}
}

func Routes(r *gin.RouterGroup, authentication AuthenticationMiddleware, authorization AuthorizationMiddleware, handler Handler) {
	permissions := PermissionsOf(handler.kind)
	router := r.Group("/"+Collection(handler.kind), authentication.Authenticate)

	router.GET("", authorization.RequirePermission(permissions.Read), handler.FindAll)
	router.GET("/:tagId", authorization.RequirePermission(permissions.Read), handler.Find)
	router.POST("", authorization.RequirePermission(permissions.Create), handler.Create)
	router.PUT("/:tagId", authorization.RequirePermission(permissions.Update), handler.Update)
	router.DELETE("/:tagId", authorization.RequirePermission(permissions.Delete), handler.Delete)
}
