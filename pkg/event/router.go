package event

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
	r.GET("/events", authentication.Authenticate, authorization.RequirePermission(model.ReadTarget), handler.Subscribe)
}
