package inttest

import (
	"context"

	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/gin-gonic/gin"
)

// User returns a user of given tenant granted every permission.
func User(tenant string) *model.User {
	return &model.User{
		Username:    "tester",
		Tenant:      tenant,
		Permissions: model.AllPermissions,
	}
}

// Context returns a context carrying a user of given tenant granted every permission.
func Context(ctx context.Context, tenant string) context.Context {
	return model.NewContextWithUser(ctx, User(tenant))
}

// Authentication authenticates every request as User.
type Authentication struct {
	User *model.User
}

func (a Authentication) Authenticate(c *gin.Context) {
	ctx := model.NewContextWithUser(c.Request.Context(), a.User)
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

// Authorization grants every permission.
type Authorization struct{}

func (Authorization) RequirePermission(string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
	}
}
