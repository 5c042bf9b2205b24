package middleware

import (
	"log/slog"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/internal/handler"
	"github.com/gin-gonic/gin"
)

func NewAuthorization(logger *slog.Logger) Authorization {
	return Authorization{
		logger: logger,
	}
}

type Authorization struct {
	logger *slog.Logger
}

// RequirePermission aborts requests of users that were not granted given permission. It has to run
// after [Authentication.Authenticate].
func (m Authorization) RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := handler.GetUserFromContext(c)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		if !user.HasPermission(permission) {
			m.logger.WarnContext(c.Request.Context(), "User tried to access endpoint without permission", "permission", permission)
			_ = c.Error(errdef.NewForbidden("user %q is missing permission %s", user.Username, permission))
			c.Abort()
			return
		}

		c.Next()
	}
}
