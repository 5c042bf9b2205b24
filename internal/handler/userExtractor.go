package handler

import (
	"errors"

	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/gin-gonic/gin"
)

// GetUserFromContext returns the user the authentication middleware stored in the request
// context.
func GetUserFromContext(c *gin.Context) (*model.User, error) {
	user, ok := model.GetUserFromContext(c.Request.Context())
	if !ok {
		return nil, errors.New("user not found on context")
	}
	return user, nil
}
