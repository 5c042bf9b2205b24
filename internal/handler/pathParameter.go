package handler

import (
	"strconv"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/gin-gonic/gin"
)

// GetPathParameter parses the numeric path parameter. If parsing fails a bad request error is
// added to c and false is returned.
func GetPathParameter(c *gin.Context, parameter string) (uint, bool) {
	idParam := c.Param(parameter)
	id, err := strconv.ParseUint(idParam, 10, 32)
	if err != nil {
		_ = c.Error(errdef.NewBadRequest("error parsing %q: %v", parameter, err))
		c.Abort()
		return 0, false
	}
	return uint(id), true
}
