package handler

import (
	"strconv"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"github.com/gin-gonic/gin"
)

// GetQueryParams parses the paging (offset, limit), sorting (sort) and filter (q) query
// parameters of list requests.
func GetQueryParams(c *gin.Context) (query.Params, error) {
	return query.NewParams(c.Query("offset"), c.Query("limit"), c.Query("sort"), c.Query("q"))
}

// GetBoolQueryParameter parses the optional boolean query parameter. A missing parameter is false.
// If parsing fails a bad request error is added to c and false is returned as second value.
func GetBoolQueryParameter(c *gin.Context, parameter string) (bool, bool) {
	value := c.Query(parameter)
	if value == "" {
		return false, true
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		_ = c.Error(errdef.NewBadRequest("invalid %s parameter %q", parameter, value))
		c.Abort()
		return false, false
	}
	return b, true
}
