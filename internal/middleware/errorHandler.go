package middleware

import (
	"fmt"
	"net/http"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

const (
	ErrorCodeBadRequest           = "server.error.rest.param.invalid"
	ErrorCodeUnauthorized         = "server.error.unauthorized"
	ErrorCodeForbidden            = "server.error.insufficientpermission"
	ErrorCodeNotFound             = "server.error.repo.entityNotFound"
	ErrorCodeDuplicated           = "server.error.repo.entityAlreadyExists"
	ErrorCodeConflict             = "server.error.repo.conflict"
	ErrorCodeUnsupportedMediaType = "server.error.rest.mediatype.unsupported"
	ErrorCodeLocked               = "server.error.repo.entityLocked"
	ErrorCodeInternal             = "server.error.internal"
)

// ErrorHandler maps the last error added to the gin context to an HTTP status and an
// [ErrorResponse].
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		err := c.Errors.Last()
		if err == nil {
			return
		}
		if c.Writer.Written() {
			return
		}
		if status := c.Writer.Status(); status != http.StatusOK {
			c.JSON(status, ErrorResponse{ErrorCode: codeOf(status), Message: err.Error()})
			return
		}

		status, code := statusOf(err)
		if status == http.StatusInternalServerError {
			id, _ := GetCorrelationID(c.Request.Context())
			err := fmt.Errorf("something went wrong. We'll look into it if you send us the id %q :)", id)
			c.JSON(status, ErrorResponse{ErrorCode: code, Message: err.Error()})
			return
		}

		c.JSON(status, ErrorResponse{ErrorCode: code, Message: err.Error()})
	}
}

func statusOf(err error) (int, string) {
	switch errdef.KindOf(err) {
	case errdef.BadRequest:
		return http.StatusBadRequest, ErrorCodeBadRequest
	case errdef.Forbidden:
		return http.StatusForbidden, ErrorCodeForbidden
	case errdef.Duplicated:
		return http.StatusConflict, ErrorCodeDuplicated
	case errdef.NotFound:
		return http.StatusNotFound, ErrorCodeNotFound
	case errdef.Unauthorized:
		return http.StatusUnauthorized, ErrorCodeUnauthorized
	case errdef.Conflict:
		return http.StatusConflict, ErrorCodeConflict
	case errdef.UnsupportedMediaType:
		return http.StatusUnsupportedMediaType, ErrorCodeUnsupportedMediaType
	case errdef.Locked:
		return http.StatusLocked, ErrorCodeLocked
	}
	return http.StatusInternalServerError, ErrorCodeInternal
}

// codeOf returns the error code of a status set before the error handler ran.
func codeOf(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ErrorCodeBadRequest
	case http.StatusUnauthorized:
		return ErrorCodeUnauthorized
	case http.StatusForbidden:
		return ErrorCodeForbidden
	case http.StatusNotFound:
		return ErrorCodeNotFound
	case http.StatusConflict:
		return ErrorCodeConflict
	case http.StatusUnsupportedMediaType:
		return ErrorCodeUnsupportedMediaType
	case http.StatusLocked:
		return ErrorCodeLocked
	}
	if status >= http.StatusInternalServerError {
		return ErrorCodeInternal
	}
	return ErrorCodeBadRequest
}
