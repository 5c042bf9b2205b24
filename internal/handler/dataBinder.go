package handler

import (
	"fmt"

	"github.com/dhis2-sre/update-manager/internal/errdef"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// DataBinder binds the JSON request body to req and validates it.
func DataBinder(c *gin.Context, req any) error {
	if c.ContentType() != binding.MIMEJSON {
		return errdef.NewUnsupportedMediaType("%s only accepts content of type %s", c.FullPath(), binding.MIMEJSON)
	}

	if err := c.ShouldBindJSON(req); err != nil {
		return errdef.NewBadRequest("error binding data: %v", err)
	}

	return nil
}

// FormBinder binds a multipart form to req and validates it.
func FormBinder(c *gin.Context, req any) error {
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		reason := fmt.Sprintf("%s only accepts content of type %s", c.FullPath(), binding.MIMEMultipartPOSTForm)
		return errdef.NewUnsupportedMediaType("%s", reason)
	}

	if err := c.ShouldBindWith(req, binding.FormMultipart); err != nil {
		return errdef.NewBadRequest("error binding data: %v", err)
	}

	return nil
}
