package handler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/gin-gonic/gin"
)

// PagedList is a page of entities alongside the total number of entities matching the request.
type PagedList[T any] struct {
	Content []T   `json:"content"`
	Total   int64 `json:"total"`
	Size    int   `json:"size"`
}

func NewPagedList[T any](content []T, total int64) PagedList[T] {
	if content == nil {
		content = []T{}
	}
	return PagedList[T]{
		Content: content,
		Total:   total,
		Size:    len(content),
	}
}

type Link struct {
	Href string `json:"href"`
	Name string `json:"name,omitempty"`
}

// Links are the HAL _links of a response keyed by relation.
type Links map[string]Link

// Audit are the audit fields shared by all entity responses. Times are in milliseconds since the
// epoch.
type Audit struct {
	CreatedBy      string `json:"createdBy"`
	CreatedAt      int64  `json:"createdAt"`
	LastModifiedBy string `json:"lastModifiedBy"`
	LastModifiedAt int64  `json:"lastModifiedAt"`
}

func NewAudit(base model.Base) Audit {
	return Audit{
		CreatedBy:      base.CreatedBy,
		CreatedAt:      model.Millis(base.CreatedAt),
		LastModifiedBy: base.LastModifiedBy,
		LastModifiedAt: model.Millis(base.UpdatedAt),
	}
}

const basePathKey = "basePath"

// BasePath stores the base path of the API so links can be created relative to it.
func BasePath(basePath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(basePathKey, basePath)
		c.Next()
	}
}

// Href returns the absolute URL of the resource identified by elements. Elements are path escaped.
func Href(c *gin.Context, elements ...any) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	var b strings.Builder
	b.WriteString(scheme + "://" + c.Request.Host)
	b.WriteString(strings.TrimSuffix(c.GetString(basePathKey), "/"))
	for _, element := range elements {
		b.WriteString("/" + url.PathEscape(fmt.Sprint(element)))
	}
	return b.String()
}

// SelfLink returns links only containing the self relation.
func SelfLink(c *gin.Context, elements ...any) Links {
	return Links{"self": {Href: Href(c, elements...)}}
}
