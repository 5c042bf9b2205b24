package tag

import "github.com/dhis2-sre/update-manager/internal/handler"

// swagger:parameters findTargetTag updateTargetTag deleteTargetTag findDistributionSetTag updateDistributionSetTag deleteDistributionSetTag
type _ struct {
	// in: path
	// required: true
	TagID uint `json:"tagId"`
}

// swagger:parameters createTargetTags createDistributionSetTags
type _ struct {
	// in: body
	// required: true
	Body []CreateRequest
}

// swagger:parameters updateTargetTag updateDistributionSetTag
type _ struct {
	// in: body
	// required: true
	Body UpdateRequest
}

// swagger:response Tag
type _ struct {
	// in: body
	_ Response
}

// swagger:response TagList
type _ struct {
	// in: body
	_ []Response
}

// swagger:response TagPage
type _ struct {
	// in: body
	_ handler.PagedList[Response]
}
