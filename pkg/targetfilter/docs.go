package targetfilter

import "github.com/dhis2-sre/update-manager/internal/handler"

// swagger:parameters findTargetFilter updateTargetFilter deleteTargetFilter findTargetFilterDistributionSet assignTargetFilterDistributionSet unassignTargetFilterDistributionSet
type _ struct {
	// in: path
	// required: true
	TargetFilterID uint `json:"targetFilterId"`
}

// swagger:parameters findDistributionSetTargetFilters
type _ struct {
	// in: path
	// required: true
	DistributionSetID uint `json:"distributionSetId"`
}

// swagger:parameters createTargetFilter
type _ struct {
	// in: body
	// required: true
	Body CreateRequest
}

// swagger:parameters updateTargetFilter
type _ struct {
	// in: body
	// required: true
	Body UpdateRequest
}

// swagger:parameters assignTargetFilterDistributionSet
type _ struct {
	// in: body
	// required: true
	Body AutoAssignRequest
}

// swagger:response TargetFilter
type _ struct {
	// in: body
	_ Response
}

// swagger:response TargetFilterPage
type _ struct {
	// in: body
	_ handler.PagedList[Response]
}
