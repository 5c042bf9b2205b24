package targettype

import "github.com/dhis2-sre/update-manager/internal/handler"

// swagger:parameters findTargetType updateTargetType deleteTargetType findCompatibleDistributionSetTypes addCompatibleDistributionSetTypes removeCompatibleDistributionSetType
type _ struct {
	// in: path
	// required: true
	TargetTypeID uint `json:"targetTypeId"`
}

// swagger:parameters removeCompatibleDistributionSetType
type _ struct {
	// in: path
	// required: true
	DistributionSetTypeID uint `json:"distributionSetTypeId"`
}

// swagger:parameters createTargetTypes
type _ struct {
	// in: body
	// required: true
	Body []CreateRequest
}

// swagger:parameters updateTargetType
type _ struct {
	// in: body
	// required: true
	Body UpdateRequest
}

// swagger:parameters addCompatibleDistributionSetTypes
type _ struct {
	// in: body
	// required: true
	Body []DistributionSetTypeReference
}

// swagger:response TargetType
type _ struct {
	// in: body
	_ Response
}

// swagger:response TargetTypeList
type _ struct {
	// in: body
	_ []Response
}

// swagger:response TargetTypePage
type _ struct {
	// in: body
	_ handler.PagedList[Response]
}
