package distributionsettype

import "github.com/dhis2-sre/update-manager/internal/handler"

// swagger:parameters findDistributionSetType updateDistributionSetType deleteDistributionSetType findMandatoryModuleTypes findOptionalModuleTypes addMandatoryModuleType addOptionalModuleType
type _ struct {
	// in: path
	// required: true
	DistributionSetTypeID uint `json:"distributionSetTypeId"`
}

// swagger:parameters findMandatoryModuleType findOptionalModuleType removeMandatoryModuleType removeOptionalModuleType
type _ struct {
	// in: path
	// required: true
	DistributionSetTypeID uint `json:"distributionSetTypeId"`
	// in: path
	// required: true
	SoftwareModuleTypeID uint `json:"softwareModuleTypeId"`
}

// swagger:parameters createDistributionSetTypes
type _ struct {
	// in: body
	// required: true
	Body []CreateRequest
}

// swagger:parameters updateDistributionSetType
type _ struct {
	// in: body
	// required: true
	Body UpdateRequest
}

// swagger:parameters addMandatoryModuleType addOptionalModuleType
type _ struct {
	// in: body
	// required: true
	Body ModuleTypeReference
}

// swagger:response DistributionSetType
type _ struct {
	// in: body
	_ Response
}

// swagger:response DistributionSetTypeList
type _ struct {
	// in: body
	_ []Response
}

// swagger:response DistributionSetTypePage
type _ struct {
	// in: body
	_ handler.PagedList[Response]
}
