package softwaremoduletype

import "github.com/dhis2-sre/update-manager/internal/handler"

// swagger:parameters findSoftwareModuleType updateSoftwareModuleType deleteSoftwareModuleType
type _ struct {
	// in: path
	// required: true
	SoftwareModuleTypeID uint `json:"softwareModuleTypeId"`
}

// swagger:parameters createSoftwareModuleTypes
type _ struct {
	// in: body
	// required: true
	Body []CreateRequest
}

// swagger:parameters updateSoftwareModuleType
type _ struct {
	// in: body
	// required: true
	Body UpdateRequest
}

// swagger:response SoftwareModuleType
type _ struct {
	// in: body
	_ Response
}

// swagger:response SoftwareModuleTypeList
type _ struct {
	// in: body
	_ []Response
}

// swagger:response SoftwareModuleTypePage
type _ struct {
	// in: body
	_ handler.PagedList[Response]
}
